package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// terminalInteractor answers confirmation and takeover requests on stdin.
// Prompts are serialized so concurrent tasks never interleave on the
// terminal.
type terminalInteractor struct {
	mu     sync.Mutex
	reader *bufio.Reader
}

func newTerminalInteractor() *terminalInteractor {
	return &terminalInteractor{reader: bufio.NewReader(os.Stdin)}
}

// Confirm asks the user to approve a sensitive action.
func (t *terminalInteractor) Confirm(ctx context.Context, message string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	color.Yellow("\nconfirmation required: %s", message)
	fmt.Print("proceed? [y/N]: ")

	answer, err := t.readLine(ctx)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// Takeover asks the user to perform a step manually and waits for enter.
func (t *terminalInteractor) Takeover(ctx context.Context, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	color.Yellow("\nmanual step required: %s", message)
	fmt.Print("press enter when done: ")

	_, err := t.readLine(ctx)
	return err
}

func (t *terminalInteractor) readLine(ctx context.Context) (string, error) {
	type lineResult struct {
		line string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := t.reader.ReadString('\n')
		ch <- lineResult{line, err}
	}()

	select {
	case res := <-ch:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
