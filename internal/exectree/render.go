package exectree

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	skippedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	detailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func statusStyle(status NodeStatus) lipgloss.Style {
	switch status {
	case StatusCompleted:
		return completedStyle
	case StatusFailed:
		return failedStyle
	case StatusRunning:
		return runningStyle
	case StatusSkipped:
		return skippedStyle
	default:
		return pendingStyle
	}
}

// Render returns a styled terminal tree of the run.
func (t *Tree) Render() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var b strings.Builder
	t.walk(func(n *Node, depth int) {
		indent := strings.Repeat("  ", depth)
		prefix := ""
		if depth > 0 {
			prefix = "|-- "
		}

		line := fmt.Sprintf("%s%s%s %s", indent, prefix, statusIcon(n.Status), truncate(n.Description, 60))
		b.WriteString(statusStyle(n.Status).Render(line))

		var details []string
		if n.DisplayID > 0 {
			details = append(details, fmt.Sprintf("display %d", n.DisplayID))
		}
		if d := n.Duration(); d > 0 {
			details = append(details, d.Round(10*time.Millisecond).String())
		}
		if len(details) > 0 {
			b.WriteString(" " + detailStyle.Render("("+strings.Join(details, ", ")+")"))
		}
		b.WriteString("\n")
	})
	return b.String()
}

// Mermaid returns the run as a mermaid flowchart, suitable for pasting
// into documentation or run reports.
func (t *Tree) Mermaid() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var b strings.Builder
	b.WriteString("graph TD\n")

	ids := make(map[string]string)
	counter := 0
	t.walk(func(n *Node, _ int) {
		ids[n.TaskID] = fmt.Sprintf("N%d", counter)
		counter++
	})

	t.walk(func(n *Node, _ int) {
		b.WriteString(fmt.Sprintf("    %s[%q]\n", ids[n.TaskID], mermaidLabel(n)))
	})
	t.walk(func(n *Node, _ int) {
		for _, child := range n.Children {
			b.WriteString(fmt.Sprintf("    %s --> %s\n", ids[n.TaskID], ids[child.TaskID]))
		}
	})

	t.walk(func(n *Node, _ int) {
		switch n.Status {
		case StatusCompleted:
			b.WriteString(fmt.Sprintf("    style %s fill:#a3e4a3\n", ids[n.TaskID]))
		case StatusFailed:
			b.WriteString(fmt.Sprintf("    style %s fill:#e4a3a3\n", ids[n.TaskID]))
		case StatusSkipped:
			b.WriteString(fmt.Sprintf("    style %s fill:#d0d0d0\n", ids[n.TaskID]))
		}
	})

	return b.String()
}

func mermaidLabel(n *Node) string {
	label := nodeLabel(n)
	// Mermaid labels cannot contain raw quotes.
	return strings.ReplaceAll(label, `"`, "'")
}
