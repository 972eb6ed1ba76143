// Package tui provides the live terminal view of an orchestration run,
// fed by the orchestrator's event stream.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/droidpilot/droidpilot/internal/orchestrator"
	"github.com/droidpilot/droidpilot/pkg/models"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	phaseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	faintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	summaryStyle = lipgloss.NewStyle().MarginTop(1)
)

// Controls are the run-control callbacks bound to key presses.
type Controls struct {
	Pause  func()
	Resume func()
	Stop   func()
}

// eventMsg wraps one orchestrator event for the update loop.
type eventMsg orchestrator.Event

// streamClosedMsg signals the event stream ended.
type streamClosedMsg struct{}

// taskRow is the displayed state of one task.
type taskRow struct {
	id        string
	state     models.TaskState
	steps     int
	maxSteps  int
	displayID int
	thinking  string
	result    string
	done      bool
	success   bool
}

// App is the bubbletea model for a run.
type App struct {
	events   <-chan orchestrator.Event
	controls Controls
	spin     spinner.Model

	phase   orchestrator.Phase
	command string
	rows    map[string]*taskRow
	order   []string
	summary string
	done    bool
	paused  bool

	width    int
	quitting bool
}

// New creates an App listening on the given event stream.
func New(command string, events <-chan orchestrator.Event, controls Controls) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return &App{
		events:   events,
		controls: controls,
		spin:     s,
		phase:    orchestrator.PhaseIdle,
		command:  command,
		rows:     make(map[string]*taskRow),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spin.Tick, a.listen())
}

// listen waits for the next orchestrator event.
func (a *App) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-a.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if a.controls.Stop != nil && !a.done {
				a.controls.Stop()
			}
			a.quitting = true
			return a, tea.Quit
		case "p":
			if a.controls.Pause != nil && !a.paused {
				a.controls.Pause()
				a.paused = true
			}
		case "r":
			if a.controls.Resume != nil && a.paused {
				a.controls.Resume()
				a.paused = false
			}
		case "s":
			if a.controls.Stop != nil {
				a.controls.Stop()
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case eventMsg:
		a.apply(orchestrator.Event(msg))
		return a, a.listen()

	case streamClosedMsg:
		a.done = true
		return a, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	return a, nil
}

// apply folds one event into the display state.
func (a *App) apply(ev orchestrator.Event) {
	if ev.Phase != "" {
		a.phase = ev.Phase
	}

	switch ev.Type {
	case orchestrator.EventTaskProgress:
		if ev.Progress == nil {
			return
		}
		row := a.row(ev.Progress.TaskID)
		row.state = ev.Progress.State
		row.steps = ev.Progress.StepCount
		row.maxSteps = ev.Progress.MaxSteps
		row.displayID = ev.Progress.DisplayID
		if ev.Progress.Thinking != "" {
			row.thinking = ev.Progress.Thinking
		}

	case orchestrator.EventTaskFinished:
		if ev.Result == nil {
			return
		}
		row := a.row(ev.Result.TaskID)
		row.done = true
		row.success = ev.Result.Success
		row.result = ev.Result.Result
		row.steps = ev.Result.StepsExecuted

	case orchestrator.EventRunDone:
		a.done = true
		a.summary = ev.Message
	}
}

func (a *App) row(taskID string) *taskRow {
	if row, ok := a.rows[taskID]; ok {
		return row
	}
	row := &taskRow{id: taskID}
	a.rows[taskID] = row
	a.order = append(a.order, taskID)
	return row
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("droidpilot") + "  " + faintStyle.Render(a.command) + "\n")

	if a.done {
		b.WriteString(phaseStyle.Render(fmt.Sprintf("phase: %s", a.phase)) + "\n")
	} else {
		b.WriteString(a.spin.View() + phaseStyle.Render(fmt.Sprintf(" phase: %s", a.phase)) + "\n")
	}
	b.WriteString("\n")

	ids := make([]string, len(a.order))
	copy(ids, a.order)
	sort.Strings(ids)
	for _, id := range ids {
		b.WriteString(a.renderRow(a.rows[id]) + "\n")
	}

	if a.summary != "" {
		b.WriteString(summaryStyle.Render(a.summary) + "\n")
	}
	if !a.done {
		b.WriteString(faintStyle.Render("\n[p] pause  [r] resume  [s] stop  [q] quit") + "\n")
	} else {
		b.WriteString(faintStyle.Render("\n[q] quit") + "\n")
	}

	return b.String()
}

func (a *App) renderRow(row *taskRow) string {
	var status string
	switch {
	case row.done && row.success:
		status = okStyle.Render("done")
	case row.done:
		status = failStyle.Render("failed")
	case row.state.Phase == models.PhasePaused:
		status = pausedStyle.Render("paused")
	default:
		status = string(row.state.Phase)
	}

	line := fmt.Sprintf("  %-12s %-8s step %d/%d", row.id, status, row.steps, row.maxSteps)
	if row.displayID > 0 {
		line += fmt.Sprintf("  display %d", row.displayID)
	}
	if row.done && row.result != "" {
		line += "  " + faintStyle.Render(trim(row.result, 48))
	} else if row.thinking != "" {
		line += "  " + faintStyle.Render(trim(row.thinking, 48))
	}
	return line
}

func trim(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// Run starts the TUI and blocks until it exits.
func Run(app *App) error {
	_, err := tea.NewProgram(app).Run()
	return err
}
