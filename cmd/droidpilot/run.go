package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/droidpilot/droidpilot/internal/api"
	"github.com/droidpilot/droidpilot/internal/config"
	"github.com/droidpilot/droidpilot/internal/control"
	"github.com/droidpilot/droidpilot/internal/device"
	"github.com/droidpilot/droidpilot/internal/logging"
	"github.com/droidpilot/droidpilot/internal/orchestrator"
	"github.com/droidpilot/droidpilot/internal/planner"
	"github.com/droidpilot/droidpilot/internal/reasoner"
	"github.com/droidpilot/droidpilot/internal/signals"
	"github.com/droidpilot/droidpilot/internal/state"
	"github.com/droidpilot/droidpilot/internal/tui"
	"github.com/droidpilot/droidpilot/pkg/models"
)

var (
	runUseTUI    bool
	runTaskFile  string
	runDryRun    bool
	runDiagram   bool
	runMaxTasks  int
	runYes       bool
	runNoPersist bool
)

var runCmd = &cobra.Command{
	Use:   "run [command]",
	Short: "Run a command through the orchestrator",
	Long: `Run a natural-language command through the plan/execute/decide loop,
or a predefined task set with --tasks.

The command is analyzed by the planning model; multi-step commands are
decomposed into sub-tasks scheduled in dependency waves. Progress streams
to the terminal; pass --tui for the live board.

While a run is active it can be controlled from another shell by writing
signal files:
  touch .droidpilot/signals/pause
  touch .droidpilot/signals/resume
  touch .droidpilot/signals/stop

Use --dry-run to exercise planning and scheduling against a stub device
that logs actions instead of dispatching them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCommand,
}

func init() {
	runCmd.Flags().BoolVar(&runUseTUI, "tui", false, "Show the live task board")
	runCmd.Flags().StringVar(&runTaskFile, "tasks", "", "Run a YAML task set instead of planning")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Use a stub device that logs actions")
	runCmd.Flags().BoolVar(&runDiagram, "diagram", false, "Print the mermaid flow diagram after the run")
	runCmd.Flags().IntVar(&runMaxTasks, "max-concurrent", 0, "Override max concurrent tasks")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Auto-approve sensitive actions")
	runCmd.Flags().BoolVar(&runNoPersist, "no-persist", false, "Skip recording the run to the state database")
}

func runCommand(cmd *cobra.Command, args []string) error {
	if runTaskFile == "" && len(args) == 0 {
		return fmt.Errorf("provide a command or --tasks <file>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if runMaxTasks > 0 {
		cfg.Execution.MaxConcurrentTasks = runMaxTasks
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	ctrl := control.New()
	opts := []orchestrator.Option{
		orchestrator.WithControl(ctrl),
		orchestrator.WithMaxConcurrent(cfg.Execution.MaxConcurrentTasks),
		orchestrator.WithMaxIterations(cfg.Execution.MaxIterations),
		orchestrator.WithMaxSteps(cfg.Execution.MaxStepsPerTask),
		orchestrator.WithPollInterval(cfg.Execution.PollInterval),
		orchestrator.WithLogger(logging.NewDebugLoggerForDir(cwd)),
	}

	if cfg.Display.Isolate {
		geometry := device.DisplayGeometry{
			Width:   cfg.Display.Width,
			Height:  cfg.Display.Height,
			Density: cfg.Display.Density,
		}
		opts = append(opts, orchestrator.WithIsolation(&device.CappedAllocator{Capacity: cfg.Execution.MaxConcurrentTasks}, geometry))
	}

	if runYes {
		opts = append(opts, orchestrator.WithInteractor(device.AutoApprove{}))
	} else {
		opts = append(opts, orchestrator.WithInteractor(newTerminalInteractor()))
	}

	if !runNoPersist {
		db, err := state.Open(state.ProjectDBPath(cwd))
		if err != nil {
			return fmt.Errorf("opening state database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrating state database: %w", err)
		}
		opts = append(opts, orchestrator.WithRecorder(db))
	}

	req := orchestrator.RequiredConfig{
		Planner:  planner.NewClaudePlanner(client),
		Reasoner: reasoner.NewClaudeReasoner(client),
		Screen:   &device.StaticScreen{},
		Actuator: device.LoggingActuator{},
	}
	if !runDryRun {
		// Device transports plug in here; without one the stub device is
		// used so planning and scheduling still exercise end to end.
		color.Yellow("no device backend configured, running against the stub device")
	}

	orch, err := orchestrator.New(req, opts...)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}
	defer orch.Close()

	watcher, err := signals.New(cwd, ctrl)
	if err != nil {
		return fmt.Errorf("creating signal watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("starting signal watcher: %w", err)
	}
	defer watcher.Close()
	watcher.Clear()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if runTaskFile != "" {
		return runPredefined(ctx, orch, runTaskFile)
	}
	return runOrchestrated(ctx, orch, ctrl, strings.Join(args, " "))
}

func runOrchestrated(ctx context.Context, orch *orchestrator.Orchestrator, ctrl *control.Controller, command string) error {
	if runUseTUI {
		return runWithTUI(ctx, orch, ctrl, command)
	}

	events := orch.Subscribe()
	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		printEvents(events)
	}()

	result, err := orch.Orchestrate(ctx, command)
	orch.Close()
	<-printerDone
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func runWithTUI(ctx context.Context, orch *orchestrator.Orchestrator, ctrl *control.Controller, command string) error {
	app := tui.New(command, orch.Subscribe(), tui.Controls{
		Pause:  ctrl.Pause,
		Resume: ctrl.Resume,
		Stop:   ctrl.Stop,
	})

	type runOutcome struct {
		result *orchestrator.RunResult
		err    error
	}
	outcome := make(chan runOutcome, 1)
	go func() {
		result, err := orch.Orchestrate(ctx, command)
		orch.Close()
		outcome <- runOutcome{result, err}
	}()

	if err := tui.Run(app); err != nil {
		return fmt.Errorf("tui: %w", err)
	}

	out := <-outcome
	if out.err != nil {
		return out.err
	}
	printResult(out.result)
	return nil
}

func runPredefined(ctx context.Context, orch *orchestrator.Orchestrator, path string) error {
	defs, err := models.LoadTaskFile(path)
	if err != nil {
		return err
	}

	events := orch.Subscribe()
	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		printEvents(events)
	}()

	results, err := orch.RunTasks(ctx, defs)
	orch.Close()
	<-printerDone
	if err != nil {
		return err
	}

	fmt.Println()
	for _, def := range defs {
		fmt.Printf("  %s: %s\n", color.CyanString(def.ID), results[def.ID])
	}
	return nil
}

func printEvents(events <-chan orchestrator.Event) {
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventPhaseChanged:
			if ev.Iteration > 0 {
				color.Blue("== iteration %d: %s", ev.Iteration, ev.Phase)
			} else {
				color.Blue("== %s", ev.Phase)
			}
		case orchestrator.EventWaveStarted:
			color.Cyan("-- %s", ev.Message)
		case orchestrator.EventDecision:
			color.Magenta("decision: %s", ev.Message)
		case orchestrator.EventTaskFinished:
			if ev.Result == nil {
				continue
			}
			if ev.Result.Success {
				color.Green("[ok]   %s: %s (%d steps)", ev.Result.TaskID, ev.Result.Result, ev.Result.StepsExecuted)
			} else {
				color.Red("[fail] %s: %s", ev.Result.TaskID, ev.Result.Result)
			}
		}
	}
}

func printResult(result *orchestrator.RunResult) {
	fmt.Println()
	if result.Success {
		color.Green("run succeeded")
	} else {
		color.Red("run failed")
	}
	fmt.Println(result.Summary)
	fmt.Println(result.Tree.Render())
	if runDiagram {
		fmt.Println(result.FlowDiagram)
	}
}
