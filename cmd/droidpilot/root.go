package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "droidpilot",
	Short: "Vision-grounded device automation orchestrator",
	Long: `Droidpilot turns a natural-language command into scheduled device
automation tasks. A planning model decomposes the command into sub-tasks,
a scheduler runs them in dependency waves through a bounded concurrency
gate, and each task steps a perceive/reason/act loop against the device.

Tasks that name a target app can run isolated on virtual displays; when no
display is available they fall back to the shared main display instead of
failing.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
