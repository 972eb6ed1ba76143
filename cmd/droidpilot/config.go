package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/droidpilot/droidpilot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	RunE:  runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default user config file",
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("user config:    %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("project config: %s\n", project)
	}
	fmt.Println()

	apiKey := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKey = "(set)"
	}
	model := cfg.Anthropic.Model
	if model == "" {
		model = "(default)"
	}
	fmt.Printf("anthropic.api_key:              %s\n", apiKey)
	fmt.Printf("anthropic.model:                %s\n", model)
	fmt.Printf("anthropic.use_aws_bedrock:      %t\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("execution.max_concurrent_tasks: %d\n", cfg.Execution.MaxConcurrentTasks)
	fmt.Printf("execution.max_iterations:       %d\n", cfg.Execution.MaxIterations)
	fmt.Printf("execution.max_steps_per_task:   %d\n", cfg.Execution.MaxStepsPerTask)
	fmt.Printf("execution.poll_interval:        %s\n", cfg.Execution.PollInterval)
	fmt.Printf("display.isolate:                %t\n", cfg.Display.Isolate)
	fmt.Printf("display.geometry:               %dx%d@%d\n", cfg.Display.Width, cfg.Display.Height, cfg.Display.Density)

	if cfg.Anthropic.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		fmt.Println()
		color.Yellow("ANTHROPIC_API_KEY is not set; runs will fail until it is configured")
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.GetUserConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := config.Save(config.Default()); err != nil {
		return err
	}
	color.Green("wrote %s", path)
	return nil
}
