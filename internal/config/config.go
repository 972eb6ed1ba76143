// Package config handles configuration loading for droidpilot. It supports
// XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for droidpilot.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Display   DisplayConfig   `mapstructure:"display"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds model API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// ExecutionConfig holds orchestration limits.
type ExecutionConfig struct {
	MaxConcurrentTasks int           `mapstructure:"max_concurrent_tasks"`
	MaxIterations      int           `mapstructure:"max_iterations"`
	MaxStepsPerTask    int           `mapstructure:"max_steps_per_task"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
}

// DisplayConfig holds virtual display settings.
type DisplayConfig struct {
	Isolate bool `mapstructure:"isolate"`
	Width   int  `mapstructure:"width"`
	Height  int  `mapstructure:"height"`
	Density int  `mapstructure:"density"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration with the following precedence (highest first):
// environment variables (ANTHROPIC_API_KEY), project config
// (.droidpilot.yaml in the current directory or a parent), user config
// (~/.config/droidpilot/config.yaml), built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.use_aws_bedrock", "CLAUDE_CODE_USE_BEDROCK")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("execution.max_concurrent_tasks", cfg.Execution.MaxConcurrentTasks)
	v.Set("execution.max_iterations", cfg.Execution.MaxIterations)
	v.Set("execution.max_steps_per_task", cfg.Execution.MaxStepsPerTask)
	v.Set("execution.poll_interval", cfg.Execution.PollInterval.String())
	v.Set("display.isolate", cfg.Display.Isolate)
	v.Set("display.width", cfg.Display.Width)
	v.Set("display.height", cfg.Display.Height)
	v.Set("display.density", cfg.Display.Density)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config file path, if one exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("execution.max_concurrent_tasks", 3)
	v.SetDefault("execution.max_iterations", 5)
	v.SetDefault("execution.max_steps_per_task", 25)
	v.SetDefault("execution.poll_interval", "100ms")

	v.SetDefault("display.isolate", true)
	v.SetDefault("display.width", 1080)
	v.SetDefault("display.height", 2400)
	v.SetDefault("display.density", 420)

	v.SetDefault("tui.refresh_rate", "100ms")
}

func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "droidpilot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "droidpilot")
	}
	return filepath.Join(home, ".config", "droidpilot")
}

// findProjectConfig searches for .droidpilot.yaml in the current directory
// and its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".droidpilot.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Execution: ExecutionConfig{
			MaxConcurrentTasks: 3,
			MaxIterations:      5,
			MaxStepsPerTask:    25,
			PollInterval:       100 * time.Millisecond,
		},
		Display: DisplayConfig{
			Isolate: true,
			Width:   1080,
			Height:  2400,
			Density: 420,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
