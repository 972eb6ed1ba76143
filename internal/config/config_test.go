package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Execution.MaxConcurrentTasks != 3 {
		t.Errorf("expected max concurrent 3, got %d", cfg.Execution.MaxConcurrentTasks)
	}
	if cfg.Execution.MaxIterations != 5 {
		t.Errorf("expected max iterations 5, got %d", cfg.Execution.MaxIterations)
	}
	if cfg.Execution.MaxStepsPerTask != 25 {
		t.Errorf("expected max steps 25, got %d", cfg.Execution.MaxStepsPerTask)
	}
	if cfg.Execution.PollInterval != 100*time.Millisecond {
		t.Errorf("expected poll interval 100ms, got %v", cfg.Execution.PollInterval)
	}
	if !cfg.Display.Isolate {
		t.Error("expected display.isolate to default true")
	}
	if cfg.Display.Width != 1080 || cfg.Display.Height != 2400 || cfg.Display.Density != 420 {
		t.Errorf("unexpected display geometry %+v", cfg.Display)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
anthropic:
  api_key: test-key
  model: claude-sonnet-4-5
execution:
  max_concurrent_tasks: 5
  max_steps_per_task: 40
display:
  isolate: false
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api key from file, got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Execution.MaxConcurrentTasks != 5 {
		t.Errorf("expected max concurrent 5, got %d", cfg.Execution.MaxConcurrentTasks)
	}
	if cfg.Execution.MaxStepsPerTask != 40 {
		t.Errorf("expected max steps 40, got %d", cfg.Execution.MaxStepsPerTask)
	}
	if cfg.Display.Isolate {
		t.Error("expected isolate false from file")
	}

	// Unset keys keep their defaults.
	if cfg.Execution.MaxIterations != 5 {
		t.Errorf("expected default max iterations, got %d", cfg.Execution.MaxIterations)
	}
}

func TestLoadFromPathExpandsEnvInAPIKey(t *testing.T) {
	t.Setenv("DROIDPILOT_TEST_KEY", "expanded-key")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := "anthropic:\n  api_key: ${DROIDPILOT_TEST_KEY}\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Anthropic.APIKey != "expanded-key" {
		t.Errorf("expected expanded key, got %q", cfg.Anthropic.APIKey)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Anthropic.APIKey = "saved-key"
	cfg.Execution.MaxConcurrentTasks = 7

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Anthropic.APIKey != "saved-key" {
		t.Errorf("expected saved key, got %q", loaded.Anthropic.APIKey)
	}
	if loaded.Execution.MaxConcurrentTasks != 7 {
		t.Errorf("expected saved max concurrent 7, got %d", loaded.Execution.MaxConcurrentTasks)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
