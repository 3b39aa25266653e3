package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for explicit missing path")
	}

	// No explicit path: a missing config file yields defaults.
	cwd, _ := os.Getwd()
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path == "" {
		t.Error("database.path default empty")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.RetentionDays != 7 {
		t.Errorf("logging.retention_days = %d, want 7", cfg.Logging.RetentionDays)
	}
	if cfg.Run.Steps != 1 {
		t.Errorf("run.steps = %d, want 1", cfg.Run.Steps)
	}
	if cfg.Daemon.Cron != "0 2 * * *" {
		t.Errorf("daemon.cron = %q", cfg.Daemon.Cron)
	}
	if cfg.Daemon.Steps != 10 {
		t.Errorf("daemon.steps = %d, want 10", cfg.Daemon.Steps)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crewd.yaml")
	content := `
database:
  path: /tmp/test-crewd.db
logging:
  level: debug
  format: text
run:
  steps: 5
daemon:
  cron: "*/15 * * * *"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/test-crewd.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Run.Steps != 5 {
		t.Errorf("run.steps = %d, want 5", cfg.Run.Steps)
	}
	if cfg.Daemon.Cron != "*/15 * * * *" {
		t.Errorf("daemon.cron = %q", cfg.Daemon.Cron)
	}
	// Unset fields keep defaults.
	if cfg.Daemon.Steps != 10 {
		t.Errorf("daemon.steps = %d, want default 10", cfg.Daemon.Steps)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CREWD_LOGGING_LEVEL", "warn")
	t.Setenv("CREWD_RUN_STEPS", "3")

	path := filepath.Join(t.TempDir(), "crewd.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env did not override file: level = %q", cfg.Logging.Level)
	}
	if cfg.Run.Steps != 3 {
		t.Errorf("env did not override default: steps = %d", cfg.Run.Steps)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crewd.yaml")
	if err := os.WriteFile(path, []byte("database: [not: valid"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestExpandedDBPath(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Path: "~/data/crewd.db"}}
	got := cfg.ExpandedDBPath()
	if got == "~/data/crewd.db" {
		t.Error("tilde not expanded")
	}
	if filepath.Base(got) != "crewd.db" {
		t.Errorf("expanded path = %q", got)
	}

	cfg.Database.Path = "/abs/crewd.db"
	if cfg.ExpandedDBPath() != "/abs/crewd.db" {
		t.Errorf("absolute path changed: %q", cfg.ExpandedDBPath())
	}
}

func TestLoggingSettings(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:         "debug",
			Path:          "~/logs",
			Format:        "text",
			RetentionDays: 14,
		},
	}
	settings := cfg.LoggingSettings()
	if settings.Level != "debug" || settings.Format != "text" || settings.RetentionDays != 14 {
		t.Errorf("settings = %+v", settings)
	}
	if settings.Path == "~/logs" {
		t.Error("logging path tilde not expanded")
	}
}
