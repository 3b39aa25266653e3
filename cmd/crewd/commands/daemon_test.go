package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/marcus/crewd/internal/config"
	"github.com/marcus/crewd/internal/logging"
)

type fakeRunner struct {
	initCalls int
	runCalls  int
	runSteps  int
	initErr   error
	runErr    error
}

func (f *fakeRunner) InitializeProject(ctx context.Context, name, description, requirements string) (string, error) {
	f.initCalls++
	if f.initErr != nil {
		return "", f.initErr
	}
	return "project-1", nil
}

func (f *fakeRunner) Run(ctx context.Context, steps int) (map[string]any, error) {
	f.runCalls++
	f.runSteps = steps
	if f.runErr != nil {
		return map[string]any{"status": "error"}, f.runErr
	}
	return map[string]any{"status": "completed"}, nil
}

func testDaemonConfig() *config.Config {
	return &config.Config{
		Daemon: config.DaemonConfig{Cron: "0 2 * * *", Steps: 10},
	}
}

func stderrLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New(logging.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return log
}

func TestRunScheduledPipeline(t *testing.T) {
	runner := &fakeRunner{}

	runScheduledPipeline(context.Background(), runner, testDaemonConfig(),
		"todo-app", "", "Build a todo app", stderrLogger(t))

	if runner.initCalls != 1 || runner.runCalls != 1 {
		t.Fatalf("init=%d run=%d, want 1/1", runner.initCalls, runner.runCalls)
	}
	if runner.runSteps != 10 {
		t.Fatalf("steps = %d, want 10 from config", runner.runSteps)
	}
}

func TestRunScheduledPipelineInitFailureSkipsRun(t *testing.T) {
	runner := &fakeRunner{initErr: errors.New("db locked")}

	runScheduledPipeline(context.Background(), runner, testDaemonConfig(),
		"todo-app", "", "Build a todo app", stderrLogger(t))

	if runner.runCalls != 0 {
		t.Fatalf("Run called %d times after init failure", runner.runCalls)
	}
}

func TestRunScheduledPipelineRunFailureIsLoggedNotFatal(t *testing.T) {
	runner := &fakeRunner{runErr: errors.New("checkpoint write failed")}

	// Must not panic; the daemon keeps its schedule.
	runScheduledPipeline(context.Background(), runner, testDaemonConfig(),
		"todo-app", "", "Build a todo app", stderrLogger(t))

	if runner.runCalls != 1 {
		t.Fatalf("runCalls = %d, want 1", runner.runCalls)
	}
}
