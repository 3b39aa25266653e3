package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/crewd/internal/agents"
	"github.com/marcus/crewd/internal/config"
	"github.com/marcus/crewd/internal/logging"
	"github.com/marcus/crewd/internal/orchestrator"
	"github.com/marcus/crewd/internal/store"
)

// loadConfig reads configuration honoring the global --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// initLogging sets up the global logger from config, bumping the level to
// debug when --verbose is set.
func initLogging(cmd *cobra.Command, cfg *config.Config) error {
	settings := cfg.LoggingSettings()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		settings.Level = "debug"
	}
	return logging.Init(settings)
}

// openStore opens the configured database.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.ExpandedDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	return st, nil
}

// newOrchestrator builds an orchestrator around the store with the stub
// agent roster.
func newOrchestrator(cfg *config.Config, st *store.Store, events orchestrator.EventHandler) *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithStore(st),
		orchestrator.WithRoster(agents.StubRoster(st)),
		orchestrator.WithConfig(orchestrator.Config{DefaultSteps: cfg.Run.Steps}),
		orchestrator.WithLogger(logging.Component("orchestrator")),
	}
	if events != nil {
		opts = append(opts, orchestrator.WithEventHandler(events))
	}
	return orchestrator.New(opts...)
}

// requirementsFromFlags resolves the requirements text from --requirements or
// --requirements-file.
func requirementsFromFlags(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("requirements")
	file, _ := cmd.Flags().GetString("requirements-file")

	if text != "" && file != "" {
		return "", fmt.Errorf("use either --requirements or --requirements-file, not both")
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading requirements file: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("requirements are empty (set --requirements or --requirements-file)")
	}
	return text, nil
}

// progressPrinter returns an event handler that prints pipeline progress to
// stdout.
func progressPrinter() orchestrator.EventHandler {
	return func(e orchestrator.Event) {
		switch e.Type {
		case orchestrator.EventProjectInit:
			fmt.Printf("project initialized: %s\n", e.ProjectID)
		case orchestrator.EventStepStart:
			fmt.Printf("step %d: %s\n", e.Step, e.Role)
		case orchestrator.EventError:
			fmt.Printf("  error: %s\n", e.Message)
		}
	}
}
