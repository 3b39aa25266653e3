package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <project-name>",
	Short: "Run the development pipeline",
	Long: `Initialize the named project and advance the agent pipeline.

Each step hands the workflow to the next agent in line: the project manager
plans and assigns tasks, worker agents produce implementations, testing
verifies them, documentation writes them up, and test failures detour
through the error-handling agent. Workflow state is checkpointed after
every step.

Examples:
  crewd run todo-app -r "Build a todo app with login"
  crewd run todo-app --requirements-file reqs.txt --steps 10`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("description", "d", "", "Project description")
	runCmd.Flags().StringP("requirements", "r", "", "Requirements text")
	runCmd.Flags().String("requirements-file", "", "Read requirements from a file")
	runCmd.Flags().IntP("steps", "s", 0, "Number of pipeline steps (default from config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	name := args[0]
	description, _ := cmd.Flags().GetString("description")
	steps, _ := cmd.Flags().GetInt("steps")

	requirements, err := requirementsFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := initLogging(cmd, cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if steps <= 0 {
		steps = cfg.Run.Steps
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := newOrchestrator(cfg, st, progressPrinter())

	projectID, err := orch.InitializeProject(ctx, name, description, requirements)
	if err != nil {
		return fmt.Errorf("initialize project: %w", err)
	}

	snapshot, runErr := orch.Run(ctx, steps)
	printRunSummary(snapshot)
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}

	status, err := orch.ProjectStatus(ctx, projectID)
	if err != nil {
		return fmt.Errorf("project status: %w", err)
	}
	printProjectStatus(status)
	return nil
}

func printRunSummary(snapshot map[string]any) {
	if snapshot == nil {
		return
	}
	fmt.Println()
	if status, ok := snapshot["status"].(string); ok {
		fmt.Printf("System status: %s\n", status)
	}
	if phase, ok := snapshot["current_phase"].(string); ok && phase != "" {
		fmt.Printf("Phase: %s\n", phase)
	}
}
