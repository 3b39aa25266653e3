package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show project status",
	Long: `Display a project's task progress, error counts, and agent states.

Agent states reflect the live pipeline only; when queried from a separate
process they are reported as unknown.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := initLogging(cmd, cfg); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		orch := newOrchestrator(cfg, st, nil)
		status, err := orch.ProjectStatus(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("project status: %w", err)
		}
		printProjectStatus(status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printProjectStatus(status map[string]any) {
	fmt.Println()
	fmt.Printf("Project: %v (%v)\n", status["name"], status["project_id"])
	fmt.Printf("Status:  %v\n", status["status"])

	if tasks, ok := status["tasks"].(map[string]any); ok {
		fmt.Printf("Tasks:   %v total, %.0f%% complete\n", tasks["total"], toFloat(tasks["completion_percentage"]))
		if byStatus, ok := tasks["by_status"].(map[string]int); ok {
			for _, name := range sortedKeys(byStatus) {
				fmt.Printf("  %-12s %d\n", name, byStatus[name])
			}
		}
	}

	if errs, ok := status["errors"].(map[string]any); ok {
		fmt.Printf("Errors:  %v open, %v resolved\n", errs["open"], errs["resolved"])
	}

	if agentViews, ok := status["agents"].(map[string]any); ok {
		fmt.Println("Agents:")
		for _, role := range sortedKeys(agentViews) {
			fmt.Printf("  %-16s %v\n", role, agentViews[role])
		}
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
