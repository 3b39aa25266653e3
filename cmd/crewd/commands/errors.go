package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/crewd/internal/store"
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List recorded errors",
	Long: `List errors recorded by the pipeline, newest first.

Filter with --status (open, resolved) or --task to scope to one task.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFilter, _ := cmd.Flags().GetString("status")
		taskID, _ := cmd.Flags().GetString("task")

		if statusFilter != "" && statusFilter != store.ErrorOpen && statusFilter != store.ErrorResolved {
			return fmt.Errorf("invalid status %q (expected open or resolved)", statusFilter)
		}

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

		var records []*store.ErrorRecord
		if taskID != "" {
			records, err = st.ErrorsByTask(taskID)
		} else {
			records, err = st.AllErrors(statusFilter)
		}
		if err != nil {
			return fmt.Errorf("list errors: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No errors found.")
			return nil
		}

		for _, rec := range records {
			if taskID != "" && statusFilter != "" && rec.Status != statusFilter {
				continue
			}
			fmt.Printf("%s  [%s] %-14s %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"),
				rec.Status, rec.ErrorType, rec.ErrorMessage)
			if rec.Resolution != "" {
				fmt.Printf("    resolution: %s\n", rec.Resolution)
			}
		}
		return nil
	},
}

func init() {
	errorsCmd.Flags().String("status", "", "Filter by status (open, resolved)")
	errorsCmd.Flags().String("task", "", "Filter by task id")
	rootCmd.AddCommand(errorsCmd)
}
