package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <project-name>",
	Short: "Initialize a project",
	Long: `Create a project (or reuse one with the same name), register the agent
crew, and queue the requirements for the project manager.

The project id is printed on success; use it with crewd status.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringP("description", "d", "", "Project description")
	initCmd.Flags().StringP("requirements", "r", "", "Requirements text")
	initCmd.Flags().String("requirements-file", "", "Read requirements from a file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	name := args[0]
	description, _ := cmd.Flags().GetString("description")

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

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	orch := newOrchestrator(cfg, st, nil)
	projectID, err := orch.InitializeProject(context.Background(), name, description, requirements)
	if err != nil {
		return fmt.Errorf("initialize project: %w", err)
	}

	fmt.Printf("Project %q initialized.\n", name)
	fmt.Printf("ID: %s\n", projectID)
	return nil
}
