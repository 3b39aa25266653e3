// Package commands implements the crewd CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "crewd",
	Short: "Multi-agent software development orchestrator",
	Long: `Crewd coordinates a crew of specialized development agents: a project
manager breaks requirements into tasks, and developer, UI/UX, integration,
testing, documentation, and error-handling agents carry them through the
pipeline, checkpointing workflow state after every step.`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
}
