package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "compare-app",
	Short: "Multi-model compare streaming server",
	Long:  `Runs the same prompt against multiple LLM models concurrently and streams their responses side by side.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
