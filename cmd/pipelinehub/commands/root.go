// Package commands implements the pipelinehub CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pipelinehub",
	Short: "pipelinehub - pipeline HTTP API supervisor",
	Long: `pipelinehub runs the pipeline HTTP API under a service manager that
coordinates startup, graceful shutdown and forced shutdown.

Use "pipelinehub [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
