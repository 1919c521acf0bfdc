package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"go.pipelinehub.dev/internal/common/lifecycle"
	"go.pipelinehub.dev/internal/config"
	"go.pipelinehub.dev/internal/server"
)

var (
	configPath       string
	gracefulShutdown bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the service manager",
	Long: `Start the service manager and every registered service, then wait for
SIGINT or SIGTERM.

SIGINT drains in-flight requests when --graceful-shutdown is set and stops
immediately otherwise. SIGTERM always stops immediately.

Examples:
  # Start with the default configuration file
  pipelinehub start

  # Start with a custom file and graceful shutdown
  pipelinehub start -p /etc/pipelinehub/settings.toml -g

  # Override a setting from the environment
  APP__API__PORT=9090 pipelinehub start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&configPath, "path", "p", config.DefaultPath, "Path to the configuration file")
	startCmd.Flags().BoolVarP(&gracefulShutdown, "graceful-shutdown", "g", false, "Drain in-flight requests on SIGINT")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := setupLogging(cfg.Log, cmd.ErrOrStderr()); err != nil {
		return err
	}

	slog.Info("Starting pipelinehub",
		"version", Version,
		"build_time", BuildTime,
		"config", configPath,
		"graceful_shutdown", gracefulShutdown)

	ctx := context.Background()

	app, err := server.Initialize(ctx, cfg, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Cleanup()

	manager, err := server.NewServiceManager(app)
	if err != nil {
		return err
	}
	slog.Info("Services registered", "services", manager.Services())

	if err := lifecycle.Run(ctx, manager, lifecycle.RunOptions{Graceful: gracefulShutdown}); err != nil {
		slog.Error("Service manager stopped with error", "error", err)
		return err
	}

	slog.Info("pipelinehub stopped")
	return nil
}
