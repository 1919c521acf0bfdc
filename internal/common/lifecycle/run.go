package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// DefaultGracePeriod is how long Run lingers after stopping services so that
// background tasks can log their final state.
const DefaultGracePeriod = time.Second

// RunOptions configures Run.
type RunOptions struct {
	// Graceful selects a draining stop on SIGINT. SIGTERM always forces.
	Graceful bool

	// GracePeriod is the pause after stopping, before Run returns.
	// Zero means DefaultGracePeriod; negative disables the pause.
	GracePeriod time.Duration

	// Signals overrides the OS signal source. Used by tests.
	Signals <-chan os.Signal
}

// Run starts the manager's services and blocks until SIGINT, SIGTERM or the
// end of ctx. SIGINT stops gracefully when opts.Graceful is set and forces
// otherwise; SIGTERM and context cancellation always force.
//
// Usage:
//
//	err := lifecycle.Run(ctx, manager, lifecycle.RunOptions{Graceful: true})
func Run(ctx context.Context, m *Manager, opts RunOptions) error {
	if err := m.Start(); err != nil {
		return err
	}

	signals := opts.Signals
	if signals == nil {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)
		signals = quit
	}

	var err error
	select {
	case sig := <-signals:
		if sig == syscall.SIGINT && opts.Graceful {
			slog.Info("Shutdown signal received, stopping gracefully", "signal", sig.String())
			err = m.Stop(context.Background())
		} else {
			slog.Info("Shutdown signal received, stopping force", "signal", sig.String())
			err = m.StopForce(context.Background())
		}
	case <-ctx.Done():
		slog.Info("Shutdown triggered programmatically")
		err = m.StopForce(context.Background())
	}

	grace := opts.GracePeriod
	if grace == 0 {
		grace = DefaultGracePeriod
	}
	if grace > 0 {
		time.Sleep(grace)
	}
	return err
}
