// Package server wires the infrastructure named in Settings into a
// lifecycle.Manager running the API service.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"go.pipelinehub.dev/internal/api"
	"go.pipelinehub.dev/internal/common/lifecycle"
	"go.pipelinehub.dev/internal/common/telemetry"
	"go.pipelinehub.dev/internal/config"
	"go.pipelinehub.dev/internal/devops"
	"go.pipelinehub.dev/internal/pipeline"
)

// App holds initialized infrastructure that is guaranteed to be connected.
// If you have an *App, every configured backend answered its ping.
type App struct {
	Settings  config.Settings
	Telemetry *telemetry.Provider
	Store     *pipeline.Store
	Pipelines devops.PipelineSource

	cleanupFuncs []func() error
}

// Initialize connects the backends enabled in cfg. On error, whatever was
// already connected is released.
func Initialize(ctx context.Context, cfg config.Settings, version string) (*App, error) {
	app := &App{Settings: cfg}

	slog.Debug("Resolved settings", "settings", fmt.Sprintf("%+v", cfg.Masked()))

	tp, err := telemetry.Init(ctx, cfg.Telemetry, version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	app.Telemetry = tp
	app.AddCleanup(func() error {
		return tp.Shutdown(context.Background())
	})

	if err := app.initStore(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initDevOps(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

func (app *App) initStore(ctx context.Context) error {
	db := app.Settings.Database
	if db.Driver == config.DriverNone {
		slog.Info("No database configured, pipeline routes disabled")
		return nil
	}

	slog.Info("Opening pipeline store", "driver", db.Driver)
	store, err := pipeline.Open(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to open pipeline store: %w", err)
	}
	app.Store = store
	app.AddCleanup(func() error {
		slog.Info("Closing pipeline store", "driver", db.Driver)
		return store.Close(context.Background())
	})
	return nil
}

func (app *App) initDevOps(ctx context.Context) error {
	cfg := app.Settings.DevOps
	if cfg.BaseURL == "" {
		slog.Info("No DevOps base URL configured, project pipeline route disabled")
		return nil
	}

	clientCfg := devops.DefaultClientConfig()
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.AccessToken = cfg.AccessToken
	clientCfg.UserID = cfg.UserID
	clientCfg.Timeout = cfg.ClientTimeout()
	clientCfg.RateLimit = cfg.RateLimit

	var source devops.PipelineSource = devops.NewClient(clientCfg, nil)

	if cfg.RedisURL != "" {
		rdb, err := devops.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		app.AddCleanup(func() error {
			slog.Info("Disconnecting from Redis")
			return rdb.Close()
		})
		source = devops.NewCachedSource(source, rdb, cfg.CacheLifetime())
	}

	app.Pipelines = source
	return nil
}

// AddCleanup registers a cleanup function to be called on shutdown.
// Functions are called in reverse order of registration.
func (app *App) AddCleanup(fn func() error) {
	app.cleanupFuncs = append(app.cleanupFuncs, fn)
}

// Cleanup runs all cleanup functions in reverse order.
func (app *App) Cleanup() {
	for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
		if err := app.cleanupFuncs[i](); err != nil {
			slog.Error("Cleanup error", "error", err)
		}
	}
	app.cleanupFuncs = nil
}

// apiOptions maps the connected backends onto API service options.
func (app *App) apiOptions() []api.Option {
	opts := []api.Option{
		api.WithTracer(app.Telemetry.Tracer("pipelinehub/api")),
	}
	if app.Store != nil {
		opts = append(opts, api.WithRepository(app.Store))
	}
	if app.Pipelines != nil {
		opts = append(opts, api.WithPipelineSource(app.Pipelines))
	}
	return opts
}

// resources releases the App's backends when the manager stops. It is
// registered first so it is stopped last, after the API has drained.
func (app *App) resources(*lifecycle.Scope) (lifecycle.ManagedService, error) {
	release := func(context.Context) error {
		app.Cleanup()
		return nil
	}
	return lifecycle.NewServiceFunc(func() error { return nil }, release, nil), nil
}

// NewServiceManager builds the manager with every sub-service registered.
// A construction failure, such as an unusable listen address, is a
// configuration error.
func NewServiceManager(app *App, opts ...api.Option) (*lifecycle.Manager, error) {
	m := lifecycle.NewManager()

	if err := m.Register("resources", app.resources); err != nil {
		return nil, err
	}

	apiOpts := append(app.apiOptions(), opts...)
	err := m.Register("api", func(scope *lifecycle.Scope) (lifecycle.ManagedService, error) {
		return api.NewService(scope, app.Settings.API, apiOpts...)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
