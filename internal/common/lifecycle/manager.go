package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Factory constructs a ManagedService bound to the given child scope.
type Factory func(scope *Scope) (ManagedService, error)

// Manager is the single authority over the lifecycle of every registered
// service. It owns the root scope; each service receives a child of it.
type Manager struct {
	root    *Scope
	handles []*Handle
}

// NewManager creates a manager with a fresh root scope and no services.
func NewManager() *Manager {
	return &Manager{root: NewScope()}
}

// Scope returns the root scope. Cancelling it force-stops every service.
func (m *Manager) Scope() *Scope {
	return m.root
}

// Register constructs a service with a child scope and adds it to the
// manager. Construction failures are configuration errors and are returned
// as-is for the caller to abort on.
func (m *Manager) Register(name string, build Factory) error {
	svc, err := build(m.root.NewChild())
	if err != nil {
		return fmt.Errorf("failed to construct service %s: %w", name, err)
	}
	m.handles = append(m.handles, NewHandle(name, svc))
	slog.Debug("Service registered", "service", name)
	return nil
}

// Services returns the registered service names in start order.
func (m *Manager) Services() []string {
	names := make([]string, 0, len(m.handles))
	for _, h := range m.handles {
		names = append(names, h.Name())
	}
	return names
}

// Start starts services in registration order. Start does not block on the
// services' work. If one fails, the services already started are
// force-stopped and the error is returned.
func (m *Manager) Start() error {
	var started []*Handle
	for _, h := range m.handles {
		slog.Info("Starting service", "service", h.Name())

		err := h.With(func(svc ManagedService) error {
			return svc.Start()
		})
		if err != nil {
			m.abort(started)
			return fmt.Errorf("service %s failed to start: %w", h.Name(), err)
		}

		started = append(started, h)
		slog.Info("Service started", "service", h.Name())
	}
	return nil
}

// abort force-stops services that were started before a later one failed.
func (m *Manager) abort(started []*Handle) {
	for i := len(started) - 1; i >= 0; i-- {
		h := started[i]
		_ = h.With(func(svc ManagedService) error {
			if err := svc.StopForce(context.Background()); err != nil {
				slog.Error("Service stop error", "service", h.Name(), "error", err)
			}
			return nil
		})
	}
}

// Stop gracefully stops services in reverse registration order. It is a
// cooperative request: the root scope is left alone, so each service drains
// within its own timeout. Stopping an already stopped manager is a no-op.
func (m *Manager) Stop(ctx context.Context) error {
	slog.Info("Stopping service manager gracefully")

	var errs []error
	for i := len(m.handles) - 1; i >= 0; i-- {
		h := m.handles[i]
		slog.Info("Stopping service", "service", h.Name())

		err := h.With(func(svc ManagedService) error {
			return svc.Stop(ctx)
		})
		if err != nil {
			slog.Error("Service stop error", "service", h.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		slog.Info("Service stopped", "service", h.Name())
	}
	return errors.Join(errs...)
}

// StopForce cancels the root scope, aborting in-flight work in every
// service, then waits for each service to terminate. The cancellation itself
// always happens; an error only reports a handle held by a concurrent
// lifecycle call, or a service that did not exit before ctx ended.
func (m *Manager) StopForce(ctx context.Context) error {
	slog.Info("Stopping service manager force")
	m.root.Cancel()

	var errs []error
	for i := len(m.handles) - 1; i >= 0; i-- {
		h := m.handles[i]
		err := h.With(func(svc ManagedService) error {
			return svc.StopForce(ctx)
		})
		if err != nil {
			slog.Warn("Service force stop incomplete", "service", h.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
