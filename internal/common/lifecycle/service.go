// Package lifecycle provides the process-wide service lifecycle: a
// cancellation scope tree, the ManagedService contract, and the Manager that
// starts and stops every registered service.
//
// Each sub-service (today the HTTP API) implements ManagedService and is
// constructed with a child of the Manager's root scope, so a forced stop
// reaches it without the Manager knowing its internals.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrLockContention is returned when a lifecycle operation finds a
	// service handle already held by another operation. It signals caller
	// misuse (for example concurrent Start and Stop) and is never retried.
	ErrLockContention = errors.New("service handle is held by another lifecycle operation")

	// ErrAlreadyStarted is returned by Start on a service that has left the
	// constructed state.
	ErrAlreadyStarted = errors.New("service already started")

	// ErrScopeCancelled is returned by Start when the service scope was
	// cancelled before the service ever ran.
	ErrScopeCancelled = errors.New("service scope already cancelled")
)

// ManagedService is a sub-service supervised by the Manager.
type ManagedService interface {
	// Start binds resources and schedules the service's work in the
	// background. It returns once the service is ready, not when it stops.
	Start() error

	// Stop asks the service to finish in-flight work and stop accepting new
	// work, bounded by the service's own drain timeout and by ctx.
	Stop(ctx context.Context) error

	// StopForce waits for the service to terminate after its scope has been
	// cancelled. In-flight work is abandoned rather than drained.
	StopForce(ctx context.Context) error
}

// Handle is an exclusively-held slot wrapping one ManagedService.
// Acquisition never blocks: a held handle fails fast with ErrLockContention.
type Handle struct {
	name string
	mu   sync.Mutex
	svc  ManagedService
}

// NewHandle wraps svc under the given name.
func NewHandle(name string, svc ManagedService) *Handle {
	return &Handle{name: name, svc: svc}
}

// Name returns the service name used in logs and errors.
func (h *Handle) Name() string { return h.name }

// With runs fn with exclusive access to the wrapped service.
func (h *Handle) With(fn func(svc ManagedService) error) error {
	if !h.mu.TryLock() {
		return fmt.Errorf("%w: %s", ErrLockContention, h.name)
	}
	defer h.mu.Unlock()
	return fn(h.svc)
}

// ServiceFunc adapts plain functions to the ManagedService interface.
// Useful for wrapping background loops that don't need their own type.
type ServiceFunc struct {
	startFunc     func() error
	stopFunc      func(ctx context.Context) error
	stopForceFunc func(ctx context.Context) error
}

// NewServiceFunc creates a ManagedService from functions. A nil stopForce
// falls back to stop.
func NewServiceFunc(start func() error, stop, stopForce func(ctx context.Context) error) *ServiceFunc {
	if stopForce == nil {
		stopForce = stop
	}
	return &ServiceFunc{
		startFunc:     start,
		stopFunc:      stop,
		stopForceFunc: stopForce,
	}
}

func (s *ServiceFunc) Start() error { return s.startFunc() }
func (s *ServiceFunc) Stop(ctx context.Context) error { return s.stopFunc(ctx) }
func (s *ServiceFunc) StopForce(ctx context.Context) error { return s.stopForceFunc(ctx) }
