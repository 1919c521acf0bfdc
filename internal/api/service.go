// Package api is the HTTP API sub-service: a chi router behind tracing,
// per-request timeout, metrics and error-mapping layers, served under the
// lifecycle manager.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"vawter.tech/stopper"

	"go.pipelinehub.dev/internal/common/lifecycle"
	"go.pipelinehub.dev/internal/common/metrics"
	"go.pipelinehub.dev/internal/config"
	"go.pipelinehub.dev/internal/devops"
	"go.pipelinehub.dev/internal/pipeline"
)

// State is the lifecycle state of the API service.
type State int32

const (
	StateConstructed State = iota
	StateListening
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Option configures optional collaborators of the service.
type Option func(*Service)

// WithPipelineSource mounts the DevOps project pipeline route.
func WithPipelineSource(src devops.PipelineSource) Option {
	return func(s *Service) { s.pipelines = src }
}

// WithRepository mounts the stored pipeline routes.
func WithRepository(repo pipeline.Repository) Option {
	return func(s *Service) { s.repo = repo }
}

// WithTracer overrides the tracer used for server spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithRoutes mounts additional routes under /api, inside the error-mapping
// layer.
func WithRoutes(mount func(r chi.Router)) Option {
	return func(s *Service) { s.extraRoutes = append(s.extraRoutes, mount) }
}

// Service serves the HTTP API. It implements lifecycle.ManagedService.
type Service struct {
	scope          *lifecycle.Scope
	addr           string
	requestTimeout time.Duration
	drainTimeout   time.Duration

	tracer      trace.Tracer
	pipelines   devops.PipelineSource
	repo        pipeline.Repository
	extraRoutes []func(chi.Router)

	registry *prometheus.Registry
	metrics  *metrics.HTTPMetrics
	handler  http.Handler
	openAPI  []byte

	state atomic.Int32

	mu       sync.Mutex
	listener net.Listener
	sctx     *stopper.Context
	done     chan struct{}
	serveErr error
}

var _ lifecycle.ManagedService = (*Service)(nil)

// NewService builds the API service bound to scope. Nothing is bound until
// Start; an unusable address or timeout is reported here.
func NewService(scope *lifecycle.Scope, cfg config.APIConfig, opts ...Option) (*Service, error) {
	addr := cfg.ListenAddr()
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return nil, fmt.Errorf("invalid api listen address %q: %w", addr, err)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("invalid api timeout: %d", cfg.Timeout)
	}

	s := &Service{
		scope:          scope,
		addr:           addr,
		requestTimeout: cfg.RequestTimeout(),
		drainTimeout:   cfg.DrainTimeout(),
		tracer:         otel.Tracer("pipelinehub/api"),
		registry:       prometheus.NewRegistry(),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.metrics = metrics.NewHTTPMetrics(s.registry, cfg.MetricsIgnore)
	s.handler = s.routes()

	doc, err := buildOpenAPI(s.routeDocs())
	if err != nil {
		return nil, fmt.Errorf("failed to build openapi document: %w", err)
	}
	s.openAPI = doc

	return s, nil
}

// Handler returns the assembled HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

func (s *Service) setState(st State) {
	s.state.Store(int32(st))
}

// Addr returns the bound listen address, or the configured one before Start.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listener and serves in the background.
func (s *Service) Start() error {
	if s.scope.IsCancelled() {
		return lifecycle.ErrScopeCancelled
	}
	if !s.state.CompareAndSwap(int32(StateConstructed), int32(StateListening)) {
		return lifecycle.ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.setState(StateStopped)
		close(s.done)
		return &BindError{Addr: s.addr, Err: err}
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.requestTimeout,
		BaseContext:       func(net.Listener) context.Context { return s.scope },
	}

	sctx := stopper.WithContext(s.scope)

	s.mu.Lock()
	s.listener = ln
	s.sctx = sctx
	s.mu.Unlock()

	slog.Info("API server listening", "addr", ln.Addr().String())

	sctx.Go(func(sctx *stopper.Context) error {
		return s.serve(sctx, srv, ln)
	})
	return nil
}

// serve runs the HTTP server until it fails, is drained by Stop, or is
// closed by scope cancellation.
func (s *Service) serve(sctx *stopper.Context, srv *http.Server, ln net.Listener) (err error) {
	defer func() {
		s.setState(StateStopped)
		s.mu.Lock()
		s.serveErr = err
		s.mu.Unlock()
		close(s.done)
		slog.Info("API server stopped", "addr", ln.Addr().String())
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("API server failed", "error", err)
		return err

	case <-sctx.Stopping():
		// StopForce cancels the scope before stopping the stopper, so both
		// cases can be ready at once.
		if s.scope.IsCancelled() {
			s.abandon(srv)
			break
		}

		s.setState(StateDraining)
		slog.Info("Draining API server", "timeout", s.drainTimeout)

		ctx, cancel := context.WithTimeout(s.scope, s.drainTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("API server drain incomplete, closing connections", "error", err)
			_ = srv.Close()
		}

	case <-s.scope.Done():
		s.abandon(srv)
	}

	<-errCh
	return nil
}

// abandon closes the listener and every connection without draining.
func (s *Service) abandon(srv *http.Server) {
	slog.Info("API scope cancelled, closing connections")
	_ = srv.Close()
}

// Stop stops accepting connections and drains in-flight requests for up to
// the configured shutdown timeout, then returns once the server has exited.
func (s *Service) Stop(ctx context.Context) error {
	if s.state.CompareAndSwap(int32(StateConstructed), int32(StateStopped)) {
		close(s.done)
		return nil
	}

	s.mu.Lock()
	sctx := s.sctx
	s.mu.Unlock()
	if sctx != nil {
		sctx.Stop(s.drainTimeout)
	}
	return s.wait(ctx)
}

// StopForce cancels the service scope, dropping in-flight requests, and waits
// for the server to exit. It is safe to call more than once.
func (s *Service) StopForce(ctx context.Context) error {
	s.scope.Cancel()
	if s.state.CompareAndSwap(int32(StateConstructed), int32(StateStopped)) {
		close(s.done)
		return nil
	}

	s.mu.Lock()
	sctx := s.sctx
	s.mu.Unlock()
	if sctx != nil {
		sctx.Stop(0)
	}
	return s.wait(ctx)
}

// wait blocks until the serve loop has exited or ctx ends.
func (s *Service) wait(ctx context.Context) error {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.serveErr
	case <-ctx.Done():
		return fmt.Errorf("api server did not stop: %w", ctx.Err())
	}
}
