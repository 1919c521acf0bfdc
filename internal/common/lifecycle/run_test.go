package lifecycle

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"
)

func runWithSignal(t *testing.T, graceful bool, sig os.Signal) *fakeService {
	t.Helper()
	m := NewManager()
	svc := registerFake(t, m, "api")

	signals := make(chan os.Signal, 1)
	signals <- sig

	err := Run(context.Background(), m, RunOptions{
		Graceful:    graceful,
		GracePeriod: -1,
		Signals:     signals,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return svc
}

func expectStops(t *testing.T, svc *fakeService, stops, forces int32) {
	t.Helper()
	if n := svc.stops.Load(); n != stops {
		t.Errorf("Expected %d graceful stops, got %d", stops, n)
	}
	if n := svc.forces.Load(); n != forces {
		t.Errorf("Expected %d force stops, got %d", forces, n)
	}
}

func TestRunSigintGraceful(t *testing.T) {
	svc := runWithSignal(t, true, syscall.SIGINT)

	expectStops(t, svc, 1, 0)
	if svc.scope.IsCancelled() {
		t.Error("Graceful SIGINT must not cancel the service scope")
	}
}

func TestRunSigintWithoutGracefulForces(t *testing.T) {
	svc := runWithSignal(t, false, syscall.SIGINT)

	expectStops(t, svc, 0, 1)
	if !svc.scope.IsCancelled() {
		t.Error("Forced stop should cancel the service scope")
	}
}

func TestRunSigtermAlwaysForces(t *testing.T) {
	svc := runWithSignal(t, true, syscall.SIGTERM)

	expectStops(t, svc, 0, 1)
	if !svc.scope.IsCancelled() {
		t.Error("SIGTERM should cancel the service scope")
	}
}

func TestRunContextCancelForces(t *testing.T) {
	m := NewManager()
	svc := registerFake(t, m, "api")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, m, RunOptions{Graceful: true, GracePeriod: -1, Signals: make(chan os.Signal)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	expectStops(t, svc, 0, 1)
}

func TestRunStartFailure(t *testing.T) {
	m := NewManager()
	svc := registerFake(t, m, "api")
	svc.startErr = errors.New("address in use")

	err := Run(context.Background(), m, RunOptions{GracePeriod: -1, Signals: make(chan os.Signal)})
	if !errors.Is(err, svc.startErr) {
		t.Fatalf("Expected start error, got %v", err)
	}
}

func TestRunGracePeriod(t *testing.T) {
	m := NewManager()
	registerFake(t, m, "api")

	signals := make(chan os.Signal, 1)
	signals <- syscall.SIGTERM

	start := time.Now()
	err := Run(context.Background(), m, RunOptions{GracePeriod: 50 * time.Millisecond, Signals: signals})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected Run to wait out the grace period, returned after %v", elapsed)
	}
}
