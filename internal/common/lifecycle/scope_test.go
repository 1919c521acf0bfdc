package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewScope(t *testing.T) {
	root := NewScope()

	if root.ID() != 0 {
		t.Errorf("Expected root id 0, got %d", root.ID())
	}
	if root.IsCancelled() {
		t.Error("New scope should not be cancelled")
	}
	if root.Err() != nil {
		t.Errorf("Expected nil Err, got %v", root.Err())
	}
}

func TestScopeCancelPropagatesToDescendants(t *testing.T) {
	root := NewScope()
	child := root.NewChild()
	grandchild := child.NewChild()
	sibling := root.NewChild()

	root.Cancel()

	for name, s := range map[string]*Scope{
		"root":       root,
		"child":      child,
		"grandchild": grandchild,
		"sibling":    sibling,
	} {
		if !s.IsCancelled() {
			t.Errorf("Expected %s to be cancelled", name)
		}
		if !errors.Is(s.Err(), context.Canceled) {
			t.Errorf("Expected %s Err to be context.Canceled, got %v", name, s.Err())
		}
	}
}

func TestScopeChildCancelDoesNotReachParent(t *testing.T) {
	root := NewScope()
	child := root.NewChild()
	grandchild := child.NewChild()
	sibling := root.NewChild()

	child.Cancel()

	if root.IsCancelled() {
		t.Error("Parent must not be cancelled by child")
	}
	if sibling.IsCancelled() {
		t.Error("Sibling must not be cancelled by child")
	}
	if !grandchild.IsCancelled() {
		t.Error("Grandchild should be cancelled with its parent")
	}
}

func TestScopeCancelIsIdempotent(t *testing.T) {
	root := NewScope()
	child := root.NewChild()

	root.Cancel()
	root.Cancel()
	child.Cancel()

	if !child.IsCancelled() {
		t.Error("Expected child to stay cancelled")
	}
}

func TestScopeChildOfCancelledParentStartsCancelled(t *testing.T) {
	root := NewScope()
	root.Cancel()

	child := root.NewChild()
	if !child.IsCancelled() {
		t.Error("Child of a cancelled scope should start cancelled")
	}
}

func TestScopeCancelledWakesAllWaiters(t *testing.T) {
	root := NewScope()
	scopes := []*Scope{root, root.NewChild(), root.NewChild().NewChild()}

	var wg sync.WaitGroup
	for _, s := range scopes {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(s *Scope) {
				defer wg.Done()
				<-s.Cancelled()
			}(s)
		}
	}

	root.Cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Not every waiter observed cancellation")
	}
}

func TestScopeAsContext(t *testing.T) {
	root := NewScope()
	child := root.NewChild()

	ctx, cancel := context.WithTimeout(child, time.Minute)
	defer cancel()

	if _, ok := child.Deadline(); ok {
		t.Error("Scope should not report a deadline")
	}
	if child.Value("anything") != nil {
		t.Error("Scope should carry no values")
	}

	root.Cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Derived context was not cancelled with the scope")
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", ctx.Err())
	}
}
