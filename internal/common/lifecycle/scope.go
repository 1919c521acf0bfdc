package lifecycle

import (
	"context"
	"sync"
	"time"
)

// scopeTree is the arena backing a family of scopes. Nodes refer to their
// children by index, so cancellation walks a flat slice rather than a graph
// of closures.
type scopeTree struct {
	mu    sync.Mutex
	nodes []scopeNode
}

type scopeNode struct {
	children  []int
	cancelled bool
	done      chan struct{}
}

// Scope is a one-shot, hierarchical cancellation signal.
//
// Cancelling a scope cancels every scope derived from it. A scope created
// from an already-cancelled parent starts out cancelled. Scope satisfies
// context.Context, so it can be handed to anything that takes a context.
type Scope struct {
	tree *scopeTree
	id   int
	done chan struct{}
}

var _ context.Context = (*Scope)(nil)

// NewScope creates a root scope.
func NewScope() *Scope {
	t := &scopeTree{}
	return t.add(-1)
}

// add appends a node under parent and returns its handle.
func (t *scopeTree) add(parent int) *Scope {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := len(t.nodes)
	node := scopeNode{done: make(chan struct{})}
	if parent >= 0 {
		t.nodes[parent].children = append(t.nodes[parent].children, id)
		if t.nodes[parent].cancelled {
			node.cancelled = true
			close(node.done)
		}
	}
	t.nodes = append(t.nodes, node)

	return &Scope{tree: t, id: id, done: node.done}
}

// NewChild creates a scope that is cancelled together with s but can also be
// cancelled on its own.
func (s *Scope) NewChild() *Scope {
	return s.tree.add(s.id)
}

// ID identifies the scope within its tree. The root is always 0.
func (s *Scope) ID() int {
	return s.id
}

// Cancel cancels s and all of its descendants. It is idempotent. Every
// descendant's done channel is closed before Cancel returns.
func (s *Scope) Cancel() {
	t := s.tree
	t.mu.Lock()
	defer t.mu.Unlock()

	stack := []int{s.id}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[id]
		if n.cancelled {
			// descendants of a cancelled node are already cancelled
			continue
		}
		n.cancelled = true
		close(n.done)
		stack = append(stack, n.children...)
	}
}

// IsCancelled reports whether s or any ancestor has been cancelled.
func (s *Scope) IsCancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Cancelled returns a channel that is closed once s is cancelled.
func (s *Scope) Cancelled() <-chan struct{} {
	return s.done
}

// Deadline implements context.Context. Scopes never carry a deadline.
func (s *Scope) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

// Done implements context.Context.
func (s *Scope) Done() <-chan struct{} {
	return s.done
}

// Err implements context.Context.
func (s *Scope) Err() error {
	if s.IsCancelled() {
		return context.Canceled
	}
	return nil
}

// Value implements context.Context. Scopes carry no values.
func (s *Scope) Value(any) any {
	return nil
}
