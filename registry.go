package perch

import (
	"context"
	"sync"
)

// Registry holds the per-session stacks of open transactions for one
// execution context. Stacks are created lazily on first use and stay in the
// table (empty) until the registry itself is dropped. The mutex only guards
// table growth; stack contents are operated on sequentially within the owning
// context's call graph.
type Registry struct {
	mu     sync.Mutex
	stacks map[UUID]*txStack
}

// txStack is the ordered nesting stack of one session; index 0 is the root.
type txStack struct {
	items []*Transaction
}

func (s *txStack) push(t *Transaction) {
	s.items = append(s.items, t)
}

// peek returns the innermost open transaction without removing it, nil when empty.
func (s *txStack) peek() *Transaction {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[len(s.items)-1]
}

func (s *txStack) pop() *Transaction {
	t := s.peek()
	if t != nil {
		s.items = s.items[:len(s.items)-1]
	}
	return t
}

// head returns the stack's first entry (the root), nil when empty.
func (s *txStack) head() *Transaction {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[0]
}

func (s *txStack) depth() int {
	return len(s.items)
}

// NewRegistry returns an empty registry. Create one per goroutine or
// request-scoped call tree and attach it with WithRegistry.
func NewRegistry() *Registry {
	return &Registry{stacks: make(map[UUID]*txStack)}
}

// stackFor returns the session's stack, creating it on first use.
func (r *Registry) stackFor(ses Session) *txStack {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stacks[ses.ID()]
	if !ok {
		s = &txStack{}
		r.stacks[ses.ID()] = s
	}
	return s
}

// CurrentFor returns the innermost open transaction for the session, or nil
// when no transaction is active.
func (r *Registry) CurrentFor(ses Session) *Transaction {
	return r.stackFor(ses).peek()
}

// DepthFor returns the session's current nesting depth.
func (r *Registry) DepthFor(ses Session) int {
	return r.stackFor(ses).depth()
}

type registryCtxKey struct{}

// defaultRegistry backs contexts that never attached their own registry.
var defaultRegistry = NewRegistry()

// WithRegistry attaches r to ctx; Begin and Close on that context (and its
// descendants) operate on r's stacks.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryCtxKey{}, r)
}

// RegistryFrom returns the registry carried by ctx, falling back to the
// process-wide default when none was attached. See the package concurrency
// notes for the isolation caveat on the default.
func RegistryFrom(ctx context.Context) *Registry {
	if r, ok := ctx.Value(registryCtxKey{}).(*Registry); ok {
		return r
	}
	return defaultRegistry
}
