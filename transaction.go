// Package perch contains the session-scoped nested transaction coordinator
// used by all PerchDB backends (inhttp, inmemory).
package perch

import (
	"context"
	"fmt"
	log "log/slog"
)

// Transaction is one entry in a session's nesting stack. Nested closes only
// pop; the outermost ("root") close performs post-close resolution: nothing
// when autoclosed, Delete when failed, Commit otherwise. A Transaction is not
// safe for use across goroutines.
type Transaction struct {
	id       UUID
	session  Session
	registry *Registry
	// root is the stack head at the moment this transaction was pushed. It is
	// a non-owning reference, used only to propagate expiry root-wide.
	root *Transaction

	closed     bool
	failed     bool
	expired    bool
	autoclosed bool
}

// Begin opens a transaction on the session, nesting inside any transaction
// already open in ctx's registry. It never fails: the backend is only
// contacted when the root transaction closes.
func Begin(ctx context.Context, ses Session) *Transaction {
	reg := RegistryFrom(ctx)
	t := &Transaction{
		id:       NewUUID(),
		session:  ses,
		registry: reg,
	}
	s := reg.stackFor(ses)
	if head := s.head(); head != nil {
		t.root = head
	} else {
		t.root = t
	}
	s.push(t)
	log.Debug("transaction open", "tx", t.id.String(), "session", ses.ID().String(), "depth", s.depth())
	return t
}

// ID returns the transaction's client-side ID.
func (t *Transaction) ID() UUID {
	return t.id
}

// Session returns the session this transaction runs against.
func (t *Transaction) Session() Session {
	return t.session
}

// Root returns the outermost transaction of this transaction's nesting stack.
// For the first transaction opened on an idle session, Root is the
// transaction itself.
func (t *Transaction) Root() *Transaction {
	return t.root
}

// Active reports whether the transaction has not been closed yet.
func (t *Transaction) Active() bool {
	return !t.closed
}

// MarkFailed flags the transaction so that a root close rolls back instead of
// committing. Idempotent; it does not touch the stack. Nested failures reach
// the root through the runner's error propagation: each enclosing Run marks
// its own transaction as the error travels up.
func (t *Transaction) MarkFailed() {
	t.failed = true
}

// Failed reports whether the transaction was marked failed.
func (t *Transaction) Failed() bool {
	return t.failed
}

// MarkExpired records that the backend discarded the transaction. Expiry is a
// root-wide property, so the root is always flagged as well. Perch itself
// never branches on it; it is informational state for callers.
func (t *Transaction) MarkExpired() {
	t.expired = true
	t.root.expired = true
}

// Expired reports whether the transaction (or its nesting tree) expired.
func (t *Transaction) Expired() bool {
	return t.expired
}

// MarkAutoclosed records that the server already resolved the transaction on
// its own. Only servers at 2.2.6 or later do this; against older servers the
// call is a no-op so the root close still sends an explicit commit or delete.
func (t *Transaction) MarkAutoclosed() {
	if SupportsTransientAutoclose(t.session.Version()) {
		t.autoclosed = true
	}
}

// Autoclosed reports whether the server resolved this transaction itself.
func (t *Transaction) Autoclosed() bool {
	return t.autoclosed
}

// Close pops the transaction off its session's stack. Closing the outermost
// transaction (the stack's last entry) also resolves the transaction's fate
// on the backend. Closing out of nesting order is a usage error: the stack is
// checked before popping and left untouched on violation.
func (t *Transaction) Close(ctx context.Context) error {
	s := t.registry.stackFor(t.session)
	top := s.peek()
	if top == nil {
		return Error{Code: StackEmpty, Err: fmt.Errorf("close transaction %s: no open transaction on session %s", t.id.String(), t.session.ID().String())}
	}
	if top != t {
		return Error{Code: NotTopOfStack, Err: fmt.Errorf("close transaction %s: transaction %s is more deeply nested and must close first", t.id.String(), top.id.String())}
	}
	s.pop()
	t.closed = true
	log.Debug("transaction closed", "tx", t.id.String(), "session", t.session.ID().String(), "depth", s.depth())
	if s.depth() > 0 {
		// Nested close; the root decides commit vs. rollback later.
		return nil
	}
	return t.resolve(ctx)
}

// resolve performs post-close resolution after a root close emptied the stack.
func (t *Transaction) resolve(ctx context.Context) error {
	switch {
	case t.autoclosed:
		// The server already resolved it; sending commit or delete would
		// target a transaction that no longer exists.
		return nil
	case t.failed:
		return t.session.Delete(ctx, t)
	default:
		return t.session.Commit(ctx, t)
	}
}
