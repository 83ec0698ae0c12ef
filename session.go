package perch

import (
	"context"
	"fmt"
)

// Session is a handle to a logical database connection against which
// transactions run. The registry keys transaction stacks by the session's ID;
// Commit and Delete are only ever invoked by a root transaction's post-close
// resolution. Concrete implementations live in the backend subpackages.
type Session interface {
	// ID identifies the session for registry bookkeeping.
	ID() UUID
	// Version is the server version the session negotiated, e.g. "2.3.1".
	// It gates the transient-failure autoclose behavior.
	Version() string
	// Commit finalizes the transaction on the backend.
	Commit(ctx context.Context, t *Transaction) error
	// Delete rolls the transaction back on the backend.
	Delete(ctx context.Context, t *Transaction) error
}

// SessionProvider resolves the ambient session for callers that do not pass
// one to Run explicitly.
type SessionProvider interface {
	// CurrentOrFail returns the current session, or a NoActiveSession error
	// when none is registered.
	CurrentOrFail(ctx context.Context) (Session, error)
}

// UnimplementedSession can be embedded by session backends under construction.
// Its Commit and Delete fail with NotImplemented, which surfaces as the root
// close error instead of silently resolving the transaction.
type UnimplementedSession struct{}

func (UnimplementedSession) Commit(ctx context.Context, t *Transaction) error {
	return Error{Code: NotImplemented, Err: fmt.Errorf("commit is not implemented by this session backend")}
}

func (UnimplementedSession) Delete(ctx context.Context, t *Transaction) error {
	return Error{Code: NotImplemented, Err: fmt.Errorf("delete is not implemented by this session backend")}
}
