package perch

import (
	"context"
	"fmt"
	log "log/slog"
)

// Work is a block of caller code executed inside a transaction. tx is nil
// when the caller opted out of transaction management (runInTransaction=false).
type Work func(ctx context.Context, tx *Transaction) (any, error)

// Runner executes work blocks inside session transactions with guaranteed
// close-on-exit. The zero value is usable when every Run call passes a
// session explicitly; a SessionProvider is only consulted for calls that rely
// on the ambient session.
type Runner struct {
	provider SessionProvider
}

// NewRunner returns a Runner resolving ambient sessions through p. p may be
// nil, in which case ambient resolution fails with NoActiveSession.
func NewRunner(p SessionProvider) *Runner {
	return &Runner{provider: p}
}

// Run resolves (session, runInTransaction) from args, then executes work.
// When runInTransaction is false the work runs directly with a nil tx and the
// registry is untouched. Otherwise a transaction is opened, and closed on
// every exit path, panics included; a work error marks the transaction failed
// before the close so the root resolution rolls back, and is returned to the
// caller unchanged. A close error is returned only when the work itself
// succeeded; after a work error it is logged as a secondary diagnostic so the
// original failure keeps its identity.
func (r *Runner) Run(ctx context.Context, work Work, args ...any) (any, error) {
	ses, runInTx, err := r.ResolveRunArgs(ctx, args...)
	if err != nil {
		return nil, err
	}
	if !runInTx {
		return work(ctx, nil)
	}
	return r.runInTransaction(ctx, ses, work)
}

func (r *Runner) runInTransaction(ctx context.Context, ses Session, work Work) (out any, err error) {
	tx := Begin(ctx, ses)
	defer func() {
		if p := recover(); p != nil {
			// Keep the stack clean, then let the panic continue.
			tx.MarkFailed()
			if cerr := tx.Close(ctx); cerr != nil {
				log.Warn("transaction close failed during panic unwind", "tx", tx.ID().String(), "error", cerr.Error())
			}
			panic(p)
		}
		if err != nil {
			tx.MarkFailed()
		}
		if cerr := tx.Close(ctx); cerr != nil {
			if err == nil {
				err = cerr
				return
			}
			log.Warn("transaction close failed after work error", "tx", tx.ID().String(), "close_error", cerr.Error(), "work_error", err.Error())
		}
	}()
	out, err = work(ctx, tx)
	return
}

// ResolveRunArgs maps Run's positional arguments onto (session,
// runInTransaction). With no arguments the ambient session is used and the
// work runs in a transaction. A single argument is either the
// runInTransaction flag (session stays ambient) or the session. With two
// arguments, whichever is a bool is the flag and the other must be the
// session, in either order. More than two arguments is an InvalidArgument
// error. Ambient resolution without a provider (or with none registered)
// fails with NoActiveSession.
func (r *Runner) ResolveRunArgs(ctx context.Context, args ...any) (Session, bool, error) {
	switch len(args) {
	case 0:
		ses, err := r.currentSession(ctx)
		return ses, true, err
	case 1:
		if b, ok := args[0].(bool); ok {
			ses, err := r.currentSession(ctx)
			return ses, b, err
		}
		ses, err := asSession(args[0])
		return ses, true, err
	case 2:
		if b, ok := args[0].(bool); ok {
			ses, err := asSession(args[1])
			return ses, b, err
		}
		if b, ok := args[1].(bool); ok {
			ses, err := asSession(args[0])
			return ses, b, err
		}
		return nil, false, Error{Code: InvalidArgument, Err: fmt.Errorf("run: two arguments given but neither is the run-in-transaction flag")}
	default:
		return nil, false, Error{Code: InvalidArgument, Err: fmt.Errorf("run: at most two arguments allowed, got %d", len(args))}
	}
}

func (r *Runner) currentSession(ctx context.Context) (Session, error) {
	if r.provider == nil {
		return nil, Error{Code: NoActiveSession, Err: fmt.Errorf("no session given and no session provider configured")}
	}
	return r.provider.CurrentOrFail(ctx)
}

func asSession(v any) (Session, error) {
	ses, ok := v.(Session)
	if !ok || ses == nil {
		return nil, Error{Code: InvalidArgument, Err: fmt.Errorf("run: argument %T is neither a session nor the run-in-transaction flag", v)}
	}
	return ses, nil
}
