package inmemory

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"

	"github.com/perchdb/perch"
)

// serverVersion is what an in-process "server" reports during handshake. It
// predates transient-failure autoclose on purpose: every root close resolves
// explicitly, which keeps test expectations deterministic.
const serverVersion = "2.0.0"

// Session is an in-process perch.Session. Writes made through Set and Exec
// are buffered and reach the store only via the root transaction's commit.
// A Session belongs to one execution context, like the transactions it backs.
type Session struct {
	id    perch.UUID
	store *Store

	pendingWrites map[string]any
	pendingStmts  []perch.Statement
}

// NewSession returns a session committing into store.
func NewSession(store *Store) *Session {
	return &Session{
		id:            perch.NewUUID(),
		store:         store,
		pendingWrites: make(map[string]any),
	}
}

func (s *Session) ID() perch.UUID {
	return s.id
}

func (s *Session) Version() string {
	return serverVersion
}

// Transaction opens a new (possibly nested) transaction on this session.
func (s *Session) Transaction(ctx context.Context) *perch.Transaction {
	return perch.Begin(ctx, s)
}

// Set buffers a write; nil value buffers a delete. The write lands in the
// store when the enclosing root transaction commits.
func (s *Session) Set(key string, value any) {
	s.pendingWrites[key] = value
}

// Get reads through the session: buffered writes shadow committed state.
func (s *Session) Get(key string) (any, bool) {
	if v, ok := s.pendingWrites[key]; ok {
		return v, v != nil
	}
	return s.store.Get(key)
}

// Exec buffers a statement for the statement log.
func (s *Session) Exec(stmt perch.Statement) {
	s.pendingStmts = append(s.pendingStmts, stmt)
}

// Pending returns the number of buffered writes.
func (s *Session) Pending() int {
	return len(s.pendingWrites)
}

// Commit applies everything buffered since the last resolution to the store.
func (s *Session) Commit(ctx context.Context, t *perch.Transaction) error {
	s.store.apply(s.pendingWrites, s.pendingStmts)
	n := len(s.pendingWrites)
	s.reset()
	log.Debug("inmemory commit", "session", s.id.String(), "writes", n)
	return nil
}

// Delete discards everything buffered since the last resolution.
func (s *Session) Delete(ctx context.Context, t *perch.Transaction) error {
	s.reset()
	log.Debug("inmemory rollback", "session", s.id.String())
	return nil
}

func (s *Session) reset() {
	s.pendingWrites = make(map[string]any)
	s.pendingStmts = nil
}

// Provider is a process-wide current-session registry implementing
// perch.SessionProvider. Use SetCurrent at the start of a unit of work.
type Provider struct {
	mu  sync.Mutex
	cur perch.Session
}

// SetCurrent installs ses as the ambient session; nil clears it.
func (p *Provider) SetCurrent(ses perch.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur = ses
}

// CurrentOrFail returns the installed session, or a NoActiveSession error.
func (p *Provider) CurrentOrFail(ctx context.Context) (perch.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return nil, perch.Error{Code: perch.NoActiveSession, Err: fmt.Errorf("no current session installed")}
	}
	return p.cur, nil
}
