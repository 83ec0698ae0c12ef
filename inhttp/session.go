package inhttp

import (
	"context"
	"fmt"
	log "log/slog"
	"net/http"

	"github.com/sethvargo/go-retry"

	"github.com/perchdb/perch"
)

// Session is a perch.Session over a remote PerchDB server. The remote
// transaction is opened lazily: Begin on the client side is free, and the
// server is first contacted when a statement runs or the root close commits.
// A Session belongs to one execution context.
type Session struct {
	id     perch.UUID
	client *Client
	info   perch.ServerInfo
	db     string

	// remoteID is set once the server-side transaction exists.
	remoteID string
}

// NewSession connects to the server, performs the version handshake and
// returns a session ready to open transactions.
func NewSession(ctx context.Context, opts perch.ConnectionOptions) (*Session, error) {
	if opts.IsEmpty() {
		return nil, fmt.Errorf("new session: connection options are missing the server base URL")
	}
	c := NewClient(opts)
	info, err := c.Handshake(ctx)
	if err != nil {
		return nil, fmt.Errorf("new session: handshake with %s failed: %w", opts.BaseURL, err)
	}
	log.Debug("session connected", "server", info.Name, "version", info.Version)
	return &Session{
		id:     perch.NewUUID(),
		client: c,
		info:   info,
		db:     opts.DatabaseOrDefault(),
	}, nil
}

func (s *Session) ID() perch.UUID {
	return s.id
}

// Version returns the server version negotiated during the handshake.
func (s *Session) Version() string {
	return s.info.Version
}

// Transaction opens a new (possibly nested) transaction on this session.
func (s *Session) Transaction(ctx context.Context) *perch.Transaction {
	return perch.Begin(ctx, s)
}

// Started reports whether a server-side transaction is currently open.
func (s *Session) Started() bool {
	return s.remoteID != ""
}

// Run executes statements inside the session's open transaction, beginning
// the server-side transaction on first use.
func (s *Session) Run(ctx context.Context, stmts ...perch.Statement) ([]perch.StatementResult, error) {
	req := &perch.TxRequest{Statements: stmts}
	method, path := http.MethodPost, apiBase+"/tx"
	if s.Started() {
		path = apiBase + "/tx/" + s.remoteID
	}
	status, resp, err := s.client.doTx(ctx, method, path, req)
	if err != nil {
		return nil, err
	}
	if expired(status, resp) {
		s.remoteID = ""
		return nil, perch.Error{Code: perch.TransactionExpired, Err: apiError(method, path, status, resp)}
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, apiError(method, path, status, resp)
	}
	if resp.ID != "" {
		s.remoteID = resp.ID
	}
	return resp.Results, nil
}

// Commit finalizes the server-side transaction. Called by the root
// transaction's post-close resolution; a transaction that never reached the
// server commits trivially. Commits are sent exactly once, never retried.
func (s *Session) Commit(ctx context.Context, t *perch.Transaction) error {
	if !s.Started() {
		return nil
	}
	path := apiBase + "/tx/" + s.remoteID + "/commit"
	s.remoteID = ""
	status, resp, err := s.client.doTx(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	if expired(status, resp) {
		t.MarkExpired()
		return perch.Error{Code: perch.TransactionExpired, Err: apiError(http.MethodPost, path, status, resp)}
	}
	if status != http.StatusOK {
		return apiError(http.MethodPost, path, status, resp)
	}
	return nil
}

// Delete rolls the server-side transaction back. Rollback delivery is
// idempotent, so transient transport failures are retried.
func (s *Session) Delete(ctx context.Context, t *perch.Transaction) error {
	if !s.Started() {
		return nil
	}
	path := apiBase + "/tx/" + s.remoteID
	s.remoteID = ""
	return perch.Retry(ctx, func(ctx context.Context) error {
		status, resp, err := s.client.doTx(ctx, http.MethodDelete, path, nil)
		if err != nil {
			if perch.ShouldRetry(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		if expired(status, resp) {
			// The server discarded it already; the rollback outcome holds.
			t.MarkExpired()
			log.Debug("rollback of expired transaction", "path", path)
			return nil
		}
		if status != http.StatusOK && status != http.StatusNoContent {
			return apiError(http.MethodDelete, path, status, resp)
		}
		return nil
	}, nil)
}
