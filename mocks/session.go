// Package mocks provides hand-written session doubles used across the Perch
// test suites.
package mocks

import (
	"context"
	"fmt"

	"github.com/perchdb/perch"
)

// Session records every Commit and Delete it receives and can be primed to
// fail either call.
type Session struct {
	id            perch.UUID
	ServerVersion string

	CommitCount int
	DeleteCount int
	CommitErr   error
	DeleteErr   error
}

// NewSession returns a mock session reporting the given server version.
func NewSession(serverVersion string) *Session {
	return &Session{
		id:            perch.NewUUID(),
		ServerVersion: serverVersion,
	}
}

func (s *Session) ID() perch.UUID {
	return s.id
}

func (s *Session) Version() string {
	return s.ServerVersion
}

func (s *Session) Commit(ctx context.Context, t *perch.Transaction) error {
	s.CommitCount++
	return s.CommitErr
}

func (s *Session) Delete(ctx context.Context, t *perch.Transaction) error {
	s.DeleteCount++
	return s.DeleteErr
}

// Provider is a SessionProvider backed by a fixed session; a nil session
// yields the NoActiveSession error.
type Provider struct {
	Ses perch.Session
}

func (p Provider) CurrentOrFail(ctx context.Context) (perch.Session, error) {
	if p.Ses == nil {
		return nil, perch.Error{Code: perch.NoActiveSession, Err: fmt.Errorf("no current session")}
	}
	return p.Ses, nil
}

// PartialSession embeds UnimplementedSession, leaving Commit and Delete
// unimplemented. It exercises the NotImplemented close path.
type PartialSession struct {
	perch.UnimplementedSession
	id perch.UUID
}

func NewPartialSession() *PartialSession {
	return &PartialSession{id: perch.NewUUID()}
}

func (s *PartialSession) ID() perch.UUID {
	return s.id
}

func (s *PartialSession) Version() string {
	return "2.0.0"
}
