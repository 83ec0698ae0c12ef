package perch

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	Unknown ErrorCode = iota
	// StackEmpty: Close was called with no open transaction on the session's stack.
	StackEmpty
	// NotTopOfStack: Close was called on a transaction while a more deeply
	// nested one is still open.
	NotTopOfStack
	// NotImplemented: the session backend did not supply Commit or Delete.
	NotImplemented
	// InvalidArgument: run argument resolution was handed arguments it cannot
	// map onto (session, runInTransaction).
	InvalidArgument
	// NoActiveSession: no ambient session was resolvable.
	NoActiveSession
	// TransactionExpired: the server discarded the transaction before it was resolved.
	TransactionExpired
)

// Perch custom error. All codes are usage errors: they propagate to the
// caller as-is, with no retry and no silent recovery.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	if e.UserData == nil {
		return fmt.Sprintf("error code: %d, details: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("error code: %d, user data: %v, details: %v", e.Code, e.UserData, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode carried by err, or Unknown when err carries none.
func CodeOf(err error) ErrorCode {
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}
