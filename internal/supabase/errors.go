package supabase

import (
	"errors"
	"fmt"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// Sentinel errors for REST operations.
var (
	ErrUnauthorized = errors.New("supabase: unauthorized")
	ErrNotFound     = errors.New("supabase: not found")
	ErrRateLimited  = errors.New("supabase: rate limited by server")
	ErrBadRequest   = errors.New("supabase: bad request")
	ErrServer       = errors.New("supabase: server error")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op    string // fetchScenarios, fetchStaff, update
	Table string
	ID    string // row id, if applicable
	Err   error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("supabase %s [%s/%s]: %v", e.Op, e.Table, e.ID, e.Err)
	}
	return fmt.Sprintf("supabase %s [%s]: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError attaches operation context and the REMOTE code. Cancellation
// keeps its own code.
func wrapError(op, table, id string, err error) error {
	wrapped := &Error{Op: op, Table: table, ID: id, Err: err}
	if errors.Is(err, domainerrors.ErrCanceled) {
		return wrapped
	}
	return domainerrors.Wrap(wrapped, domainerrors.CodeRemote, "remote request failed")
}
