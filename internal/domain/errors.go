package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfigMissing indicates the token or username has not been configured.
	ErrConfigMissing = errors.New("token or username not configured")
	// ErrAuthInvalidated indicates the stored credentials were rejected and local state was reset.
	ErrAuthInvalidated = errors.New("credentials rejected, local state cleared")
	// ErrNotFound indicates a requested key or item does not exist.
	ErrNotFound = errors.New("not found")
)

// RemoteQueryError is returned when the remote API answers with a non-success status.
type RemoteQueryError struct {
	StatusCode int
}

func (e *RemoteQueryError) Error() string {
	return fmt.Sprintf("remote query failed: status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsUnauthorized reports whether the status means the credentials are invalid.
func (e *RemoteQueryError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsUnauthorized reports whether err carries a 401 RemoteQueryError.
func IsUnauthorized(err error) bool {
	var rqe *RemoteQueryError
	return errors.As(err, &rqe) && rqe.IsUnauthorized()
}

// ActivityResolutionError describes a failed activity-trail lookup for a single item.
// It never aborts a cycle; the item degrades to "not approved, no last actor".
type ActivityResolutionError struct {
	ItemID string
	Err    error
}

func (e *ActivityResolutionError) Error() string {
	return fmt.Sprintf("resolve activity for %s: %v", e.ItemID, e.Err)
}

func (e *ActivityResolutionError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed read or write of persisted state.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
