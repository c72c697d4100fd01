// Package session manages long-lived authenticated sessions against
// external services. Each Manager owns one session handle, keeps it fresh
// with bounded retries, and collapses concurrent connection attempts into a
// single in-flight login so a flaky or rate-limited provider is never hit
// with duplicate logins.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// State is the connection state of a managed session.
type State int32

const (
	// StateDisconnected is the initial state and the state after Invalidate.
	StateDisconnected State = iota

	// StateConnecting is transient and exclusive: at most one connection
	// attempt is in flight per Manager.
	StateConnecting

	// StateConnected means a live session handle exists.
	StateConnected

	// StateError means the most recent attempt failed; the cause is retained.
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// MarshalJSON renders the state by name; status payloads carry "connected",
// not an enum ordinal.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Connector performs the actual login and logout against an external
// service. Implementations translate provider errors into the sentinel
// errors of this package before returning them.
type Connector[S any] interface {
	// Connect establishes a new session. The returned expiry may be zero
	// when the provider does not communicate one.
	Connect(ctx context.Context) (sess S, expiresAt time.Time, err error)

	// Logout terminates the session. Called best-effort during Invalidate.
	Logout(ctx context.Context, sess S) error
}

// Status is a read-only snapshot of a Manager for status endpoints.
type Status struct {
	State       State     `json:"state"`
	ConnectedAt time.Time `json:"connected_at,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
}

// ErrNotConnected is returned by Use when no live session exists.
var ErrNotConnected = errors.New("session not connected")
