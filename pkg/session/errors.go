package session

import (
	"errors"
	"fmt"
)

// Kind classifies a session error so callers can decide whether to retry,
// re-prompt for credentials, or give up until reconfiguration.
type Kind int

const (
	// KindTransient covers network timeouts, 5xx responses and rate limits.
	// Transient errors are retried with backoff.
	KindTransient Kind = iota

	// KindInvalidCredentials means the remote rejected the configured secret.
	// Never retried with the same credentials to avoid account lockout.
	KindInvalidCredentials

	// KindNotConfigured means no credentials are set for the service.
	// Terminal until new credentials arrive; no network call is made.
	KindNotConfigured
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindNotConfigured:
		return "not_configured"
	default:
		return "transient"
	}
}

// Sentinel errors used by connectors to classify failures at the adapter
// boundary. Wrap them with fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrNotConfigured is returned when a connector has no credentials to use.
	ErrNotConfigured = errors.New("service not configured")

	// ErrInvalidCredentials is returned when the remote rejects the credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Error is the classified error a Manager reports to its callers. It never
// wraps a raw third-party error directly; connectors translate those first.
type Error struct {
	Service string
	Kind    Kind
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s session: %s: %v", e.Service, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is checks.
func (e *Error) Unwrap() error {
	return e.Err
}

// Classify determines the Kind of an arbitrary connector error.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return KindNotConfigured
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	default:
		return KindTransient
	}
}

// retryable reports whether an attempt that failed with err is worth
// repeating. Credential and configuration failures are terminal.
func retryable(err error) bool {
	return Classify(err) == KindTransient
}
