package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// defaultConnectTimeout bounds a single login or logout call so a hung
	// provider cannot block shutdown indefinitely.
	defaultConnectTimeout = 30 * time.Second

	// defaultMaxAge is how long a connected session is trusted before it is
	// considered stale and eligible for a forced refresh, independent of any
	// explicit expiry the provider communicated.
	defaultMaxAge = 30 * time.Minute
)

// Config configures a Manager.
type Config struct {
	// Service names the external service in logs and errors, e.g. "untis".
	Service string

	// ConnectTimeout bounds each login/logout call. Defaults to 30s.
	ConnectTimeout time.Duration

	// MaxAge is the staleness window for a connected session. Defaults to 30m.
	MaxAge time.Duration

	// Retry overrides the attempt policy. Zero value means 3 attempts with
	// exponential backoff starting at 1s.
	Retry RetryPolicy

	// Logger receives connection lifecycle events. Defaults to slog.Default.
	Logger *slog.Logger
}

// RetryPolicy is the exported view of the retry bounds, settable per Manager.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
}

// attempt is the shared result handle for a single in-flight login. All
// concurrent Ensure callers wait on done and observe the same err.
type attempt struct {
	done chan struct{}
	err  error
}

// Manager owns the session handle for one external service and serializes
// all state transitions. It is safe for concurrent use.
type Manager[S any] struct {
	service   string
	connector Connector[S]
	timeout   time.Duration
	maxAge    time.Duration
	retry     retryPolicy
	log       *slog.Logger

	// now is replaceable in tests.
	now func() time.Time

	mu          sync.Mutex
	state       State
	sess        S
	hasSession  bool
	connectedAt time.Time
	expiresAt   time.Time
	lastErr     *Error
	pending     *attempt

	// gen increments on every Invalidate so a login that completes after an
	// Invalidate does not resurrect the session.
	gen uint64
}

// NewManager creates a Manager in the Disconnected state.
func NewManager[S any](cfg Config, connector Connector[S]) *Manager[S] {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaultMaxAge
	}
	retry := defaultRetryPolicy
	if cfg.Retry.Attempts > 0 {
		retry = retryPolicy{Attempts: cfg.Retry.Attempts, InitialDelay: cfg.Retry.InitialDelay}
		if retry.InitialDelay == 0 {
			retry.InitialDelay = defaultRetryPolicy.InitialDelay
		}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Manager[S]{
		service:   cfg.Service,
		connector: connector,
		timeout:   cfg.ConnectTimeout,
		maxAge:    cfg.MaxAge,
		retry:     retry,
		log:       log.With("service", cfg.Service),
		now:       time.Now,
	}
}

// Ensure makes sure a live session exists. When the session is connected
// and fresh it returns immediately. When another caller is already
// connecting, Ensure waits for that attempt's outcome instead of starting a
// second login. Otherwise it performs a login with bounded retries.
//
// The caller's context only bounds the wait; the login itself runs under
// the Manager's own timeout so an aborted HTTP request does not cancel an
// attempt other callers share.
func (m *Manager[S]) Ensure(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected && !m.staleLocked() {
		m.mu.Unlock()
		return nil
	}
	if p := m.pending; p != nil {
		m.mu.Unlock()
		select {
		case <-p.done:
			return p.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p := &attempt{done: make(chan struct{})}
	m.pending = p
	m.state = StateConnecting
	gen := m.gen
	m.mu.Unlock()

	p.err = m.connect(gen)

	m.mu.Lock()
	if m.pending == p {
		m.pending = nil
	}
	m.mu.Unlock()
	close(p.done)

	return p.err
}

// connect runs the retrying login and applies the resulting state
// transition unless an Invalidate happened in the meantime.
func (m *Manager[S]) connect(gen uint64) error {
	var (
		sess      S
		expiresAt time.Time
	)

	err := withRetry(context.Background(), m.retry, func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		var cerr error
		sess, expiresAt, cerr = m.connector.Connect(actx)
		if cerr != nil {
			m.log.Warn("connection attempt failed", "error", cerr)
		}
		return cerr
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		// Invalidated while connecting; discard the result.
		return &Error{Service: m.service, Kind: KindTransient, Err: ErrNotConnected}
	}

	if err != nil {
		serr := &Error{Service: m.service, Kind: Classify(err), Err: err}
		m.state = StateError
		m.lastErr = serr
		m.hasSession = false
		return serr
	}

	m.state = StateConnected
	m.sess = sess
	m.hasSession = true
	m.connectedAt = m.now()
	m.expiresAt = expiresAt
	m.lastErr = nil
	m.log.Info("session established")
	return nil
}

// Use runs fn with the live session handle. It returns ErrNotConnected when
// no session exists. A credential rejection reported by fn (an expired or
// revoked session surfacing as a 401) drops the handle and forces the next
// Ensure to log in again.
func (m *Manager[S]) Use(ctx context.Context, fn func(context.Context, S) error) error {
	m.mu.Lock()
	if m.state != StateConnected || !m.hasSession {
		m.mu.Unlock()
		return ErrNotConnected
	}
	sess := m.sess
	gen := m.gen
	m.mu.Unlock()

	err := fn(ctx, sess)
	if err != nil && Classify(err) == KindInvalidCredentials {
		m.mu.Lock()
		if m.gen == gen && m.state == StateConnected {
			m.dropLocked()
			m.log.Warn("session rejected by provider, dropping handle")
		}
		m.mu.Unlock()
	}
	return err
}

// Invalidate logs out best-effort and forces the state to Disconnected.
// It is idempotent and never fails.
func (m *Manager[S]) Invalidate(ctx context.Context) {
	m.mu.Lock()
	var (
		sess S
		live = m.hasSession
	)
	if live {
		sess = m.sess
	}
	m.gen++
	m.dropLocked()
	m.mu.Unlock()

	if !live {
		return
	}

	lctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.connector.Logout(lctx, sess); err != nil {
		m.log.Debug("logout failed", "error", err)
	}
}

// dropLocked resets to Disconnected. Caller holds m.mu.
func (m *Manager[S]) dropLocked() {
	var zero S
	m.state = StateDisconnected
	m.sess = zero
	m.hasSession = false
	m.connectedAt = time.Time{}
	m.expiresAt = time.Time{}
	m.lastErr = nil
}

// staleLocked reports whether the connected session is past its staleness
// window or explicit expiry. Caller holds m.mu.
func (m *Manager[S]) staleLocked() bool {
	now := m.now()
	if !m.expiresAt.IsZero() && now.After(m.expiresAt) {
		return true
	}
	return now.Sub(m.connectedAt) > m.maxAge
}

// State returns the current connection state.
func (m *Manager[S]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns a snapshot for status endpoints.
func (m *Manager[S]) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		State:       m.state,
		ConnectedAt: m.connectedAt,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Err.Error()
		st.ErrorKind = m.lastErr.Kind.String()
	}
	return st
}
