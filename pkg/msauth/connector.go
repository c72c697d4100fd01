package msauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/openclock/clockd/pkg/session"
)

// Connector adapts silent token refresh to the session.Connector contract.
// "Connecting" for the identity service means redeeming the stored refresh
// token for a fresh access token; the interactive device flow only runs
// when the user explicitly signs in.
type Connector struct {
	client *Client
	store  *Store
	log    *slog.Logger
}

// NewConnector creates a Connector refreshing tokens from store.
func NewConnector(client *Client, store *Store, log *slog.Logger) *Connector {
	if log == nil {
		log = slog.Default()
	}
	return &Connector{client: client, store: store, log: log.With("component", "msauth")}
}

// Connect refreshes the stored token silently. No signed-in account means
// not configured; a revoked refresh token surfaces as invalid credentials
// so the caller can prompt for a new sign-in instead of retrying.
func (c *Connector) Connect(ctx context.Context) (*Token, time.Time, error) {
	stored, ok := c.store.Token()
	if !ok || stored.RefreshToken == "" {
		return nil, time.Time{}, session.ErrNotConfigured
	}

	tok, err := c.client.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		return nil, time.Time{}, err
	}

	if err := c.store.Set(tok); err != nil {
		// In-memory operation continues; only persistence degraded.
		c.log.Warn("could not persist refreshed token", "error", err)
	}
	return tok, tok.ExpiresAt, nil
}

// Logout forgets the stored token. There is no provider-side session to
// terminate for a device-flow token.
func (c *Connector) Logout(_ context.Context, _ *Token) error {
	return c.store.Clear()
}

var _ session.Connector[*Token] = (*Connector)(nil)
