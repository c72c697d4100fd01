package untis

import (
	"context"
	"time"

	"github.com/openclock/clockd/pkg/session"
)

// Source supplies the currently configured Untis credentials. Implemented
// by the credential store.
type Source interface {
	Credentials() (Credentials, bool)
}

// Connector adapts the WebUntis client to the session.Connector contract.
type Connector struct {
	client *Client
	source Source
}

// NewConnector creates a Connector reading credentials from source.
func NewConnector(client *Client, source Source) *Connector {
	return &Connector{client: client, source: source}
}

// Connect logs in with the stored credentials. WebUntis does not
// communicate a session expiry; freshness is handled by the Manager's
// staleness window.
func (c *Connector) Connect(ctx context.Context) (*Session, time.Time, error) {
	creds, ok := c.source.Credentials()
	if !ok {
		return nil, time.Time{}, session.ErrNotConfigured
	}

	sess, err := c.client.Login(ctx, creds)
	if err != nil {
		return nil, time.Time{}, err
	}
	return sess, time.Time{}, nil
}

// Logout terminates the provider-side session.
func (c *Connector) Logout(ctx context.Context, sess *Session) error {
	return sess.Logout(ctx)
}

var _ session.Connector[*Session] = (*Connector)(nil)
