package msauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is an issued Microsoft access token plus the refresh token used to
// renew it silently. Treated as sensitive: it is persisted only to the
// service's own store and never included in cache snapshots.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Account      string    `json:"account,omitempty"`
}

// Valid reports whether the access token is present and unexpired.
func (t *Token) Valid() bool {
	return t != nil && t.AccessToken != "" && time.Now().Before(t.ExpiresAt)
}

// enrichFromClaims fills Account and ExpiresAt from the access token's JWT
// claims when the token response did not carry them. The token is not
// validated here; it was just issued by the authority over TLS, and the
// clock is a client, not an audience enforcing trust.
func (t *Token) enrichFromClaims() {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(t.AccessToken, claims); err != nil {
		return
	}

	if t.Account == "" {
		for _, key := range []string{"preferred_username", "upn", "email"} {
			if v, ok := claims[key].(string); ok && v != "" {
				t.Account = v
				break
			}
		}
	}

	if t.ExpiresAt.IsZero() {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			t.ExpiresAt = exp.Time
		}
	}
}
