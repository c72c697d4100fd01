package untis

import (
	"fmt"
	"log/slog"
	"strings"
)

// defaultUserAgent identifies the clock to the WebUntis API when the
// credentials do not carry their own client string.
const defaultUserAgent = "OpenClock"

// Credentials is the secret bundle for one WebUntis account.
type Credentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Server    string `json:"server"`
	School    string `json:"school"`
	UserAgent string `json:"useragent,omitempty"`
}

// ValidationError reports a missing or malformed credential field.
type ValidationError struct {
	Field string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("untis credentials: invalid %s", e.Field)
}

// Normalize cleans up the server address and fills defaults. Call before
// Validate and before persisting.
func (c *Credentials) Normalize() {
	c.Server = NormalizeServer(c.Server)
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
}

// Validate checks that all required fields are present.
func (c *Credentials) Validate() error {
	switch {
	case c.Username == "":
		return &ValidationError{Field: "username"}
	case c.Password == "":
		return &ValidationError{Field: "password"}
	case c.Server == "":
		return &ValidationError{Field: "server"}
	case c.School == "":
		return &ValidationError{Field: "school"}
	}
	return nil
}

// NormalizeServer reduces a server address to its bare host name: the
// scheme, any path (including a pasted /WebUntis suffix) and trailing
// slashes are stripped. Returns "" when nothing usable remains.
func NormalizeServer(server string) string {
	server = strings.TrimSpace(server)
	server = strings.TrimSuffix(server, "/")

	if i := strings.Index(server, "://"); i >= 0 {
		server = server[i+3:]
	}
	server, _, _ = strings.Cut(server, "/")

	return server
}

// LogValue keeps the password out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("server", c.Server),
		slog.String("school", c.School),
	)
}

var _ slog.LogValuer = Credentials{}
