package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey int

const callerKey contextKey = iota

// Caller returns the name of the authenticated key, if any.
func Caller(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(callerKey).(string)
	return name, ok
}

// Middleware rejects requests that do not present a configured key. Keys
// arrive either as "Authorization: Bearer <key>" or in the X-API-Key
// header. When disabled it passes everything through, for development.
func Middleware(ring *Keyring, enabled bool, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			name, err := ring.Authenticate(extractKey(r))
			if err != nil {
				log.Warn("rejected request", "path", r.URL.Path, "remote", r.RemoteAddr)
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, name)))
		})
	}
}

func extractKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}
