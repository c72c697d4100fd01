package msauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// tokenFileMode keeps the persisted token readable by the service user only.
const tokenFileMode = 0o600

// Store persists the account's token bundle to its own file, separate from
// any other service's secrets. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
	tok  *Token
	log  *slog.Logger
}

// NewStore creates a Store backed by the file at path. Call Load to pick up
// a previously persisted token.
func NewStore(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{path: path, log: log.With("component", "msauth")}
}

// Load reads the persisted token. A missing or malformed file means "no
// account signed in" and never fails startup.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("could not read token cache", "error", err)
		}
		return
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		s.log.Warn("token cache is malformed, ignoring", "error", err)
		return
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return
	}
	s.tok = &tok
}

// Token returns a copy of the stored token, and whether one exists.
func (s *Store) Token() (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok == nil {
		return Token{}, false
	}
	return *s.tok, true
}

// Accounts lists the signed-in account identifiers (at most one; the clock
// is a single-account device).
func (s *Store) Accounts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok == nil || s.tok.Account == "" {
		return nil
	}
	return []string{s.tok.Account}
}

// Set stores the token and persists it synchronously.
func (s *Store) Set(tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *tok
	s.tok = &copied

	data, err := json.MarshalIndent(&copied, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token cache: %w", err)
	}
	if err := os.WriteFile(s.path, data, tokenFileMode); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	return nil
}

// Clear forgets the token in memory and on disk. Idempotent.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tok = nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token cache: %w", err)
	}
	return nil
}
