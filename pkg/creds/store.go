// Package creds persists the Untis credential bundle to its own file on
// the device. Secrets of other services never share this store.
package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/openclock/clockd/pkg/untis"
)

// credsFileMode keeps the persisted secrets readable by the service user only.
const credsFileMode = 0o600

// Store holds the currently configured Untis credentials. It is safe for
// concurrent use and implements untis.Source.
type Store struct {
	mu    sync.Mutex
	path  string
	creds *untis.Credentials
	log   *slog.Logger
}

// NewStore creates a Store backed by the file at path. Call Load to pick up
// previously persisted credentials.
func NewStore(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{path: path, log: log.With("component", "creds")}
}

// Load reads persisted credentials. A missing or malformed file means "not
// configured" and never fails startup.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("could not read credentials file", "error", err)
		}
		return
	}

	var c untis.Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		s.log.Warn("credentials file is malformed, ignoring", "error", err)
		return
	}

	c.Normalize()
	if err := c.Validate(); err != nil {
		s.log.Warn("persisted credentials are incomplete, ignoring", "error", err)
		return
	}
	s.creds = &c
	s.log.Info("credentials loaded", "credentials", c)
}

// Credentials returns a copy of the configured credentials, and whether any
// are configured.
func (s *Store) Credentials() (untis.Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds == nil {
		return untis.Credentials{}, false
	}
	return *s.creds, true
}

// Username returns the configured account name for display purposes.
func (s *Store) Username() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds == nil {
		return "", false
	}
	return s.creds.Username, true
}

// Set validates, normalizes and persists new credentials. Validation
// failures leave the previous credentials untouched.
func (s *Store) Set(c untis.Credentials) error {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(&c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, credsFileMode); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}

	s.creds = &c
	s.log.Info("credentials updated", "credentials", c)
	return nil
}

// Clear forgets the credentials in memory and on disk. Idempotent.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing credentials file: %w", err)
	}
	return nil
}

var _ untis.Source = (*Store)(nil)
