// Package device holds the on-device configuration and the shims to the
// host operating system. Configuration mutations persist synchronously so a
// power cut never loses a setting the caller was told succeeded.
package device

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const configFileMode = 0o600

// ClockType identifies the hardware variant the backend drives.
type ClockType string

const (
	ClockMini ClockType = "Mini"
	ClockXL   ClockType = "XL"
)

// valid reports whether t names a known hardware variant.
func (t ClockType) valid() bool {
	return t == ClockMini || t == ClockXL
}

// Config is the device configuration as exposed over the API and persisted
// on disk.
type Config struct {
	Model       ClockType `json:"model"`
	Setup       bool      `json:"setup"`
	Wallmounted bool      `json:"wallmounted"`
	Debug       bool      `json:"debug"`
	Hostname    string    `json:"hostname,omitempty"`
	Timezone    string    `json:"timezone,omitempty"`
}

// defaultConfig is what a factory-fresh or unreadable device starts with.
func defaultConfig() Config {
	return Config{
		Model:       ClockMini,
		Setup:       false,
		Wallmounted: false,
	}
}

// Validate checks the fields a full config replacement must carry.
func (c Config) Validate() error {
	if !c.Model.valid() {
		return fmt.Errorf("unknown clock model %q", c.Model)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %q", c.Timezone)
		}
	}
	return nil
}

// ConfigStore is the persisted device configuration. Every mutation writes
// through to disk before returning.
type ConfigStore struct {
	path string
	log  *slog.Logger

	mu  sync.Mutex
	cfg Config
}

// NewConfigStore creates a store backed by path, starting from defaults.
// Call Load to pick up a previously persisted configuration.
func NewConfigStore(path string, log *slog.Logger) *ConfigStore {
	if log == nil {
		log = slog.Default()
	}
	return &ConfigStore{
		path: path,
		log:  log.With("component", "device-config"),
		cfg:  defaultConfig(),
	}
}

// Load reads the persisted configuration. An absent or corrupt file leaves
// the defaults in place; the device must boot regardless of disk state.
func (s *ConfigStore) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("failed to read device config, using defaults", "error", err)
		}
		return
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.log.Warn("malformed device config, using defaults", "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		s.log.Warn("invalid persisted device config, using defaults", "error", err)
		return
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.log.Info("device config loaded", "model", cfg.Model, "setup", cfg.Setup)
}

// Config returns the current configuration.
func (s *ConfigStore) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Replace swaps in a complete new configuration.
func (s *ConfigStore) Replace(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg
	s.cfg = cfg
	if err := s.saveLocked(); err != nil {
		s.cfg = prev
		return err
	}
	return nil
}

// Mutate applies fn to a copy of the current configuration and persists the
// result. Used by the single-field PATCH endpoints.
func (s *ConfigStore) Mutate(fn func(*Config)) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	fn(&next)
	if err := next.Validate(); err != nil {
		return s.cfg, err
	}

	prev := s.cfg
	s.cfg = next
	if err := s.saveLocked(); err != nil {
		s.cfg = prev
		return s.cfg, err
	}
	return next, nil
}

// Reset restores factory defaults.
func (s *ConfigStore) Reset() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cfg
	s.cfg = defaultConfig()
	if err := s.saveLocked(); err != nil {
		s.cfg = prev
		return s.cfg, err
	}
	return s.cfg, nil
}

func (s *ConfigStore) saveLocked() error {
	data, err := json.MarshalIndent(&s.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding device config: %w", err)
	}
	if err := os.WriteFile(s.path, data, configFileMode); err != nil {
		return fmt.Errorf("writing device config: %w", err)
	}
	return nil
}
