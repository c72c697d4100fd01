package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfigStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	return NewConfigStore(path, nil), path
}

func TestConfigStore_StartsWithDefaults(t *testing.T) {
	s, _ := newTestConfigStore(t)

	cfg := s.Config()
	assert.Equal(t, ClockMini, cfg.Model)
	assert.False(t, cfg.Setup)
	assert.False(t, cfg.Wallmounted)
}

func TestConfigStore_ReplacePersists(t *testing.T) {
	s, path := newTestConfigStore(t)

	require.NoError(t, s.Replace(Config{Model: ClockXL, Setup: true, Wallmounted: true}))

	again := NewConfigStore(path, nil)
	again.Load()

	cfg := again.Config()
	assert.Equal(t, ClockXL, cfg.Model)
	assert.True(t, cfg.Setup)
	assert.True(t, cfg.Wallmounted)
}

func TestConfigStore_ReplaceRejectsUnknownModel(t *testing.T) {
	s, _ := newTestConfigStore(t)

	err := s.Replace(Config{Model: "Medium"})
	require.Error(t, err)
	assert.Equal(t, ClockMini, s.Config().Model, "a rejected replace leaves the config alone")
}

func TestConfigStore_MutateSingleField(t *testing.T) {
	s, _ := newTestConfigStore(t)

	cfg, err := s.Mutate(func(c *Config) { c.Debug = true })
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.True(t, s.Config().Debug)
}

func TestConfigStore_MutateValidatesResult(t *testing.T) {
	s, _ := newTestConfigStore(t)

	_, err := s.Mutate(func(c *Config) { c.Timezone = "Mars/Olympus_Mons" })
	require.Error(t, err)
	assert.Empty(t, s.Config().Timezone)
}

func TestConfigStore_MutateAcceptsRealTimezone(t *testing.T) {
	s, _ := newTestConfigStore(t)

	cfg, err := s.Mutate(func(c *Config) { c.Timezone = "Europe/Vienna" })
	require.NoError(t, err)
	assert.Equal(t, "Europe/Vienna", cfg.Timezone)
}

func TestConfigStore_Reset(t *testing.T) {
	s, _ := newTestConfigStore(t)
	require.NoError(t, s.Replace(Config{Model: ClockXL, Setup: true, Debug: true}))

	cfg, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, ClockMini, cfg.Model)
	assert.False(t, cfg.Setup)
	assert.False(t, cfg.Debug)
}

func TestConfigStore_CorruptFileMeansDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{torn write"), 0o600))

	s := NewConfigStore(path, nil)
	s.Load()

	assert.Equal(t, ClockMini, s.Config().Model, "a corrupt config file must not stop boot")
}

func TestConfigStore_InvalidPersistedConfigIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":"Toaster"}`), 0o600))

	s := NewConfigStore(path, nil)
	s.Load()

	assert.Equal(t, ClockMini, s.Config().Model)
}

func TestConfigStore_FileIsPrivate(t *testing.T) {
	s, path := newTestConfigStore(t)
	require.NoError(t, s.Replace(Config{Model: ClockMini}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(configFileMode), info.Mode().Perm())
}
