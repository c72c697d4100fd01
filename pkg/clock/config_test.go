package clock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclock/clockd/pkg/auth"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clockd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  data_dir: /tmp/clockd-test\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, time.Minute, cfg.Untis.RefreshInterval)
	assert.Equal(t, 10, cfg.Untis.DayRange)
	assert.Equal(t, 30*time.Second, cfg.Untis.Timeout)
	assert.Equal(t, time.Hour, cfg.Microsoft.RefreshInterval)
	assert.Equal(t, "https://login.microsoftonline.com/common", cfg.Microsoft.Authority)
	assert.Contains(t, cfg.Microsoft.Scopes, "offline_access")
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_ExpandsEnvVars(t *testing.T) {
	t.Setenv("CLOCKD_TEST_KEY", "from-env")

	path := writeConfig(t, `
auth:
  enabled: true
  keys:
    - name: display
      value: ${CLOCKD_TEST_KEY}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Auth.Keys, 1)
	assert.Equal(t, "from-env", cfg.Auth.Keys[0].Value)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("day range must be positive", func(t *testing.T) {
		cfg := valid()
		cfg.Untis.DayRange = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("refresh interval floor", func(t *testing.T) {
		cfg := valid()
		cfg.Untis.RefreshInterval = 10 * time.Millisecond
		assert.Error(t, cfg.Validate())
	})

	t.Run("auth enabled needs keys", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.Enabled = true
		assert.Error(t, cfg.Validate())

		cfg.Auth.Keys = []auth.Key{{Name: "display", Value: "k"}}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("empty key value rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.Keys = []auth.Key{{Name: "display"}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown log level rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Level = "loud"
		assert.Error(t, cfg.Validate())
	})
}
