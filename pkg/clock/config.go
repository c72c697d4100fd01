// Package clock assembles the backend: configuration, component lifecycle,
// and the App facade the HTTP server calls into.
package clock

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openclock/clockd/pkg/auth"
)

// Config holds the complete backend configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Untis     UntisConfig     `yaml:"untis"`
	Microsoft MicrosoftConfig `yaml:"microsoft"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP listener and on-disk state location.
type ServerConfig struct {
	Address string `yaml:"address"`
	DataDir string `yaml:"data_dir"`
}

// AuthConfig configures the API key gate.
type AuthConfig struct {
	Enabled bool       `yaml:"enabled"`
	Keys    []auth.Key `yaml:"keys"`
}

// UntisConfig configures the timetable service.
type UntisConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	DayRange        int           `yaml:"day_range"`
	Timeout         time.Duration `yaml:"timeout"`

	// Insecure switches the provider connection to plain HTTP. Development
	// against a local stub only.
	Insecure bool `yaml:"insecure"`
}

// MicrosoftConfig configures the identity service. An empty client_id
// leaves the Microsoft features unconfigured; the device still runs.
type MicrosoftConfig struct {
	ClientID        string        `yaml:"client_id"`
	Authority       string        `yaml:"authority"`
	Scopes          []string      `yaml:"scopes"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Timeout         time.Duration `yaml:"timeout"`

	// GraphEndpoint overrides the Microsoft Graph base URL. Tests only.
	GraphEndpoint string `yaml:"graph_endpoint"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns a configuration with every default applied. Used
// when the device runs without a config file.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a file. The path comes from command
// line arguments, controlled by whoever provisions the device.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns so secrets like API keys can come
// from the environment instead of the config file.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.DataDir == "" {
		cfg.Server.DataDir = "/var/lib/clockd"
	}
	if cfg.Untis.RefreshInterval == 0 {
		cfg.Untis.RefreshInterval = time.Minute
	}
	if cfg.Untis.DayRange == 0 {
		cfg.Untis.DayRange = 10
	}
	if cfg.Untis.Timeout == 0 {
		cfg.Untis.Timeout = 30 * time.Second
	}
	if cfg.Microsoft.Authority == "" {
		cfg.Microsoft.Authority = "https://login.microsoftonline.com/common"
	}
	if len(cfg.Microsoft.Scopes) == 0 {
		cfg.Microsoft.Scopes = []string{"User.Read", "Mail.Read", "offline_access"}
	}
	if cfg.Microsoft.RefreshInterval == 0 {
		cfg.Microsoft.RefreshInterval = time.Hour
	}
	if cfg.Microsoft.Timeout == 0 {
		cfg.Microsoft.Timeout = 30 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Untis.DayRange < 1 {
		errs = append(errs, "untis.day_range must be at least 1")
	}
	if c.Untis.RefreshInterval < time.Second {
		errs = append(errs, "untis.refresh_interval must be at least 1s")
	}
	if c.Microsoft.RefreshInterval < time.Second {
		errs = append(errs, "microsoft.refresh_interval must be at least 1s")
	}
	if c.Auth.Enabled && len(c.Auth.Keys) == 0 {
		errs = append(errs, "auth.keys must not be empty when auth is enabled")
	}
	for i, k := range c.Auth.Keys {
		if k.Value == "" {
			errs = append(errs, fmt.Sprintf("auth.keys[%d].value is empty", i))
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown logging.level %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
