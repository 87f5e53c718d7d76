package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lumen-io/client/internal/common"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/session"
)

type StorageBackend string

const (
	// Bearer tokens in a 0600 yaml file under ~/.config/lumen
	StorageFile StorageBackend = "file"
	// Bearer tokens in a redis hash, shared by processes on one host
	StorageRedis StorageBackend = "redis"
	// Bearer tokens for the lifetime of the process only
	StorageMemory StorageBackend = "memory"
)

// Config represents the application configuration structure
type Config struct {

	// production selects cookie sessions, development bearer tokens
	Environment string `mapstructure:"environment"`

	// Overrides the strategy derived from the environment
	Strategy string `mapstructure:"strategy"`

	Auth    AuthConfig    `mapstructure:"auth"`
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	logger *eventLogger
}

type AuthConfig struct {
	URL       string            `mapstructure:"url"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	Endpoints session.Endpoints `mapstructure:"endpoints"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
}

type StorageConfig struct {
	Backend StorageBackend `mapstructure:"backend"`
	Path    string         `mapstructure:"path"`
	Redis   RedisConfig    `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"text"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path" default:"/metrics"`
}

// GetStrategyMode resolves the credential strategy. An explicit strategy
// wins over the one implied by the environment.
func (c *Config) GetStrategyMode() (models.StrategyMode, error) {
	if len(c.Strategy) > 0 {
		return models.ParseStrategyMode(c.Strategy)
	}
	if len(c.Environment) == 0 {
		return models.StrategyBearer, nil
	}
	return models.ParseStrategyMode(c.Environment)
}

func (c *Config) IsProduction() bool {
	mode, err := c.GetStrategyMode()
	return err == nil && mode.IsCookie()
}

func (c *Config) GetAuthURL() string {
	return strings.TrimSuffix(c.Auth.URL, "/")
}

// GetAPIURL falls back to the auth backend when no separate API is set.
func (c *Config) GetAPIURL() string {
	if len(c.API.URL) == 0 {
		return c.GetAuthURL()
	}
	return strings.TrimSuffix(c.API.URL, "/")
}

// GetAuthHostname names per-host credential files and redis keys.
func (c *Config) GetAuthHostname() string {
	parsed, err := url.Parse(c.GetAuthURL())
	if err != nil || len(parsed.Host) == 0 {
		return "default"
	}
	return strings.ReplaceAll(parsed.Host, ":", "_")
}

func (c *Config) GetEndpoints() session.Endpoints {
	defaults := session.DefaultEndpoints()
	endpoints := c.Auth.Endpoints
	if len(endpoints.Login) == 0 {
		endpoints.Login = defaults.Login
	}
	if len(endpoints.Identity) == 0 {
		endpoints.Identity = defaults.Identity
	}
	if len(endpoints.Refresh) == 0 {
		endpoints.Refresh = defaults.Refresh
	}
	if len(endpoints.Logout) == 0 {
		endpoints.Logout = defaults.Logout
	}
	if len(endpoints.Register) == 0 {
		endpoints.Register = defaults.Register
	}
	return endpoints
}

// Validate reports the first setting that would stop a session from
// being built.
func (c *Config) Validate() error {
	if _, err := c.GetStrategyMode(); err != nil {
		return err
	}
	if len(c.Auth.URL) == 0 {
		return fmt.Errorf("auth.url is required")
	}
	if _, err := url.ParseRequestURI(c.Auth.URL); err != nil {
		return fmt.Errorf("invalid auth.url: %w", err)
	}
	if len(c.API.URL) > 0 && !common.IsValidURL(c.API.URL) {
		return fmt.Errorf("invalid api.url: %q", c.API.URL)
	}
	switch c.Storage.Backend {
	case StorageFile, StorageMemory, "":
	case StorageRedis:
		if len(c.Storage.Redis.Address) == 0 {
			return fmt.Errorf("storage.redis.address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
	return nil
}
