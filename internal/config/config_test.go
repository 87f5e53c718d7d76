package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lumen-io/client/internal/credentials"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/session"
	"github.com/lumen-io/client/internal/state"
	"github.com/lumen-io/client/internal/testing/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfigFile(t, `
environment: production
auth:
  url: https://auth.lumen.test/api/
  endpoints:
    refresh: /auth/jwt/refresh/
api:
  url: https://api.lumen.test
session:
  refresh_timeout: 3s
logging:
  level: warn
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "https://auth.lumen.test/api", cfg.GetAuthURL())
	assert.Equal(t, "https://api.lumen.test", cfg.GetAPIURL())
	assert.Equal(t, 3*time.Second, cfg.Session.RefreshTimeout)
	assert.Equal(t, 30*time.Second, cfg.Auth.Timeout)

	endpoints := cfg.GetEndpoints()
	assert.Equal(t, "/auth/jwt/refresh/", endpoints.Refresh)
	assert.Equal(t, "/token/", endpoints.Login)

	mode, err := cfg.GetStrategyMode()
	require.NoError(t, err)
	assert.Equal(t, models.StrategyCookie, mode)
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
}

func TestLoad_Environment(t *testing.T) {
	path := writeConfigFile(t, "logging:\n  level: info\n")

	t.Setenv("LUMEN_ENVIRONMENT", "development")
	t.Setenv("LUMEN_AUTH_API_URL", "http://localhost:9000/api")
	t.Setenv("LUMEN_API_URL", "http://localhost:9001")
	t.Setenv("LUMEN_STORAGE_BACKEND", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/api", cfg.GetAuthURL())
	assert.Equal(t, "http://localhost:9001", cfg.GetAPIURL())
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfigFile(t, "logging:\n  level: loud\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestGetStrategyMode(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		strategy    string
		expected    models.StrategyMode
		expectError bool
	}{
		{name: "production", environment: "production", expected: models.StrategyCookie},
		{name: "development", environment: "development", expected: models.StrategyBearer},
		{name: "unset", expected: models.StrategyBearer},
		{name: "explicit wins", environment: "production", strategy: "bearer", expected: models.StrategyBearer},
		{name: "unknown", environment: "staging", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment, Strategy: tt.strategy}
			mode, err := cfg.GetStrategyMode()
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(cfg *Config)
		expectError bool
	}{
		{name: "defaults", mutate: func(cfg *Config) {}},
		{name: "missing auth url", mutate: func(cfg *Config) { cfg.Auth.URL = "" }, expectError: true},
		{name: "relative auth url", mutate: func(cfg *Config) { cfg.Auth.URL = "auth" }, expectError: true},
		{name: "unknown backend", mutate: func(cfg *Config) { cfg.Storage.Backend = "etcd" }, expectError: true},
		{name: "redis without address", mutate: func(cfg *Config) { cfg.Storage.Backend = StorageRedis }, expectError: true},
		{name: "relative api url", mutate: func(cfg *Config) { cfg.API.URL = "api/v1" }, expectError: true},
		{name: "unknown environment", mutate: func(cfg *Config) { cfg.Environment = "qa" }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetAuthHostname(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.URL = "http://localhost:8000/api"
	assert.Equal(t, "localhost_8000", cfg.GetAuthHostname())

	cfg.Auth.URL = "::bad"
	assert.Equal(t, "default", cfg.GetAuthHostname())
}

func TestNewSession(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name      string
		configure func(cfg *Config)
		mode      models.StrategyMode
		check     func(t *testing.T, s *Session)
	}{
		{
			name: "bearer file store",
			configure: func(cfg *Config) {
				cfg.Storage.Path = t.TempDir()
			},
			mode: models.StrategyBearer,
			check: func(t *testing.T, s *Session) {
				store, ok := s.Store.(*credentials.FileStore)
				require.True(t, ok)
				assert.Contains(t, store.Path(), "localhost_8000.yaml")
			},
		},
		{
			name: "bearer memory store",
			configure: func(cfg *Config) {
				cfg.Storage.Backend = StorageMemory
			},
			mode: models.StrategyBearer,
			check: func(t *testing.T, s *Session) {
				assert.IsType(t, &credentials.MemoryStore{}, s.Store)
			},
		},
		{
			name: "bearer redis store",
			configure: func(cfg *Config) {
				cfg.Storage.Backend = StorageRedis
				cfg.Storage.Redis.Address = mr.Addr()
			},
			mode: models.StrategyBearer,
			check: func(t *testing.T, s *Session) {
				store, ok := s.Store.(*credentials.RedisStore)
				require.True(t, ok)
				assert.Equal(t, "lumen:credentials:localhost_8000", store.Key())
				require.NoError(t, store.Set(models.AccessTokenName, "a", credentials.Options{}))
				assert.Equal(t, "a", mr.HGet(store.Key(), models.AccessTokenName))
			},
		},
		{
			name: "cookie jar",
			configure: func(cfg *Config) {
				cfg.Environment = "production"
			},
			mode: models.StrategyCookie,
			check: func(t *testing.T, s *Session) {
				assert.IsType(t, &credentials.CookieStore{}, s.Store)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Auth.URL = "http://localhost:8000/api"
			tt.configure(cfg)

			s, err := cfg.NewSession(nil)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })

			assert.Equal(t, tt.mode, s.Mode)
			assert.Equal(t, tt.mode, s.Strategy.Mode())
			assert.NotNil(t, s.Client)
			assert.NotNil(t, s.Accounts)
			assert.NotNil(t, s.Bootstrapper)
			tt.check(t, s)
		})
	}
}

func TestSession_RedirectLogsOut(t *testing.T) {
	server := mocks.NewAuthServer(models.StrategyBearer)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.Auth.URL = server.URL()
	cfg.Storage.Backend = StorageMemory

	var reasons []error
	s, err := cfg.NewSession(func(reason error) {
		reasons = append(reasons, reason)
	})
	require.NoError(t, err)

	s.State.Dispatch(state.LoginSuccess{User: models.User{ID: "1", Email: "a@example.com"}})
	require.True(t, s.State.State().IsAuthenticated)

	// No refresh token: the first protected 401 tears the session down
	_, err = s.Client.Get(context.Background(), "/api/anything")
	require.Error(t, err)

	assert.True(t, s.State.State().IsLoggedOut())
	require.Len(t, reasons, 1)
	assert.ErrorIs(t, reasons[0], session.ErrRefreshExhausted)
}
