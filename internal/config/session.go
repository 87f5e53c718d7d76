package config

import (
	"fmt"

	"github.com/lumen-io/client/internal/account"
	"github.com/lumen-io/client/internal/bootstrap"
	"github.com/lumen-io/client/internal/credentials"
	"github.com/lumen-io/client/internal/metrics"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/session"
	"github.com/lumen-io/client/internal/state"
	"github.com/lumen-io/client/internal/strategy"
	"github.com/lumen-io/client/internal/transport"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Session is every collaborator of one authenticated client, wired from
// configuration.
type Session struct {
	Mode         models.StrategyMode
	Store        credentials.Store
	Strategy     strategy.Strategy
	Auth         *transport.RestyTransport
	API          *transport.RestyTransport
	State        *state.Store
	Client       *session.Client
	Accounts     *account.Service
	Bootstrapper *bootstrap.Bootstrapper
	Metrics      *metrics.Collector

	redis redis.UniversalClient
}

// NewSession builds the client stack. redirect is called once when the
// session is lost for good.
func (c *Config) NewSession(redirect session.RedirectFunc) (*Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	mode, err := c.GetStrategyMode()
	if err != nil {
		return nil, err
	}

	s := &Session{
		Mode:    mode,
		State:   state.NewStore(),
		Metrics: metrics.NewCollector(),
		Auth:    transport.NewRestyTransport(c.GetAuthURL(), c.Auth.Timeout),
		API:     transport.NewRestyTransport(c.GetAPIURL(), c.API.Timeout),
	}

	store, err := c.newCredentialStore(s, mode)
	if err != nil {
		return nil, err
	}
	s.Store = store

	strat, err := strategy.New(mode, store)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Strategy = strat

	endpoints := c.GetEndpoints()

	s.Client = session.NewClient(session.ClientOptions{
		Strategy:       strat,
		API:            s.API,
		Auth:           s.Auth,
		Endpoints:      endpoints,
		Redirect:       s.redirect(redirect),
		Observer:       s.Metrics,
		RefreshTimeout: c.Session.RefreshTimeout,
	})

	s.Accounts = account.NewService(strat, s.Auth, s.State, endpoints)
	s.Bootstrapper = bootstrap.New(strat, s.Auth, s.Accounts)

	logrus.WithFields(logrus.Fields{
		"mode":    mode,
		"auth":    c.GetAuthURL(),
		"api":     c.GetAPIURL(),
		"storage": c.Storage.Backend,
	}).Debugln("Session client configured")

	return s, nil
}

// redirect keeps the state store in step with a lost session before
// handing over to the host.
func (s *Session) redirect(next session.RedirectFunc) session.RedirectFunc {
	return func(reason error) {
		s.State.Dispatch(state.Logout{})
		if next != nil {
			next(reason)
		}
	}
}

func (c *Config) newCredentialStore(s *Session, mode models.StrategyMode) (credentials.Store, error) {
	if mode.IsCookie() {
		jar, err := credentials.NewCookieJar()
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		store, err := credentials.NewCookieStore(jar, c.GetAuthURL())
		if err != nil {
			return nil, err
		}

		// Logout must also reach cookies scoped to the API host or to an
		// auth endpoint's default path
		endpoints := c.GetEndpoints()
		scopes := []string{
			c.GetAPIURL(),
			c.GetAuthURL() + endpoints.Login,
			c.GetAuthURL() + endpoints.Refresh,
			c.GetAuthURL() + endpoints.Logout,
		}
		for _, scope := range scopes {
			if err := store.AddScope(scope); err != nil {
				logrus.WithError(err).WithField("url", scope).Warnln("Ignoring cookie scope")
			}
		}
		return store, nil
	}

	switch c.Storage.Backend {
	case StorageMemory:
		return credentials.NewMemoryStore(), nil
	case StorageRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{c.Storage.Redis.Address},
			Username: c.Storage.Redis.Username,
			Password: c.Storage.Redis.Password,
			DB:       c.Storage.Redis.DB,
		})
		s.redis = client
		return credentials.NewRedisStore(client, c.Storage.Redis.Prefix, c.GetAuthHostname()), nil
	default:
		dir := c.Storage.Path
		if len(dir) == 0 {
			defaultDir, err := credentials.DefaultCredentialsDir()
			if err != nil {
				return nil, err
			}
			dir = defaultDir
		}
		return credentials.NewFileStore(dir, c.GetAuthHostname()), nil
	}
}

func (s *Session) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
