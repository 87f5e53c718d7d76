package bootstrap

import (
	"context"

	"github.com/lumen-io/client/internal/account"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/state"
	"github.com/lumen-io/client/internal/strategy"
	"github.com/lumen-io/client/internal/transport"
	"github.com/sirupsen/logrus"
)

// Bootstrapper restores the session once at process start, before any
// authenticated traffic is allowed through.
type Bootstrapper struct {
	strategy strategy.Strategy
	auth     transport.Configurable
	account  *account.Service
	state    *state.Store
}

func New(strat strategy.Strategy, auth transport.Configurable, accounts *account.Service) *Bootstrapper {
	return &Bootstrapper{
		strategy: strat,
		auth:     auth,
		account:  accounts,
		state:    accounts.State(),
	}
}

// Bootstrap validates whatever credentials survived the last run and
// returns the resulting session state. It never refreshes: an expired
// session at start up means logging in again.
func (b *Bootstrapper) Bootstrap(ctx context.Context) models.SessionState {
	b.state.Dispatch(state.SetLoading{Loading: true})

	switch b.strategy.Mode() {
	case models.StrategyCookie:
		return b.bootstrapCookie(ctx)
	default:
		return b.bootstrapBearer(ctx)
	}
}

func (b *Bootstrapper) bootstrapCookie(ctx context.Context) models.SessionState {
	user, err := b.account.WhoAmI(ctx)
	if err != nil {
		logrus.WithError(err).Debugln("No valid cookie session")
		return b.state.Dispatch(state.Logout{})
	}

	logrus.WithFields(logrus.Fields{
		"email": user.Email,
		"mode":  models.StrategyCookie,
	}).Debugln("Restored session")

	return b.state.Dispatch(state.RestoreSession{User: *user})
}

func (b *Bootstrapper) bootstrapBearer(ctx context.Context) models.SessionState {
	store := b.strategy.Store()

	if !b.strategy.Prime(b.auth) {
		if err := store.Remove(models.UserMirrorName); err != nil {
			logrus.WithError(err).Warnln("Failed to remove mirrored user")
		}
		logrus.Debugln("No stored access token, starting logged out")
		return b.state.Dispatch(state.Logout{})
	}

	user, err := b.account.WhoAmI(ctx)
	if err != nil {
		logrus.WithError(err).Warnln("Stored session is no longer valid, clearing")
		b.strategy.Unprime(b.auth)
		if err := b.strategy.Clear(); err != nil {
			logrus.WithError(err).Warnln("Failed to clear stored credentials")
		}
		return b.state.Dispatch(state.Logout{})
	}

	if err := account.MirrorUser(store, user); err != nil {
		logrus.WithError(err).Warnln("Failed to mirror user")
	}

	logrus.WithFields(logrus.Fields{
		"email": user.Email,
		"mode":  models.StrategyBearer,
	}).Debugln("Restored session")

	return b.state.Dispatch(state.RestoreSession{User: *user})
}
