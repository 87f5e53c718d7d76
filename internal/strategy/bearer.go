package strategy

import (
	"errors"
	"fmt"

	"github.com/lumen-io/client/internal/credentials"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/transport"
	"github.com/sirupsen/logrus"
)

var ErrMissingAccessToken = errors.New("response did not contain an access token")

// BearerStrategy keeps both tokens client side and sends the access token
// as an Authorization header.
type BearerStrategy struct {
	store credentials.Store
}

func NewBearerStrategy(store credentials.Store) *BearerStrategy {
	return &BearerStrategy{store: store}
}

func BearerHeader(token string) string {
	return fmt.Sprintf("Bearer %s", token)
}

func (b *BearerStrategy) Mode() models.StrategyMode {
	return models.StrategyBearer
}

func (b *BearerStrategy) Store() credentials.Store {
	return b.store
}

func (b *BearerStrategy) Authenticate(req *models.RequestDescriptor) *models.RequestDescriptor {
	decorated := req.Clone()

	token, ok := b.store.Get(models.AccessTokenName)
	if !ok {
		decorated.Header.Del("Authorization")
		return decorated
	}

	decorated.Header.Set("Authorization", BearerHeader(token))
	return decorated
}

func (b *BearerStrategy) ConfigureTransport(_ transport.Configurable) {}

func (b *BearerStrategy) Prime(t transport.Configurable) bool {
	token, ok := b.store.Get(models.AccessTokenName)
	if !ok {
		return false
	}
	t.SetDefaultHeader("Authorization", BearerHeader(token))
	return true
}

func (b *BearerStrategy) Unprime(t transport.Configurable) {
	t.RemoveDefaultHeader("Authorization")
}

func (b *BearerStrategy) CanRefresh() bool {
	_, ok := b.store.Get(models.RefreshTokenName)
	return ok
}

func (b *BearerStrategy) RefreshBody() any {
	refresh, _ := b.store.Get(models.RefreshTokenName)
	return models.RefreshRequest{Refresh: refresh}
}

// Persist writes the access token and, when the backend rotated it, the
// new refresh token.
func (b *BearerStrategy) Persist(tokens *models.TokenResponse) error {
	if tokens == nil || len(tokens.GetAccess()) == 0 {
		return ErrMissingAccessToken
	}

	if err := b.store.Set(models.AccessTokenName, tokens.GetAccess(),
		credentials.DefaultOptions(models.AccessTokenName, true)); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}

	if tokens.HasRotatedRefresh() {
		if err := b.store.Set(models.RefreshTokenName, tokens.Refresh,
			credentials.DefaultOptions(models.RefreshTokenName, true)); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"rotated": tokens.HasRotatedRefresh(),
	}).Debugln("Stored bearer credentials")

	return nil
}

func (b *BearerStrategy) MirrorsIdentity() bool {
	return true
}

func (b *BearerStrategy) Clear() error {
	return b.store.Clear()
}
