package strategy

import (
	"github.com/lumen-io/client/internal/credentials"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/transport"
	"github.com/sirupsen/logrus"
)

// CookieStrategy relies on HttpOnly cookies the backend sets and clears
// itself. Requests carry no custom header, the shared cookie jar does the
// work.
type CookieStrategy struct {
	store *credentials.CookieStore
}

func NewCookieStrategy(store *credentials.CookieStore) *CookieStrategy {
	return &CookieStrategy{store: store}
}

func (c *CookieStrategy) Mode() models.StrategyMode {
	return models.StrategyCookie
}

func (c *CookieStrategy) Store() credentials.Store {
	return c.store
}

func (c *CookieStrategy) Authenticate(req *models.RequestDescriptor) *models.RequestDescriptor {
	return req.Clone()
}

// ConfigureTransport makes the transport send cookies on every call,
// including cross-origin ones.
func (c *CookieStrategy) ConfigureTransport(t transport.Configurable) {
	t.SetCookieJar(c.store.Jar())
}

// Prime always reports true: only the server can tell whether the ambient
// cookies still hold a session.
func (c *CookieStrategy) Prime(_ transport.Configurable) bool {
	return true
}

func (c *CookieStrategy) Unprime(_ transport.Configurable) {}

// CanRefresh is always true, the refresh cookie may be HttpOnly.
func (c *CookieStrategy) CanRefresh() bool {
	return true
}

func (c *CookieStrategy) RefreshBody() any {
	return struct{}{}
}

func (c *CookieStrategy) Persist(tokens *models.TokenResponse) error {
	// New cookies arrive through Set-Cookie and land in the jar directly
	logrus.Debugln("Cookie strategy relies on server-set cookies, nothing to persist")
	return nil
}

func (c *CookieStrategy) MirrorsIdentity() bool {
	return false
}

func (c *CookieStrategy) Clear() error {
	return c.store.Clear()
}
