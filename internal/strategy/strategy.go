package strategy

import (
	"fmt"

	"github.com/lumen-io/client/internal/credentials"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/transport"
)

// Strategy captures everything that differs between cookie and bearer
// deployments. It is chosen once at construction and never changes.
type Strategy interface {
	Mode() models.StrategyMode
	Store() credentials.Store

	// Authenticate returns a decorated copy of req. It never touches
	// session state and never fails: a missing credential just means the
	// request goes out unauthenticated.
	Authenticate(req *models.RequestDescriptor) *models.RequestDescriptor

	// ConfigureTransport applies client-wide transport settings.
	ConfigureTransport(t transport.Configurable)

	// Prime prepares the transport for an identity check at start up and
	// reports whether there is anything to check.
	Prime(t transport.Configurable) bool
	Unprime(t transport.Configurable)

	// CanRefresh reports whether a refresh attempt is possible at all.
	CanRefresh() bool
	RefreshBody() any

	// Persist stores the credentials returned by login or refresh.
	Persist(tokens *models.TokenResponse) error

	// MirrorsIdentity reports whether the canonical user is mirrored to
	// local storage for faster subsequent boots.
	MirrorsIdentity() bool

	Clear() error
}

// New returns the strategy for mode backed by store.
func New(mode models.StrategyMode, store credentials.Store) (Strategy, error) {
	switch mode {
	case models.StrategyCookie:
		cookies, ok := store.(*credentials.CookieStore)
		if !ok {
			return nil, fmt.Errorf("cookie strategy requires a cookie store, got %T", store)
		}
		return NewCookieStrategy(cookies), nil
	case models.StrategyBearer:
		return NewBearerStrategy(store), nil
	default:
		return nil, fmt.Errorf("unknown strategy mode: %q", mode)
	}
}
