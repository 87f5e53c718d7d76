package transport

import (
	"context"
	"net/http"

	"github.com/lumen-io/client/internal/models"
)

// Transport sends one request. Any failed exchange comes back as a
// *models.HTTPError carrying the status code (zero when no response was
// received) and the descriptor that was sent.
type Transport interface {
	Send(ctx context.Context, req *models.RequestDescriptor) (*models.Response, error)
}

// Configurable is implemented by transports whose client-wide settings can
// be adjusted by a credential strategy.
type Configurable interface {
	SetCookieJar(jar http.CookieJar)
	SetDefaultHeader(key string, value string)
	RemoveDefaultHeader(key string)
}
