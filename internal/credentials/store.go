package credentials

import (
	"errors"
	"net/http"
	"time"

	"github.com/lumen-io/client/internal/models"
)

// ErrStorageUnavailable is returned by writes when the backing storage
// cannot be reached. Reads never fail, they report the value as absent.
var ErrStorageUnavailable = errors.New("credential storage unavailable")

// RefreshCookieLifetime is how long a client-set refresh cookie lives.
const RefreshCookieLifetime = 7 * 24 * time.Hour

// Options control how a credential is written. Only the cookie store
// honours them, persistent stores keep values until removed.
type Options struct {
	// Zero means session scoped
	Expires  time.Duration
	Secure   bool
	SameSite http.SameSite
	// Credential is set and read by the server only
	ServerOnly bool
}

// Store persists the named secrets of one backend.
type Store interface {
	Get(name string) (string, bool)
	Set(name string, value string, opts Options) error
	Remove(name string) error
	// Clear removes the access and refresh credentials plus any auxiliary
	// session artefacts, best-effort.
	Clear() error
}

// DefaultOptions returns the write options used for a named credential:
// refresh credentials outlive the browser session, access credentials
// do not.
func DefaultOptions(name string, secure bool) Options {
	opts := Options{
		Secure:   secure,
		SameSite: http.SameSiteNoneMode,
	}
	if name == models.RefreshTokenName {
		opts.Expires = RefreshCookieLifetime
	}
	return opts
}
