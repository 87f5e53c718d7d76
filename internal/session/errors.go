package session

import "errors"

// ErrRefreshExhausted means the session could not be recovered: there was
// no refresh credential or the refresh call failed. Local credentials have
// been cleared and the redirect collaborator invoked.
var ErrRefreshExhausted = errors.New("session refresh exhausted")
