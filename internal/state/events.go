package state

import "github.com/lumen-io/client/internal/models"

// Event is the closed set of transitions the session state accepts.
type Event interface {
	eventName() string
}

type LoginSuccess struct {
	User models.User
}

type Logout struct{}

type RestoreSession struct {
	User models.User
}

type SetLoading struct {
	Loading bool
}

type SetError struct {
	Error *string
}

type RequiresSecondFactor struct{}

func (LoginSuccess) eventName() string         { return "login-success" }
func (Logout) eventName() string               { return "logout" }
func (RestoreSession) eventName() string       { return "restore-session" }
func (SetLoading) eventName() string           { return "set-loading" }
func (SetError) eventName() string             { return "set-error" }
func (RequiresSecondFactor) eventName() string { return "requires-second-factor" }

// ErrorMessage is a helper for building SetError events.
func ErrorMessage(msg string) SetError {
	return SetError{Error: &msg}
}

// ClearError builds the SetError event that removes the current error.
func ClearError() SetError {
	return SetError{}
}
