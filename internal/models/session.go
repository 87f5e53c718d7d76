package models

// SessionState is the client's view of the current login.
//
// IsAuthenticated implies User is set, and RequiresSecondFactor implies
// the session is not authenticated yet.
type SessionState struct {
	User                 *User   `json:"user,omitempty"`
	IsAuthenticated      bool    `json:"is_authenticated"`
	Loading              bool    `json:"loading"`
	Error                *string `json:"error,omitempty"`
	RequiresSecondFactor bool    `json:"requires_2fa"`
}

// DefaultSessionState is the logged-out state every process starts in.
func DefaultSessionState() SessionState {
	return SessionState{}
}

func (s SessionState) IsLoggedOut() bool {
	return !s.IsAuthenticated && s.User == nil
}

func (s SessionState) GetError() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// Valid reports whether the state satisfies its invariants.
func (s SessionState) Valid() bool {
	if s.IsAuthenticated && s.User == nil {
		return false
	}
	if s.RequiresSecondFactor && s.IsAuthenticated {
		return false
	}
	return true
}
