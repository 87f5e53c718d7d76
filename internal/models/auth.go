package models

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// RefreshRequest is the bearer-mode refresh body. Cookie mode posts an
// empty object and relies on the server-held refresh cookie.
type RefreshRequest struct {
	Refresh string `json:"refresh,omitempty"`
}

// TokenResponse is returned by both the login and refresh endpoints.
// Some backends name the access token access_token.
type TokenResponse struct {
	Access      string `json:"access,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	Refresh     string `json:"refresh,omitempty"`
	Requires2FA bool   `json:"requires_2fa,omitempty"`
}

func (t *TokenResponse) GetAccess() string {
	if len(t.Access) > 0 {
		return t.Access
	}
	return t.AccessToken
}

func (t *TokenResponse) HasRotatedRefresh() bool {
	return len(t.Refresh) > 0
}

type ErrorResponse struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func (e ErrorResponse) GetMessage() string {
	if len(e.Detail) > 0 {
		return e.Detail
	}
	if len(e.Message) > 0 {
		return e.Message
	}
	return e.Title
}
