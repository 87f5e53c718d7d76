package models

type CredentialKind string

const (
	CredentialAccess  CredentialKind = "access"
	CredentialRefresh CredentialKind = "refresh"
)

// Names under which credentials and session artefacts are stored.
const (
	AccessTokenName  = "access_token"
	RefreshTokenName = "refresh_token"
	UserMirrorName   = "user"

	// Cookies the backend may set alongside the tokens. They are removed
	// by name on teardown even when the client cannot read them.
	CSRFCookieName    = "csrftoken"
	SessionCookieName = "sessionid"
)

// Credential is a single secret held by the credential store. Nothing
// outside the store keeps one beyond a single operation.
type Credential struct {
	Kind  CredentialKind `json:"kind"`
	Value string         `json:"value"`
}

func (c Credential) Name() string {
	if c.Kind == CredentialRefresh {
		return RefreshTokenName
	}
	return AccessTokenName
}

func (c Credential) IsEmpty() bool {
	return len(c.Value) == 0
}

// SessionArtefacts lists every stored name that teardown must remove.
func SessionArtefacts() []string {
	return []string{
		AccessTokenName,
		RefreshTokenName,
		UserMirrorName,
		CSRFCookieName,
		SessionCookieName,
	}
}
