package session

// Endpoints are the auth backend paths, relative to the auth base URL.
type Endpoints struct {
	Login    string `mapstructure:"login"`
	Identity string `mapstructure:"identity"`
	Refresh  string `mapstructure:"refresh"`
	Logout   string `mapstructure:"logout"`
	Register string `mapstructure:"register"`
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:    "/token/",
		Identity: "/whoami/",
		Refresh:  "/token-refresh/",
		Logout:   "/logout/",
		Register: "/users/",
	}
}

// DefaultAuthPatterns are URL fragments that never trigger a refresh.
var DefaultAuthPatterns = []string{
	"/login",
	"/token/",
	"/token-refresh/",
	"/logout",
	"/whoami",
}

// Patterns returns the configured endpoints merged with the defaults.
func (e Endpoints) Patterns() []string {
	patterns := append([]string{}, DefaultAuthPatterns...)
	for _, path := range []string{e.Login, e.Identity, e.Refresh, e.Logout} {
		if len(path) == 0 {
			continue
		}
		found := false
		for _, existing := range patterns {
			if existing == path {
				found = true
				break
			}
		}
		if !found {
			patterns = append(patterns, path)
		}
	}
	return patterns
}
