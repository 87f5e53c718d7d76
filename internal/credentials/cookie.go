package credentials

import (
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/lumen-io/client/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

// CookieStore is the cookie-mode view over the transport's cookie jar.
// The backend normally sets and clears these cookies itself; writes from
// the client are only needed when it has to set a cookie directly.
type CookieStore struct {
	jar  http.CookieJar
	base *url.URL

	// Every origin and path a session cookie may have been scoped to.
	// Remove expires each name across all of them.
	scopes []*url.URL
	paths  []string
}

// NewCookieJar returns a jar that scopes cookies by registrable domain.
func NewCookieJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
}

func NewCookieStore(jar http.CookieJar, baseURL string) (*CookieStore, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie url %q: %w", baseURL, err)
	}
	if len(base.Host) == 0 {
		return nil, fmt.Errorf("cookie url %q has no host", baseURL)
	}
	store := &CookieStore{
		jar:  jar,
		base: &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"},
	}
	store.addScope(base)
	return store, nil
}

// AddScope registers another URL whose host or path the backend may scope
// session cookies to, such as a separate API host or an auth endpoint
// whose response sets a cookie without a Path attribute.
func (c *CookieStore) AddScope(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid cookie url %q: %w", rawURL, err)
	}
	if len(u.Host) == 0 {
		return fmt.Errorf("cookie url %q has no host", rawURL)
	}
	c.addScope(u)
	return nil
}

func (c *CookieStore) addScope(u *url.URL) {
	origin := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}

	known := false
	for _, scope := range c.scopes {
		if scope.Scheme == origin.Scheme && scope.Host == origin.Host {
			known = true
			break
		}
	}
	if !known {
		c.scopes = append(c.scopes, origin)
	}

	for _, path := range pathPrefixes(u.Path) {
		known = false
		for _, existing := range c.paths {
			if existing == path {
				known = true
				break
			}
		}
		if !known {
			c.paths = append(c.paths, path)
		}
	}
}

// pathPrefixes returns "/" and every directory of path, which covers both
// explicit Path attributes and the default path a jar derives from the
// request URL.
func pathPrefixes(path string) []string {
	prefixes := []string{"/"}
	current := ""
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		if len(segment) == 0 {
			continue
		}
		current += "/" + segment
		prefixes = append(prefixes, current)
	}
	return prefixes
}

// parentDomains lists the domains a host may receive Domain= cookies
// for, down to its registrable domain. IPs and single-label hosts have
// none.
func parentDomains(host string) []string {
	if net.ParseIP(host) != nil {
		return nil
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || registrable == host {
		return nil
	}
	var domains []string
	for domain := host; domain != registrable; {
		_, rest, ok := strings.Cut(domain, ".")
		if !ok {
			break
		}
		domains = append(domains, rest)
		domain = rest
	}
	return domains
}

func (c *CookieStore) Jar() http.CookieJar {
	return c.jar
}

func (c *CookieStore) secure() bool {
	// Secure cookies are never returned for plain http origins
	return c.base.Scheme == "https"
}

func (c *CookieStore) Get(name string) (string, bool) {
	for _, cookie := range c.jar.Cookies(c.base) {
		if cookie.Name == name && len(cookie.Value) > 0 {
			return cookie.Value, true
		}
	}
	return "", false
}

func (c *CookieStore) Set(name string, value string, opts Options) error {
	if opts.ServerOnly {
		logrus.WithField("name", name).Debugln("Skipping client write of server-only cookie")
		return nil
	}

	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   opts.Secure && c.secure(),
		SameSite: opts.SameSite,
	}
	if opts.Expires > 0 {
		cookie.Expires = time.Now().Add(opts.Expires)
	}

	c.jar.SetCookies(c.base, []*http.Cookie{cookie})
	return nil
}

// Remove expires name for every registered origin and path, in host-only
// and Domain= form. The jar keys cookies by domain, path and name, so a
// single expiry only reaches one of them.
func (c *CookieStore) Remove(name string) error {
	for _, scope := range c.scopes {
		// Domain equal to the host shares the host-only key
		domains := append([]string{""}, parentDomains(scope.Hostname())...)

		var expired []*http.Cookie
		for _, domain := range domains {
			for _, path := range c.paths {
				expired = append(expired, &http.Cookie{
					Name:   name,
					Domain: domain,
					Path:   path,
					MaxAge: -1,
				})
			}
		}
		c.jar.SetCookies(scope, expired)
	}
	return nil
}

// Clear expires every session cookie by name, including ones the client
// may never have been able to read.
func (c *CookieStore) Clear() error {
	for _, name := range models.SessionArtefacts() {
		if err := c.Remove(name); err != nil {
			logrus.WithError(err).WithField("name", name).Warnln("Failed to remove cookie")
		}
	}
	return nil
}
