package store

import (
	"strings"

	"golang.org/x/net/idna"

	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/model"
)

// normalizeDomain maps a host to the key the dispatcher looks cookies up
// by: lower-case ASCII, with IDNs converted to punycode.
func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if ascii, err := idna.ToASCII(domain); err == nil {
		return ascii
	}
	return domain
}

// AddCookie upserts cookie under domain, keyed by (domain, name).
func (s *Store) AddCookie(domain string, cookie model.Cookie) ([]model.Cookie, error) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return nil, errdef.InvalidInput("add cookie", "domain is required")
	}
	if cookie.Name == "" {
		return nil, errdef.InvalidInput("add cookie", "cookie name is required")
	}
	cookie.Domain = domain

	s.mu.Lock()
	defer s.mu.Unlock()

	cookies, err := s.records.UpsertCookie(cookie)
	if err != nil {
		return nil, errdef.Storage("add cookie", err)
	}
	s.cookies = cookies
	s.reindexLocked()
	return cloneCookies(s.cookieIndex[domain]), nil
}

// RemoveCookie deletes one cookie. A domain left without cookies drops out
// of the index.
func (s *Store) RemoveCookie(domain, name string) error {
	domain = normalizeDomain(domain)

	s.mu.Lock()
	defer s.mu.Unlock()

	cookies, err := s.records.DeleteCookie(domain, name)
	if err != nil {
		return errdef.Storage("remove cookie", err)
	}
	s.cookies = cookies
	s.reindexLocked()
	return nil
}

// CookiesForDomain returns the cookies stored for domain, enabled or not.
// The domain is normalized the same way AddCookie does it.
// An unknown domain yields an empty slice.
func (s *Store) CookiesForDomain(domain string) []model.Cookie {
	domain = normalizeDomain(domain)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCookies(s.cookieIndex[domain])
}

// CookieDomains returns every domain holding at least one cookie, sorted.
func (s *Store) CookieDomains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedDomains(s.cookieIndex)
}

func cloneCookies(in []model.Cookie) []model.Cookie {
	out := make([]model.Cookie, len(in))
	copy(out, in)
	return out
}
