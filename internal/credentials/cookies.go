// Package credentials models the cookie and auth-token bootstrap material
// a chart session needs before it can authenticate, and an optional local
// cache so that material doesn't need to be re-scraped on every process
// start. Acquiring cookies from a live browser profile stays an external,
// pre-process concern (spec.md §1) — this package only models the shapes
// the core must accept (§6) and a place to stash them between runs.
package credentials

import (
	"context"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

const (
	defaultDomain = ".tradingview.com"
	defaultPath   = "/"
)

// StaticCookieSource implements domain.CookieSource over a fixed set of
// cookies supplied at construction, covering both accepted shapes from
// spec.md §6: a name->value mapping and a list of {name, value, domain?,
// path?} records.
type StaticCookieSource struct {
	cookies []domain.Cookie
}

// FromMap builds a StaticCookieSource from a name->value mapping, applying
// the default domain and path to every entry.
func FromMap(values map[string]string) StaticCookieSource {
	cookies := make([]domain.Cookie, 0, len(values))
	for name, value := range values {
		cookies = append(cookies, domain.Cookie{Name: name, Value: value, Domain: defaultDomain, Path: defaultPath})
	}
	return StaticCookieSource{cookies: cookies}
}

// FromRecords builds a StaticCookieSource from a list of cookie records,
// filling in the default domain/path for any record that omits them.
func FromRecords(records []domain.Cookie) StaticCookieSource {
	cookies := make([]domain.Cookie, len(records))
	for i, c := range records {
		if c.Domain == "" {
			c.Domain = defaultDomain
		}
		if c.Path == "" {
			c.Path = defaultPath
		}
		cookies[i] = c
	}
	return StaticCookieSource{cookies: cookies}
}

// Cookies implements domain.CookieSource.
func (s StaticCookieSource) Cookies(ctx context.Context) ([]domain.Cookie, error) {
	return s.cookies, nil
}

// EnvCookieSource reads cookie values out of environment variables at
// Cookies-call time, keyed by cookie name. Useful for deployments where
// cookies are injected as process environment rather than a config file.
type EnvCookieSource struct {
	names  []string
	lookup func(string) (string, bool)
}

// NewEnvCookieSource returns an EnvCookieSource that reads names from
// lookup (os.LookupEnv in production; a fake in tests).
func NewEnvCookieSource(names []string, lookup func(string) (string, bool)) EnvCookieSource {
	return EnvCookieSource{names: names, lookup: lookup}
}

// Cookies implements domain.CookieSource, skipping any name absent from
// the environment.
func (s EnvCookieSource) Cookies(ctx context.Context) ([]domain.Cookie, error) {
	cookies := make([]domain.Cookie, 0, len(s.names))
	for _, name := range s.names {
		value, ok := s.lookup(name)
		if !ok {
			continue
		}
		cookies = append(cookies, domain.Cookie{Name: name, Value: value, Domain: defaultDomain, Path: defaultPath})
	}
	return cookies, nil
}
