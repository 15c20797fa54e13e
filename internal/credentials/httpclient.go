package credentials

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

// BuildHTTPClient returns an *http.Client whose cookie jar is seeded from
// source, for use by internal/metadataclient (which otherwise only knows
// it needs "a client that already carries session cookies"). Only the
// fixed set of TradingView hosts this engine talks to are ever in the jar,
// so the full public-suffix list cookiejar.New otherwise wants is unused.
func BuildHTTPClient(ctx context.Context, source domain.CookieSource) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("credentials: build cookie jar: %w", err)
	}

	cookies, err := source.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("credentials: load cookies: %w", err)
	}

	byDomain := make(map[string][]*http.Cookie)
	for _, c := range cookies {
		domainKey := c.Domain
		if domainKey == "" {
			domainKey = defaultDomain
		}
		byDomain[domainKey] = append(byDomain[domainKey], &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: domainKey,
			Path:   c.Path,
		})
	}

	for domainKey, httpCookies := range byDomain {
		u := &url.URL{Scheme: "https", Host: trimLeadingDot(domainKey)}
		jar.SetCookies(u, httpCookies)
	}

	return &http.Client{Jar: jar}, nil
}

func trimLeadingDot(host string) string {
	if len(host) > 0 && host[0] == '.' {
		return host[1:]
	}
	return host
}
