package common

import (
	"net/url"
	"strings"
)

// NormalizeURL validates a submitted URL and returns the canonical form
// stored on the page plus the lowercase key used for per-owner duplicate
// detection. Only absolute http/https URLs are accepted.
func NormalizeURL(raw string) (canonical string, normalKey string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	canonical = u.String()
	return canonical, strings.ToLower(canonical), true
}

// Origin returns the scheme://host[:port] origin of a URL, used to classify
// links as internal or external relative to their parent page.
func Origin(u *url.URL) string {
	if u == nil {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// SameOrigin reports whether two URLs share scheme and host.
func SameOrigin(a, b *url.URL) bool {
	return Origin(a) == Origin(b) && Origin(a) != ""
}
