package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrEmptyURL is returned when no URL was supplied
var ErrEmptyURL = errors.New("url is empty")

// Attempts returns the absolute URLs to try for user input, in order.
// Input without a scheme yields the https form followed by the http form.
func Attempts(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyURL
	}

	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		if _, err := parseHTTP(raw); err != nil {
			return nil, err
		}
		return []string{raw}, nil
	}
	if strings.Contains(raw, "://") {
		return nil, fmt.Errorf("unsupported URL scheme: %q", raw)
	}

	raw = strings.TrimPrefix(raw, "//")
	secure := "https://" + raw
	if _, err := parseHTTP(secure); err != nil {
		return nil, err
	}
	return []string{secure, "http://" + raw}, nil
}

// Normalize returns the preferred absolute form of user input
func Normalize(raw string) (string, error) {
	attempts, err := Attempts(raw)
	if err != nil {
		return "", err
	}
	return attempts[0], nil
}

func parseHTTP(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("URL must be http or https")
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("URL has no host: %q", raw)
	}
	return u, nil
}

// CanonicalKey reduces a URL to a comparison key: lower-case host without "www.",
// no default port, no fragment and no trailing slash. The scheme is ignored.
func CanonicalKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	key := host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// SameSite reports whether two hosts belong to the same site, ignoring a "www." prefix
func SameSite(a, b string) bool {
	return strings.TrimPrefix(strings.ToLower(a), "www.") == strings.TrimPrefix(strings.ToLower(b), "www.")
}
