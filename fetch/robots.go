package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// Robots answers robots.txt questions for the hosts of one request.
// A host whose robots.txt cannot be loaded is treated as allowing everything.
type Robots struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration

	mu     sync.Mutex
	groups map[string]*robotstxt.Group // keyed by scheme://host, nil means allow all
}

// NewRobots creates a checker that loads robots.txt with the fetcher's client
func NewRobots(f *Fetcher) *Robots {
	timeout := f.config.Timeout
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &Robots{
		client:    f.httpClient,
		userAgent: f.config.UserAgent,
		timeout:   timeout,
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether rawURL may be fetched
func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	group := r.group(ctx, u.Scheme+"://"+u.Host)
	if group == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

func (r *Robots) group(ctx context.Context, origin string) *robotstxt.Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	if group, ok := r.groups[origin]; ok {
		return group
	}
	group := r.load(ctx, origin)
	r.groups[origin] = group
	return group
}

func (r *Robots) load(ctx context.Context, origin string) *robotstxt.Group {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Debug("robots.txt unavailable, allowing all", "origin", origin, "error", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		slog.Debug("robots.txt unparseable, allowing all", "origin", origin, "error", err)
		return nil
	}
	return data.FindGroup(r.userAgent)
}
