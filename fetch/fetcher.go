// Package fetch retrieves raw HTML with browser-like headers and classifies failures.
package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/docutag/aboutus-scraper/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/html/charset"
)

// DefaultUserAgent is a current desktop Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var errTooManyRedirects = errors.New("stopped after too many redirects")

// browserHeaders are sent with every page request, in addition to User-Agent
var browserHeaders = [][2]string{
	{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
	{"Accept-Language", "en-US,en;q=0.9"},
	{"Accept-Encoding", "gzip, deflate"},
	{"DNT", "1"},
	{"Connection", "keep-alive"},
	{"Upgrade-Insecure-Requests", "1"},
	{"Sec-Fetch-Dest", "document"},
	{"Sec-Fetch-Mode", "navigate"},
	{"Sec-Fetch-Site", "none"},
	{"Sec-Fetch-User", "?1"},
	{"Cache-Control", "max-age=0"},
}

// Config contains fetcher configuration
type Config struct {
	Timeout      time.Duration // Per-attempt timeout, covering the body read
	MaxRedirects int           // Redirect hops followed before failing
	MaxBodyBytes int64         // Bodies are truncated beyond this size
	UserAgent    string
}

// DefaultConfig returns default fetcher configuration
func DefaultConfig() Config {
	return Config{
		Timeout:      20 * time.Second,
		MaxRedirects: 10,
		MaxBodyBytes: 5 * 1024 * 1024,
		UserAgent:    DefaultUserAgent,
	}
}

// Response is a successfully fetched page
type Response struct {
	RequestURL  string
	FinalURL    string // After redirects
	StatusCode  int
	ContentType string
	Body        []byte // UTF-8
}

// Fetcher performs page requests. It holds no per-request state and is safe for concurrent use.
type Fetcher struct {
	config     Config
	httpClient *http.Client
}

// New creates a Fetcher. Zero fields in config fall back to DefaultConfig values.
func New(config Config) *Fetcher {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = defaults.MaxRedirects
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	maxRedirects := config.MaxRedirects
	return &Fetcher{
		config: config,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone()),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
	}
}

// HTTPClient returns the instrumented client used for page requests
func (f *Fetcher) HTTPClient() *http.Client {
	return f.httpClient
}

// UserAgent returns the user agent sent with requests
func (f *Fetcher) UserAgent() string {
	return f.config.UserAgent
}

// Fetch retrieves rawURL. Input without a scheme is tried over https first and
// over http only when the https attempt fails before any response arrives.
// Failures are always *Error values.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	attempts, err := Attempts(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}

	var lastErr error
	for _, target := range attempts {
		resp, err := f.fetchOnce(ctx, target)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var fe *Error
		if !errors.As(err, &fe) || fe.StatusCode != 0 || ctx.Err() != nil {
			break
		}
		if fe.Kind != KindNetwork && fe.Kind != KindTimeout {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) (*Response, error) {
	start := time.Now()
	resp, err := f.do(ctx, target)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.FetchesTotal.WithLabelValues(string(KindOf(err))).Inc()
		slog.Debug("fetch failed", "url", target, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	metrics.FetchesTotal.WithLabelValues("ok").Inc()
	slog.Debug("page fetched",
		"url", target,
		"final_url", resp.FinalURL,
		"status", resp.StatusCode,
		"bytes", len(resp.Body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (f *Fetcher) do(ctx context.Context, target string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: target, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	for _, h := range browserHeaders {
		req.Header.Set(h[0], h[1])
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, classify(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{Kind: kindForStatus(resp.StatusCode), URL: target, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := f.readBody(resp.Body, resp.Header.Get("Content-Encoding"), contentType)
	if err != nil {
		return nil, classify(target, err)
	}

	return &Response{
		RequestURL:  target,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

// readBody reads at most MaxBodyBytes, undoes gzip/deflate encoding and converts to UTF-8
func (f *Fetcher) readBody(body io.Reader, encoding, contentType string) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(body, f.config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var decoded io.Reader = bytes.NewReader(raw)
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer gz.Close()
		decoded = gz
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			defer zr.Close()
			decoded = zr
		} else {
			decoded = flate.NewReader(bytes.NewReader(raw))
		}
	}

	utf8Reader, err := charset.NewReader(io.LimitReader(decoded, f.config.MaxBodyBytes), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode charset: %w", err)
	}
	out, err := io.ReadAll(utf8Reader)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}
	return out, nil
}

func classify(target string, err error) *Error {
	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, errTooManyRedirects):
		kind = KindTooManyRedirects
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &Error{Kind: kind, URL: target, Err: err}
}
