package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func TestFetchSuccess(t *testing.T) {
	var gotUA, gotMode string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotMode = r.Header.Get("Sec-Fetch-Mode")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><title>Acme</title></html>"))
	}))
	defer server.Close()

	f := New(DefaultConfig())
	resp, err := f.Fetch(context.Background(), server.URL+"/about")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(resp.Body), "<title>Acme</title>") {
		t.Errorf("Body = %q", resp.Body)
	}
	if resp.FinalURL != server.URL+"/about" {
		t.Errorf("FinalURL = %q", resp.FinalURL)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want browser user agent", gotUA)
	}
	if gotMode != "navigate" {
		t.Errorf("Sec-Fetch-Mode = %q, want navigate", gotMode)
	}
}

func TestFetchStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Kind
	}{
		{"forbidden", http.StatusForbidden, KindBlocked},
		{"rate limited", http.StatusTooManyRequests, KindBlocked},
		{"not found", http.StatusNotFound, KindNotFound},
		{"server error", http.StatusInternalServerError, KindNetwork},
		{"gone", http.StatusGone, KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := New(DefaultConfig()).Fetch(context.Background(), server.URL)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
			fe := err.(*Error)
			if fe.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", fe.StatusCode, tt.status)
			}
		})
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>moved</html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := New(DefaultConfig()).Fetch(context.Background(), server.URL+"/old")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.FinalURL != server.URL+"/new" {
		t.Errorf("FinalURL = %q, want %q", resp.FinalURL, server.URL+"/new")
	}
	if resp.RequestURL != server.URL+"/old" {
		t.Errorf("RequestURL = %q", resp.RequestURL)
	}
}

func TestFetchTooManyRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	defer server.Close()

	config := DefaultConfig()
	config.MaxRedirects = 3
	_, err := New(config).Fetch(context.Background(), server.URL+"/loop")
	if got := KindOf(err); got != KindTooManyRedirects {
		t.Errorf("KindOf() = %q, want %q (err = %v)", got, KindTooManyRedirects, err)
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	config := DefaultConfig()
	config.Timeout = 50 * time.Millisecond
	_, err := New(config).Fetch(context.Background(), server.URL)
	if got := KindOf(err); got != KindTimeout {
		t.Errorf("KindOf() = %q, want %q (err = %v)", got, KindTimeout, err)
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(DefaultConfig()).Fetch(context.Background(), url)
	if got := KindOf(err); got != KindNetwork {
		t.Errorf("KindOf() = %q, want %q", got, KindNetwork)
	}
}

func TestFetchDecodesGzip(t *testing.T) {
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	gz.Write([]byte("<html><body>Founded in 1999</body></html>"))
	gz.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			t.Errorf("Accept-Encoding = %q, want gzip", r.Header.Get("Accept-Encoding"))
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(compressed.Bytes())
	}))
	defer server.Close()

	resp, err := New(DefaultConfig()).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(string(resp.Body), "Founded in 1999") {
		t.Errorf("Body = %q, want decoded HTML", resp.Body)
	}
}

func TestFetchConvertsCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "Café" in Latin-1
		w.Write([]byte{'<', 'p', '>', 'C', 'a', 'f', 0xe9, '<', '/', 'p', '>'})
	}))
	defer server.Close()

	resp, err := New(DefaultConfig()).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(string(resp.Body), "Café") {
		t.Errorf("Body = %q, want UTF-8 Café", resp.Body)
	}
}

func TestFetchTruncatesLargeBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(bytes.Repeat([]byte("a"), 4096))
	}))
	defer server.Close()

	config := DefaultConfig()
	config.MaxBodyBytes = 1024
	resp, err := New(config).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Body) != 1024 {
		t.Errorf("len(Body) = %d, want 1024", len(resp.Body))
	}
}

func TestFetchFallsBackToHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>plain</html>"))
	}))
	defer server.Close()

	bare := strings.TrimPrefix(server.URL, "http://")
	resp, err := New(DefaultConfig()).Fetch(context.Background(), bare)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.HasPrefix(resp.FinalURL, "http://") {
		t.Errorf("FinalURL = %q, want http fallback", resp.FinalURL)
	}
}

func TestHTTPClientUsesOtelTransport(t *testing.T) {
	f := New(DefaultConfig())
	if _, ok := f.HTTPClient().Transport.(*otelhttp.Transport); !ok {
		t.Errorf("Transport = %T, want *otelhttp.Transport", f.HTTPClient().Transport)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	f := New(Config{})
	if f.config.Timeout != DefaultConfig().Timeout {
		t.Errorf("Timeout = %v", f.config.Timeout)
	}
	if f.config.MaxRedirects != 10 {
		t.Errorf("MaxRedirects = %d, want 10", f.config.MaxRedirects)
	}
	if f.UserAgent() != DefaultUserAgent {
		t.Errorf("UserAgent() = %q", f.UserAgent())
	}
}
