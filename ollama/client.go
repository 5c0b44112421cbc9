// Package ollama talks to an Ollama-compatible generate endpoint and turns its
// answers into company facts.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/docutag/aboutus-scraper/metrics"
	"github.com/docutag/aboutus-scraper/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1:8b"
	DefaultTimeout = 60 * time.Second
)

// ErrorKind classifies an AI enhancer failure
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindProviderError     ErrorKind = "provider_error"
	KindMalformedResponse ErrorKind = "malformed_response"
)

// Error is returned for every failed generation
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ai %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config configures the client
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string        // Sent as a bearer token when set
	Timeout     time.Duration // Per generation
	Temperature float64
	MaxTextLen  int // Page text beyond this many bytes is cut from the prompt
}

// DefaultConfig returns the client defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Timeout:     DefaultTimeout,
		Temperature: 0.1,
		MaxTextLen:  12000,
	}
}

// Client is an Ollama generate API client
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a client. Zero config fields take their defaults.
func NewClient(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxTextLen <= 0 {
		config.MaxTextLen = def.MaxTextLen
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.config.Model
}

// Generate sends one non-streaming prompt asking for a JSON answer and returns
// the raw response text
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(models.OllamaRequest{
		Model:   c.config.Model,
		Prompt:  prompt,
		System:  systemPrompt,
		Stream:  false,
		Format:  "json",
		Options: map[string]interface{}{"temperature": c.config.Temperature},
	})
	if err != nil {
		return "", &Error{Kind: KindProviderError, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindProviderError, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: classify(ctx, err), Err: fmt.Errorf("failed to call generate endpoint: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: classify(ctx, err), Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Kind: KindProviderError, Err: fmt.Errorf("generate endpoint returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))}
	}

	var out models.OllamaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &Error{Kind: KindMalformedResponse, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if out.Error != "" {
		return "", &Error{Kind: KindProviderError, Err: errors.New(out.Error)}
	}
	return out.Response, nil
}

// Enhance asks the model for a structured company profile of one page
func (c *Client) Enhance(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	text, err := c.Generate(ctx, buildPrompt(in, c.config.MaxTextLen))
	metrics.AIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		recordOutcome(err)
		return nil, err
	}

	result, err := ParseResult(text)
	if err != nil {
		recordOutcome(err)
		return nil, err
	}
	metrics.AIEnhancementsTotal.WithLabelValues("success").Inc()
	slog.Debug("ai enhancement complete",
		"url", in.URL,
		"model", c.config.Model,
		"fields", result.Facts.KeyFieldCount(),
		"mentions", len(result.Mentions),
		"duration", time.Since(start))
	return result, nil
}

func recordOutcome(err error) {
	var e *Error
	if errors.As(err, &e) {
		metrics.AIEnhancementsTotal.WithLabelValues(string(e.Kind)).Inc()
		return
	}
	metrics.AIEnhancementsTotal.WithLabelValues(string(KindProviderError)).Inc()
}

func classify(ctx context.Context, err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindProviderError
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
