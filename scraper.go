// Package scraper finds a company's About page and turns it into structured
// company information, sections, key values and media. The programmatic
// extraction always runs; an LLM enhancer is consulted only when the results
// are poor or the caller asks for it, and its failures never fail a request.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/docutag/aboutus-scraper/cache"
	"github.com/docutag/aboutus-scraper/confidence"
	"github.com/docutag/aboutus-scraper/fetch"
	"github.com/docutag/aboutus-scraper/locator"
	"github.com/docutag/aboutus-scraper/metrics"
	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/ollama"
	"github.com/docutag/aboutus-scraper/page"
)

// Config contains scraper configuration
type Config struct {
	Fetch           fetch.Config
	Locator         locator.Config
	Policy          confidence.Policy
	RespectRobots   bool // Skip About candidates disallowed by robots.txt
	MaxConcurrentAI int  // Enhancer calls in flight across all requests
	MaxContentChars int  // Cap on the content field of company responses
}

// DefaultConfig returns default scraper configuration
func DefaultConfig() Config {
	return Config{
		Fetch:           fetch.DefaultConfig(),
		Locator:         locator.DefaultConfig(),
		Policy:          confidence.DefaultPolicy(),
		RespectRobots:   true,
		MaxConcurrentAI: 3,
		MaxContentChars: 10000,
	}
}

// ErrInvalidInput marks request errors caused by malformed caller input
var ErrInvalidInput = errors.New("invalid input")

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Enhancer produces an AI company profile for one page
type Enhancer interface {
	Enhance(ctx context.Context, in ollama.Input) (*ollama.Result, error)
}

// Scraper runs the scrape flows. It is safe for concurrent use; only the
// cache and the AI semaphore are shared between requests.
type Scraper struct {
	config   Config
	fetcher  *fetch.Fetcher
	locator  *locator.Locator
	enhancer Enhancer
	loader   *cache.Loader
	aiSlots  chan struct{} // Semaphore limiting concurrent enhancer calls
}

// New creates a Scraper. enhancer may be nil to disable AI enhancement and
// loader may be nil to disable caching.
func New(config Config, enhancer Enhancer, loader *cache.Loader) *Scraper {
	if config.MaxConcurrentAI <= 0 {
		config.MaxConcurrentAI = 3
	}
	if config.MaxContentChars <= 0 {
		config.MaxContentChars = DefaultConfig().MaxContentChars
	}
	if config.Policy == (confidence.Policy{}) {
		config.Policy = confidence.DefaultPolicy()
	}

	fetcher := fetch.New(config.Fetch)
	var newRobots func() locator.RobotsChecker
	if config.RespectRobots {
		newRobots = func() locator.RobotsChecker { return fetch.NewRobots(fetcher) }
	}

	return &Scraper{
		config:   config,
		fetcher:  fetcher,
		locator:  locator.New(config.Locator, fetcher, newRobots),
		enhancer: enhancer,
		loader:   loader,
		aiSlots:  make(chan struct{}, config.MaxConcurrentAI),
	}
}

// AIEnabled reports whether an enhancer is configured
func (s *Scraper) AIEnabled() bool {
	return s.enhancer != nil
}

// acquireAISlot acquires a slot in the AI semaphore or returns error if context is cancelled
func (s *Scraper) acquireAISlot(ctx context.Context) error {
	select {
	case s.aiSlots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// releaseAISlot releases a slot in the AI semaphore
func (s *Scraper) releaseAISlot() {
	<-s.aiSlots
}

// enhance calls the enhancer under the semaphore. Errors are always *ollama.Error.
func (s *Scraper) enhance(ctx context.Context, in ollama.Input) (*ollama.Result, error) {
	if err := s.acquireAISlot(ctx); err != nil {
		return nil, &ollama.Error{Kind: ollama.KindTimeout, Err: fmt.Errorf("waiting for AI slot: %w", err)}
	}
	defer s.releaseAISlot()

	res, err := s.enhancer.Enhance(ctx, in)
	if err != nil {
		var aiErr *ollama.Error
		if !errors.As(err, &aiErr) {
			err = &ollama.Error{Kind: ollama.KindProviderError, Err: err}
		}
		return nil, err
	}
	if res == nil {
		return nil, &ollama.Error{Kind: ollama.KindMalformedResponse, Err: errors.New("empty result")}
	}
	return res, nil
}

// aiFailureNote describes a swallowed enhancer error
func aiFailureNote(err error) string {
	kind := ollama.KindProviderError
	var aiErr *ollama.Error
	if errors.As(err, &aiErr) {
		kind = aiErr.Kind
	}
	return fmt.Sprintf("AI enhancement failed (%s); using programmatic results", kind)
}

// normalizeURL validates caller input and returns the URL to fetch and the cache key part
func normalizeURL(raw string) (string, string, error) {
	normalized, err := fetch.Normalize(raw)
	if err != nil {
		return "", "", invalidInput("url: %v", err)
	}
	return normalized, fetch.CanonicalKey(normalized), nil
}

// fetchPage fetches and parses one page
func (s *Scraper) fetchPage(ctx context.Context, rawURL string) (*page.Document, error) {
	resp, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return page.Parse(resp.RequestURL, resp.FinalURL, resp.Body)
}

// errorInfo converts a root failure into the response descriptor
func errorInfo(err error) *models.ErrorInfo {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return &models.ErrorInfo{Kind: string(fe.Kind), Message: err.Error()}
	}
	var pe *page.ParseError
	if errors.As(err, &pe) {
		return &models.ErrorInfo{Kind: string(pe.Kind), Message: err.Error()}
	}
	return &models.ErrorInfo{Kind: "internal", Message: err.Error()}
}

// abandonedNote is reported when the caller's context ends before its scrape finished
const abandonedNote = "Request ended before the scrape finished"

// abandoned converts the caller's own context ending into a response error.
// Other errors are returned with ok false.
func abandoned(ctx context.Context, err error) (*models.ErrorInfo, bool) {
	ctxErr := ctx.Err()
	if ctxErr == nil || !errors.Is(err, ctxErr) {
		return nil, false
	}
	kind := string(fetch.KindTimeout)
	if errors.Is(ctxErr, context.Canceled) {
		kind = "cancelled"
	}
	return &models.ErrorInfo{Kind: kind, Message: err.Error()}, true
}

// notes accumulates non-fatal degradations reported to the caller
type notes []string

func (n *notes) add(format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	for _, existing := range *n {
		if existing == msg {
			return
		}
	}
	*n = append(*n, msg)
}

func (n notes) list() []string {
	if n == nil {
		return []string{}
	}
	return append([]string{}, n...)
}

func recordScrape(flow, approach string, success bool, start time.Time) {
	metrics.ScrapesTotal.WithLabelValues(flow, approach, strconv.FormatBool(success)).Inc()
	slog.Debug("scrape flow finished",
		"flow", flow,
		"approach", approach,
		"success", success,
		"duration", time.Since(start),
	)
}

// seconds rounds a duration to milliseconds for response bodies
func seconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}

// truncateRunes cuts s to at most limit runes
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
