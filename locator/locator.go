package locator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/docutag/aboutus-scraper/fetch"
	"github.com/docutag/aboutus-scraper/metrics"
	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/page"
)

// Config contains locator configuration
type Config struct {
	MaxCandidates     int     // Extra pages fetched at most
	Concurrency       int     // Candidate fetches in flight
	MinKeywordHits    int     // About keywords a page needs to validate
	MinKeywordDensity float64 // Keyword hits per word a page needs to validate
	IncludeCareers    bool    // Treat careers links as candidates
}

// DefaultConfig returns default locator configuration
func DefaultConfig() Config {
	return Config{
		MaxCandidates:     3,
		Concurrency:       3,
		MinKeywordHits:    1,
		MinKeywordDensity: 0.001,
	}
}

// MaxCandidatesLimit bounds the candidate fetches of one Locate whatever the caller asks for
const MaxCandidatesLimit = 10

// NoAboutPageNote is recorded when the root page content is used instead
const NoAboutPageNote = "No dedicated about page was found; using the root page content"

// validationKeywords are counted in candidate page text
var validationKeywords = []string{"about", "company", "founded", "mission", "team", "our story", "history", "values", "culture", "who we are"}

// Fetcher retrieves candidate pages
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// RobotsChecker answers whether a candidate may be fetched
type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Result is the outcome of locating the About page
type Result struct {
	Page        *page.Document // Validated About page, or the root page
	URL         string
	Found       int // Validated About pages
	RootIsAbout bool
	Analysis    []models.AboutPageAnalysis
	Notes       []string
}

// Locator drives candidate fetching for one site at a time
type Locator struct {
	config    Config
	fetcher   Fetcher
	newRobots func() RobotsChecker
}

// New creates a Locator. newRobots may be nil to fetch candidates regardless of robots.txt;
// otherwise it is called once per Locate so no robots state outlives a request.
func New(config Config, fetcher Fetcher, newRobots func() RobotsChecker) *Locator {
	defaults := DefaultConfig()
	if config.MaxCandidates <= 0 {
		config.MaxCandidates = defaults.MaxCandidates
	}
	config.MaxCandidates = min(config.MaxCandidates, MaxCandidatesLimit)
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.MinKeywordHits <= 0 {
		config.MinKeywordHits = defaults.MinKeywordHits
	}
	return &Locator{config: config, fetcher: fetcher, newRobots: newRobots}
}

type outcome struct {
	index     int
	doc       *page.Document
	validated bool
	err       error
}

// Locate finds the best About page for rootDoc. maxCandidates overrides the
// configured cap when positive, up to MaxCandidatesLimit. Candidate failures are recorded in the analysis
// and never returned as errors.
func (l *Locator) Locate(ctx context.Context, rootDoc *page.Document, maxCandidates int) Result {
	config := l.config
	if maxCandidates > 0 {
		config.MaxCandidates = min(maxCandidates, MaxCandidatesLimit)
	}

	result := Result{Page: rootDoc, URL: rootDoc.FinalURL}
	candidates := Rank(rootDoc, config)

	if len(candidates) > 0 && candidates[0].Source == SourceRoot {
		validated := l.validate(rootDoc.Text)
		result.RootIsAbout = true
		result.Analysis = []models.AboutPageAnalysis{analysisFor(candidates[0], rootDoc, validated, nil)}
		if validated {
			result.Found = 1
		}
		metrics.AboutCandidatesTotal.WithLabelValues("root").Inc()
		return result
	}

	var robots RobotsChecker
	if l.newRobots != nil {
		robots = l.newRobots()
	}

	runnable := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if robots != nil && !robots.Allowed(ctx, c.URL) {
			slog.Debug("about candidate disallowed by robots.txt", "url", c.URL)
			metrics.AboutCandidatesTotal.WithLabelValues("robots_disallowed").Inc()
			result.Analysis = append(result.Analysis, models.AboutPageAnalysis{
				URL:        c.URL,
				Score:      c.Score,
				Confidence: c.Label(),
				Error:      "robots_disallowed",
			})
			continue
		}
		runnable = append(runnable, c)
	}

	outcomes := l.fetchCandidates(ctx, runnable, fetch.CanonicalKey(rootDoc.FinalURL))

	winner := -1
	for i, c := range runnable {
		o, ok := outcomes[i]
		if !ok {
			continue
		}
		result.Analysis = append(result.Analysis, analysisFor(c, o.doc, o.validated, o.err))
		if o.validated {
			result.Found++
			if winner < 0 {
				winner = i
			}
		}
	}

	sortAnalysis(result.Analysis)

	if winner >= 0 {
		result.Page = outcomes[winner].doc
		result.URL = outcomes[winner].doc.FinalURL
	} else {
		result.Notes = append(result.Notes, NoAboutPageNote)
	}

	slog.Info("about page located",
		"root", rootDoc.FinalURL,
		"best", result.URL,
		"candidates", len(candidates),
		"found", result.Found,
	)
	return result
}

// fetchCandidates fetches candidates with bounded parallelism. The highest
// ranked validated candidate wins once every better ranked candidate has
// finished; remaining fetches are then cancelled and their results dropped.
func (l *Locator) fetchCandidates(ctx context.Context, candidates []Candidate, rootKey string) map[int]outcome {
	outcomes := make(map[int]outcome, len(candidates))
	if len(candidates) == 0 {
		return outcomes
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, l.config.Concurrency)
	results := make(chan outcome, len(candidates))
	for i, c := range candidates {
		go func(i int, c Candidate) {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- outcome{index: i, err: ctx.Err()}
				return
			}
			defer func() { <-sem }()
			results <- l.fetchOne(ctx, i, c, rootKey)
		}(i, c)
	}

	decided := false
	for received := 0; received < len(candidates); received++ {
		o := <-results
		if decided {
			continue
		}
		outcomes[o.index] = o

		for i := range candidates {
			done, ok := outcomes[i]
			if !ok {
				break
			}
			if done.validated {
				decided = true
				cancel()
				break
			}
		}
	}
	return outcomes
}

func (l *Locator) fetchOne(ctx context.Context, index int, c Candidate, rootKey string) outcome {
	resp, err := l.fetcher.Fetch(ctx, c.URL)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			metrics.AboutCandidatesTotal.WithLabelValues("fetch_error").Inc()
		}
		return outcome{index: index, err: err}
	}

	doc, err := page.Parse(resp.RequestURL, resp.FinalURL, resp.Body)
	if err != nil {
		metrics.AboutCandidatesTotal.WithLabelValues("parse_error").Inc()
		return outcome{index: index, err: err}
	}

	// A candidate that redirects back to the home page is not a dedicated about page
	if fetch.CanonicalKey(doc.FinalURL) == rootKey {
		metrics.AboutCandidatesTotal.WithLabelValues("redirected_to_root").Inc()
		return outcome{index: index, doc: doc}
	}

	validated := l.validate(doc.Text)
	if validated {
		metrics.AboutCandidatesTotal.WithLabelValues("validated").Inc()
	} else {
		metrics.AboutCandidatesTotal.WithLabelValues("rejected").Inc()
	}
	return outcome{index: index, doc: doc, validated: validated}
}

// validate checks that text holds enough about keywords, both absolutely and per word
func (l *Locator) validate(text string) bool {
	hits, words := keywordHits(text)
	if words == 0 || hits < l.config.MinKeywordHits {
		return false
	}
	return float64(hits)/float64(words) >= l.config.MinKeywordDensity
}

func keywordHits(text string) (hits, words int) {
	lower := strings.ToLower(text)
	words = len(strings.Fields(lower))
	for _, kw := range validationKeywords {
		hits += strings.Count(lower, kw)
	}
	return hits, words
}

func analysisFor(c Candidate, doc *page.Document, validated bool, err error) models.AboutPageAnalysis {
	a := models.AboutPageAnalysis{
		URL:        c.URL,
		Score:      c.Score,
		Confidence: c.Label(),
		Validated:  validated,
	}
	if doc != nil {
		a.Title = doc.Title
		a.ContentLength = len(doc.Text)
	}
	if err != nil {
		a.Error = errorKind(err)
	}
	return a
}

func errorKind(err error) string {
	var pe *page.ParseError
	switch {
	case errors.As(err, &pe):
		return string(pe.Kind)
	case fetch.KindOf(err) != "":
		return string(fetch.KindOf(err))
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return string(fetch.KindTimeout)
	default:
		return err.Error()
	}
}

// sortAnalysis orders analysis entries by score, best first
func sortAnalysis(entries []models.AboutPageAnalysis) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
}
