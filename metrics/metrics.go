// Package metrics holds the Prometheus collectors exported by the scraper service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aboutus_scraper"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// FetchesTotal counts outbound page fetches by outcome (ok or a fetch error kind)
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Total number of outbound page fetches.",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of outbound page fetches.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
	)

	// AboutCandidatesTotal counts About-page candidates fetched by the locator
	AboutCandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "about_candidates_total",
			Help:      "About-page candidates fetched, by validation result.",
		},
		[]string{"result"},
	)

	// AIEnhancementsTotal counts AI enhancer calls by outcome
	AIEnhancementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_enhancements_total",
			Help:      "AI enhancer calls by outcome.",
		},
		[]string{"outcome"},
	)

	AIDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_enhancement_duration_seconds",
			Help:      "Duration of AI enhancer calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	// ScrapesTotal counts completed scrape flows by endpoint and approach
	ScrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "Completed scrape flows.",
		},
		[]string{"flow", "approach", "success"},
	)
)
