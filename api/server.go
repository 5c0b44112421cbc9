package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	scraper "github.com/docutag/aboutus-scraper"
	"github.com/docutag/aboutus-scraper/metrics"
	"github.com/docutag/aboutus-scraper/models"
)

// Service is the scraping surface the API exposes
type Service interface {
	ScrapeText(ctx context.Context, req scraper.TextRequest) (*models.TextResponse, error)
	ScrapeMedia(ctx context.Context, req scraper.MediaRequest) (*models.MediaResponse, error)
	Enhance(ctx context.Context, req scraper.EnhanceRequest) (*models.EnhanceResponse, error)
	Intelligent(ctx context.Context, req scraper.CompanyRequest) (*models.CompanyResponse, error)
	Fast(ctx context.Context, req scraper.CompanyRequest) (*models.CompanyResponse, error)
}

// Server represents the API server
type Server struct {
	service     Service
	addr        string
	server      *http.Server
	mux         *http.ServeMux
	corsEnabled bool
	serviceName string
	version     string
	timeout     time.Duration
}

// Config contains server configuration
type Config struct {
	Addr           string
	CORSEnabled    bool
	ServiceName    string
	Version        string
	RequestTimeout time.Duration // Upper bound for one scrape flow
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		CORSEnabled:    true,
		ServiceName:    "aboutus-scraper",
		Version:        "dev",
		RequestTimeout: 5 * time.Minute,
	}
}

// NewServer creates a new API server
func NewServer(config Config, service Service) *Server {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}

	s := &Server{
		service:     service,
		addr:        config.Addr,
		mux:         http.NewServeMux(),
		corsEnabled: config.CORSEnabled,
		serviceName: config.ServiceName,
		version:     config.Version,
		timeout:     config.RequestTimeout,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: config.RequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/scrape/text", s.handleText)
	s.mux.HandleFunc("/scrape/media", s.handleMedia)
	s.mux.HandleFunc("/scrape/enhance", s.handleEnhance)
	s.mux.HandleFunc("/scrape/intelligent", s.handleIntelligent)
	s.mux.HandleFunc("/scrape/fast", s.handleFast)
}

// Handler returns the routed handler wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.middleware(s.mux), s.serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Start starts the API server
func (s *Server) Start() error {
	slog.Info("starting API server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// middleware applies common middleware to all routes
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if r.URL.Path != "/health" {
			slog.Info("request started", "method", r.Method, "path", r.URL.Path, "request_id", requestID)
		}

		defer func() {
			if p := recover(); p != nil {
				slog.Error("handler panic",
					"path", r.URL.Path,
					"request_id", requestID,
					"panic", p,
					"stack", string(debug.Stack()),
				)
				respondError(rec, http.StatusInternalServerError, "internal error")
			}

			status := strconv.Itoa(rec.status)
			duration := time.Since(start)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, routeLabel(r.URL.Path), status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, routeLabel(r.URL.Path), status).Observe(duration.Seconds())

			if r.URL.Path != "/health" {
				slog.Info("request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"duration_ms", duration.Milliseconds(),
					"request_id", requestID,
				)
			}
		}()

		next.ServeHTTP(rec, r)
	})
}

// routeLabel keeps the metric path label bounded
func routeLabel(path string) string {
	switch path {
	case "/health", "/metrics", "/scrape/text", "/scrape/media", "/scrape/enhance", "/scrape/intelligent", "/scrape/fast":
		return path
	}
	return "other"
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": s.serviceName,
		"version": s.version,
		"time":    time.Now().UTC(),
	})
}

// query wraps the URL query with lenient typed accessors. Malformed numbers
// and booleans fall back to the default.
type query struct {
	values map[string][]string
}

func (q query) str(key string) string {
	if v := q.values[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (q query) integer(key string, def int) int {
	n, err := strconv.Atoi(q.str(key))
	if err != nil {
		return def
	}
	return n
}

func (q query) flag(key string) bool {
	b, err := strconv.ParseBool(q.str(key))
	return err == nil && b
}

// prepare checks the method and the url parameter shared by every scrape endpoint
func (s *Server) prepare(w http.ResponseWriter, r *http.Request) (query, bool) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return query{}, false
	}
	q := query{values: r.URL.Query()}
	if q.str("url") == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return query{}, false
	}
	return q, true
}

// respondResult writes a flow result, mapping invalid input to 400
func respondResult(w http.ResponseWriter, result interface{}, err error) {
	if err != nil {
		if errors.Is(err, scraper.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("scrape failed", "error", err)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("scraping failed: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleText extracts the text view of one page
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	q, ok := s.prepare(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp, err := s.service.ScrapeText(ctx, scraper.TextRequest{
		URL:          q.str("url"),
		MaxSections:  q.integer("max_sections", 0),
		MaxKeyValues: q.integer("max_key_values", 0),
		UseAI:        q.flag("use_ai_enhancement"),
	})
	respondResult(w, resp, err)
}

// handleMedia lists the media of one page
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	q, ok := s.prepare(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp, err := s.service.ScrapeMedia(ctx, scraper.MediaRequest{
		URL:    q.str("url"),
		Cursor: q.str("cursor"),
		Limit:  q.integer("limit", 0),
		Kind:   models.MediaKind(q.str("media_type")),
	})
	respondResult(w, resp, err)
}

// handleEnhance forces the AI enhancer on supplied or fetched text
func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	q, ok := s.prepare(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp, err := s.service.Enhance(ctx, scraper.EnhanceRequest{
		URL:      q.str("url"),
		TextData: q.str("text_data"),
	})
	respondResult(w, resp, err)
}

// handleIntelligent runs the escalating company flow
func (s *Server) handleIntelligent(w http.ResponseWriter, r *http.Request) {
	q, ok := s.prepare(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp, err := s.service.Intelligent(ctx, scraper.CompanyRequest{
		URL:           q.str("url"),
		IncludeMedia:  q.flag("include_media"),
		MaxAboutPages: q.integer("max_about_pages", 0),
		MaxSections:   q.integer("max_sections", 0),
		ForceAI:       q.flag("force_ai"),
	})
	respondResult(w, resp, err)
}

// handleFast runs the programmatic company flow
func (s *Server) handleFast(w http.ResponseWriter, r *http.Request) {
	q, ok := s.prepare(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp, err := s.service.Fast(ctx, scraper.CompanyRequest{
		URL:          q.str("url"),
		IncludeMedia: q.flag("include_media"),
	})
	respondResult(w, resp, err)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
