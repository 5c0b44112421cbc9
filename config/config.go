// Package config assembles the service configuration from defaults, an
// optional YAML file and environment variables, in that order.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/docutag/aboutus-scraper/cache"
	"github.com/docutag/aboutus-scraper/confidence"
	"github.com/docutag/aboutus-scraper/fetch"
	"github.com/docutag/aboutus-scraper/locator"
	"github.com/docutag/aboutus-scraper/ollama"
	"github.com/docutag/aboutus-scraper/tracing"
)

// ServiceName is reported by /health and used as the tracing service name
const ServiceName = "aboutus-scraper"

// Config holds the application configuration
type Config struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	CORSEnabled bool   `yaml:"cors_enabled"`

	Fetch      FetchConfig      `yaml:"fetch"`
	Locator    LocatorConfig    `yaml:"locator"`
	Confidence ConfidenceConfig `yaml:"confidence"`
	AI         AIConfig         `yaml:"ai"`
	Cache      CacheConfig      `yaml:"cache"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxRedirects  int           `yaml:"max_redirects"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	UserAgent     string        `yaml:"user_agent"`
	RespectRobots bool          `yaml:"respect_robots"`
}

type LocatorConfig struct {
	MaxCandidates     int     `yaml:"max_candidates"`
	Concurrency       int     `yaml:"concurrency"`
	MinKeywordHits    int     `yaml:"min_keyword_hits"`
	MinKeywordDensity float64 `yaml:"min_keyword_density"`
	IncludeCareers    bool    `yaml:"include_careers"`
}

type ConfidenceConfig struct {
	HighFields    int `yaml:"high_fields"`
	MediumFields  int `yaml:"medium_fields"`
	MinKeyFields  int `yaml:"min_key_fields"`
	MinTextLength int `yaml:"min_text_length"`
}

// AIConfig configures the LLM enhancer. The API key is never read from a
// package-level variable; it travels in this struct only.
type AIConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	Temperature   float64       `yaml:"temperature"`
	MaxTextLen    int           `yaml:"max_text_len"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	FilePath      string        `yaml:"file_path"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	PostgresDSN   string        `yaml:"postgres_dsn"`
	S3            S3Config      `yaml:"s3"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	f := fetch.DefaultConfig()
	l := locator.DefaultConfig()
	p := confidence.DefaultPolicy()
	o := ollama.DefaultConfig()
	c := cache.DefaultConfig()

	return Config{
		Port:        "8080",
		LogLevel:    "info",
		CORSEnabled: true,
		Fetch: FetchConfig{
			Timeout:       f.Timeout,
			MaxRedirects:  f.MaxRedirects,
			MaxBodyBytes:  f.MaxBodyBytes,
			UserAgent:     f.UserAgent,
			RespectRobots: true,
		},
		Locator: LocatorConfig{
			MaxCandidates:     l.MaxCandidates,
			Concurrency:       l.Concurrency,
			MinKeywordHits:    l.MinKeywordHits,
			MinKeywordDensity: l.MinKeywordDensity,
			IncludeCareers:    l.IncludeCareers,
		},
		Confidence: ConfidenceConfig{
			HighFields:    p.HighFields,
			MediumFields:  p.MediumFields,
			MinKeyFields:  p.MinKeyFields,
			MinTextLength: p.MinTextLength,
		},
		AI: AIConfig{
			Enabled:       true,
			BaseURL:       o.BaseURL,
			Model:         o.Model,
			Timeout:       o.Timeout,
			Temperature:   o.Temperature,
			MaxTextLen:    o.MaxTextLen,
			MaxConcurrent: 3,
		},
		Cache: CacheConfig{
			Backend:    c.Backend,
			TTL:        c.TTL,
			MaxEntries: c.MaxEntries,
			FilePath:   c.FilePath,
			RedisAddr:  c.RedisAddr,
			S3:         S3Config{Prefix: "cache/"},
		},
		Tracing: TracingConfig{
			Insecure:    true,
			SampleRatio: 1,
		},
	}
}

// Load builds the configuration. path names an optional YAML file; getenv
// looks up environment variables (os.Getenv when nil).
func Load(path string, getenv func(string) string) (Config, error) {
	config := Default()
	if getenv == nil {
		getenv = os.Getenv
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	env := envReader{getenv: getenv}
	env.applyTo(&config)
	return config, config.Validate()
}

// Validate rejects settings the service cannot run with
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	switch strings.ToLower(c.Cache.Backend) {
	case cache.BackendNone, cache.BackendMemory, cache.BackendFile, cache.BackendRedis, cache.BackendS3, cache.BackendPostgres:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Confidence.HighFields < c.Confidence.MediumFields {
		return fmt.Errorf("confidence.high_fields (%d) must not be below confidence.medium_fields (%d)",
			c.Confidence.HighFields, c.Confidence.MediumFields)
	}
	if c.AI.MaxConcurrent < 1 {
		return fmt.Errorf("ai.max_concurrent must be at least 1")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (c Config) FetchConfig() fetch.Config {
	return fetch.Config{
		Timeout:      c.Fetch.Timeout,
		MaxRedirects: c.Fetch.MaxRedirects,
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
		UserAgent:    c.Fetch.UserAgent,
	}
}

func (c Config) LocatorConfig() locator.Config {
	return locator.Config{
		MaxCandidates:     c.Locator.MaxCandidates,
		Concurrency:       c.Locator.Concurrency,
		MinKeywordHits:    c.Locator.MinKeywordHits,
		MinKeywordDensity: c.Locator.MinKeywordDensity,
		IncludeCareers:    c.Locator.IncludeCareers,
	}
}

func (c Config) Policy() confidence.Policy {
	return confidence.Policy{
		HighFields:    c.Confidence.HighFields,
		MediumFields:  c.Confidence.MediumFields,
		MinKeyFields:  c.Confidence.MinKeyFields,
		MinTextLength: c.Confidence.MinTextLength,
	}
}

func (c Config) OllamaConfig() ollama.Config {
	return ollama.Config{
		BaseURL:     c.AI.BaseURL,
		Model:       c.AI.Model,
		APIKey:      c.AI.APIKey,
		Timeout:     c.AI.Timeout,
		Temperature: c.AI.Temperature,
		MaxTextLen:  c.AI.MaxTextLen,
	}
}

func (c Config) CacheConfig() cache.Config {
	return cache.Config{
		Backend:       c.Cache.Backend,
		TTL:           c.Cache.TTL,
		MaxEntries:    c.Cache.MaxEntries,
		FilePath:      c.Cache.FilePath,
		RedisAddr:     c.Cache.RedisAddr,
		RedisPassword: c.Cache.RedisPassword,
		RedisDB:       c.Cache.RedisDB,
		PostgresDSN:   c.Cache.PostgresDSN,
		S3: cache.S3Config{
			Endpoint:        c.Cache.S3.Endpoint,
			Region:          c.Cache.S3.Region,
			Bucket:          c.Cache.S3.Bucket,
			Prefix:          c.Cache.S3.Prefix,
			AccessKeyID:     c.Cache.S3.AccessKeyID,
			SecretAccessKey: c.Cache.S3.SecretAccessKey,
			UsePathStyle:    c.Cache.S3.UsePathStyle,
		},
	}
}

func (c Config) TracingConfig(version string) tracing.Config {
	return tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: version,
		Endpoint:       c.Tracing.Endpoint,
		Insecure:       c.Tracing.Insecure,
		SampleRatio:    c.Tracing.SampleRatio,
	}
}

// envReader applies environment overrides. Malformed values are logged and
// the current value is kept.
type envReader struct {
	getenv func(string) string
}

func (e envReader) applyTo(c *Config) {
	e.str("PORT", &c.Port)
	e.str("LOG_LEVEL", &c.LogLevel)
	if e.getenv("DISABLE_CORS") != "" {
		disabled := false
		e.boolean("DISABLE_CORS", &disabled)
		c.CORSEnabled = !disabled
	}

	e.duration("FETCH_TIMEOUT", &c.Fetch.Timeout)
	e.integer("FETCH_MAX_REDIRECTS", &c.Fetch.MaxRedirects)
	e.int64("FETCH_MAX_BODY_BYTES", &c.Fetch.MaxBodyBytes)
	e.str("FETCH_USER_AGENT", &c.Fetch.UserAgent)
	e.boolean("RESPECT_ROBOTS", &c.Fetch.RespectRobots)

	e.integer("MAX_ABOUT_PAGES", &c.Locator.MaxCandidates)
	e.integer("LOCATOR_CONCURRENCY", &c.Locator.Concurrency)
	e.boolean("INCLUDE_CAREERS", &c.Locator.IncludeCareers)

	e.integer("CONFIDENCE_HIGH_FIELDS", &c.Confidence.HighFields)
	e.integer("CONFIDENCE_MEDIUM_FIELDS", &c.Confidence.MediumFields)
	e.integer("AI_MIN_KEY_FIELDS", &c.Confidence.MinKeyFields)
	e.integer("AI_MIN_TEXT_LENGTH", &c.Confidence.MinTextLength)

	e.boolean("AI_ENABLED", &c.AI.Enabled)
	e.str("OLLAMA_URL", &c.AI.BaseURL)
	e.str("OLLAMA_MODEL", &c.AI.Model)
	e.str("OLLAMA_API_KEY", &c.AI.APIKey)
	e.duration("OLLAMA_TIMEOUT", &c.AI.Timeout)
	e.integer("AI_MAX_CONCURRENT", &c.AI.MaxConcurrent)

	e.str("CACHE_BACKEND", &c.Cache.Backend)
	e.duration("CACHE_TTL", &c.Cache.TTL)
	e.integer("CACHE_MAX_ENTRIES", &c.Cache.MaxEntries)
	e.str("CACHE_PATH", &c.Cache.FilePath)
	e.str("REDIS_ADDR", &c.Cache.RedisAddr)
	e.str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	e.integer("REDIS_DB", &c.Cache.RedisDB)
	e.str("CACHE_POSTGRES_DSN", &c.Cache.PostgresDSN)
	e.str("S3_ENDPOINT", &c.Cache.S3.Endpoint)
	e.str("S3_REGION", &c.Cache.S3.Region)
	e.str("S3_BUCKET", &c.Cache.S3.Bucket)
	e.str("S3_PREFIX", &c.Cache.S3.Prefix)
	e.str("S3_ACCESS_KEY_ID", &c.Cache.S3.AccessKeyID)
	e.str("S3_SECRET_ACCESS_KEY", &c.Cache.S3.SecretAccessKey)
	e.boolean("S3_USE_PATH_STYLE", &c.Cache.S3.UsePathStyle)

	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	if c.Tracing.Endpoint != "" && e.getenv("TRACING_ENABLED") == "" {
		c.Tracing.Enabled = true
	}
	e.boolean("TRACING_ENABLED", &c.Tracing.Enabled)
	e.float("TRACING_SAMPLE_RATIO", &c.Tracing.SampleRatio)
}

func (e envReader) str(key string, dst *string) {
	if v := e.getenv(key); v != "" {
		*dst = v
	}
}

func (e envReader) integer(key string, dst *int) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		invalid(key, v, *dst, err)
		return
	}
	*dst = n
}

func (e envReader) int64(key string, dst *int64) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		invalid(key, v, *dst, err)
		return
	}
	*dst = n
}

func (e envReader) float(key string, dst *float64) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		invalid(key, v, *dst, err)
		return
	}
	*dst = f
}

func (e envReader) boolean(key string, dst *bool) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		invalid(key, v, *dst, err)
		return
	}
	*dst = b
}

// duration accepts Go durations ("45s") or a bare number of seconds
func (e envReader) duration(key string, dst *time.Duration) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		invalid(key, v, *dst, err)
		return
	}
	*dst = d
}

func invalid(key, provided string, kept interface{}, err error) {
	slog.Warn("invalid environment value, using default",
		"key", key,
		"provided", provided,
		"default", kept,
		"error", err,
	)
}
