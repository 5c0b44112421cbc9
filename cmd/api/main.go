package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	scraper "github.com/docutag/aboutus-scraper"
	"github.com/docutag/aboutus-scraper/api"
	"github.com/docutag/aboutus-scraper/cache"
	"github.com/docutag/aboutus-scraper/config"
	"github.com/docutag/aboutus-scraper/ollama"
	"github.com/docutag/aboutus-scraper/tracing"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Command-line flags (override the config file and environment variables)
	configPath := flag.String("config", getEnv("CONFIG_FILE", ""), "Path to a YAML config file")
	port := flag.String("port", "", "Server port")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	ollamaURL := flag.String("ollama-url", "", "Ollama base URL")
	ollamaModel := flag.String("ollama-model", "", "Ollama model to use for enhancement")
	cacheBackend := flag.String("cache", "", "Cache backend (none, memory, file, redis, s3, postgres)")
	disableAI := flag.Bool("disable-ai", false, "Disable AI enhancement")
	disableCORS := flag.Bool("disable-cors", false, "Disable CORS")
	flag.Parse()

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		slog.Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}
	applyFlags(&cfg, *port, *logLevel, *ollamaURL, *ollamaModel, *cacheBackend, *disableAI, *disableCORS)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("aboutus scraper initializing", "version", version)

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(ctx, cfg.TracingConfig(version))
		if err != nil {
			logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Error("error shutting down tracer", "error", err)
				}
			}()
			logger.Info("tracing initialized", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	cacheConfig := cfg.CacheConfig()
	store, err := cache.New(ctx, cacheConfig)
	if err != nil {
		logger.Error("failed to open cache", "backend", cacheConfig.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	loader := cache.NewLoader(store, cacheConfig.TTL, logger)
	loader.SetLoadTimeout(api.DefaultConfig().RequestTimeout)

	stopPurge := make(chan struct{})
	if pg, ok := store.(*cache.PostgresStore); ok {
		go purgeExpired(pg, cacheConfig.TTL, stopPurge)
	}

	var enhancer scraper.Enhancer
	if cfg.AI.Enabled {
		client := ollama.NewClient(cfg.OllamaConfig())
		enhancer = client
		logger.Info("ai enhancement enabled", "base_url", cfg.AI.BaseURL, "model", client.Model())
	}

	scraperConfig := scraper.DefaultConfig()
	scraperConfig.Fetch = cfg.FetchConfig()
	scraperConfig.Locator = cfg.LocatorConfig()
	scraperConfig.Policy = cfg.Policy()
	scraperConfig.RespectRobots = cfg.Fetch.RespectRobots
	scraperConfig.MaxConcurrentAI = cfg.AI.MaxConcurrent

	serverConfig := api.DefaultConfig()
	serverConfig.Addr = ":" + cfg.Port
	serverConfig.CORSEnabled = cfg.CORSEnabled
	serverConfig.ServiceName = config.ServiceName
	serverConfig.Version = version

	server := api.NewServer(serverConfig, scraper.New(scraperConfig, enhancer, loader))

	// Start server in a goroutine
	go func() {
		logger.Info("aboutus scraper starting",
			"port", cfg.Port,
			"cache_backend", cacheConfig.Backend,
			"cache_ttl", cacheConfig.TTL,
			"ai_enabled", cfg.AI.Enabled,
			"respect_robots", cfg.Fetch.RespectRobots,
			"tracing_enabled", cfg.Tracing.Enabled,
		)

		if err := server.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("shutting down gracefully")
	close(stopPurge)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// applyFlags overrides configuration with explicitly set flags
func applyFlags(cfg *config.Config, port, logLevel, ollamaURL, ollamaModel, cacheBackend string, disableAI, disableCORS bool) {
	if port != "" {
		cfg.Port = port
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if ollamaURL != "" {
		cfg.AI.BaseURL = ollamaURL
	}
	if ollamaModel != "" {
		cfg.AI.Model = ollamaModel
	}
	if cacheBackend != "" {
		cfg.Cache.Backend = cacheBackend
	}
	if disableAI {
		cfg.AI.Enabled = false
	}
	if disableCORS {
		cfg.CORSEnabled = false
	}
}

// purgeExpired deletes expired Postgres cache rows once per TTL
func purgeExpired(store *cache.PostgresStore, ttl time.Duration, stop <-chan struct{}) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(context.Background())
			if err != nil {
				slog.Warn("failed to purge expired cache entries", "error", err)
				continue
			}
			slog.Debug("purged expired cache entries", "rows", n)
		}
	}
}
