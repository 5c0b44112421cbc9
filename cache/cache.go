// Package cache stores finished scrape results for a bounded time. Backends
// hold opaque bytes; the Loader handles encoding and collapses concurrent
// loads of the same key.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMiss is returned by Store.Get for absent or expired keys
var ErrMiss = errors.New("cache miss")

// Store is a TTL key-value store
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Backends
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

// Config selects and configures a backend
type Config struct {
	Backend       string
	TTL           time.Duration
	MaxEntries    int    // memory backend
	FilePath      string // file backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	S3            S3Config
	PostgresDSN   string
}

// DefaultConfig returns an in-memory cache with a 15 minute TTL
func DefaultConfig() Config {
	return Config{
		Backend:    BackendMemory,
		TTL:        15 * time.Minute,
		MaxEntries: 1000,
		FilePath:   "./cache",
		RedisAddr:  "localhost:6379",
	}
}

// New opens the configured backend. BackendNone returns a store that never hits.
func New(ctx context.Context, config Config) (Store, error) {
	switch strings.ToLower(config.Backend) {
	case "", BackendNone:
		return noopStore{}, nil
	case BackendMemory:
		return NewMemoryStore(config.MaxEntries), nil
	case BackendFile:
		return NewFileStore(FileConfig{BasePath: config.FilePath})
	case BackendRedis:
		return NewRedisStore(ctx, RedisConfig{Addr: config.RedisAddr, Password: config.RedisPassword, DB: config.RedisDB})
	case BackendS3:
		return NewS3Store(ctx, config.S3)
	case BackendPostgres:
		return NewPostgresStore(ctx, PostgresConfig{DSN: config.PostgresDSN})
	}
	return nil, fmt.Errorf("unknown cache backend %q", config.Backend)
}

// Key builds a store key from a flow name, a normalised URL and the request
// parameters that change the result
func Key(flow, normalizedURL string, params ...string) string {
	h := sha256.New()
	h.Write([]byte(normalizedURL))
	for _, p := range params {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return flow + ":" + hex.EncodeToString(h.Sum(nil))
}

type noopStore struct{}

func (noopStore) Get(context.Context, string) ([]byte, error)              { return nil, ErrMiss }
func (noopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopStore) Close() error                                             { return nil }
