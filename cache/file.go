package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileConfig contains file store configuration
type FileConfig struct {
	BasePath string // Base directory for cache files
}

// envelope is the stored form of an entry in the file and S3 backends
type envelope struct {
	ExpiresAt time.Time `json:"expires_at"`
	Value     []byte    `json:"value"`
}

func sealEnvelope(value []byte, ttl time.Duration) ([]byte, error) {
	return json.Marshal(envelope{ExpiresAt: time.Now().Add(ttl).UTC(), Value: value})
}

func openEnvelope(data []byte) ([]byte, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	if !time.Now().Before(e.ExpiresAt) {
		return nil, ErrMiss
	}
	return e.Value, nil
}

// FileStore keeps entries as JSON files under BasePath, sharded by key prefix
type FileStore struct {
	config FileConfig
}

// NewFileStore creates the base directory if needed
func NewFileStore(config FileConfig) (*FileStore, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("cache base path is required")
	}
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{config: config}, nil
}

// path maps a key to base/<shard>/<name>.json
func (s *FileStore) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(key)
	shard := "00"
	if i := strings.LastIndex(name, "_"); i >= 0 && len(name)-i > 2 {
		shard = name[i+1 : i+3]
	}
	return filepath.Join(s.config.BasePath, shard, name+".json")
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	p := s.path(key)
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	value, err := openEnvelope(data)
	if errors.Is(err, ErrMiss) {
		os.Remove(p)
	}
	return value, err
}

func (s *FileStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := sealEnvelope(value, ttl)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	// Readers never see a partial entry: write a temp file, then rename
	tmp, err := os.CreateTemp(filepath.Dir(p), ".entry-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
