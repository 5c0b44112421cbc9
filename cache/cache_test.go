package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	a := Key("text", "https://example.com/")
	b := Key("text", "https://example.com/")
	if a != b {
		t.Fatalf("Key not deterministic: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "text:") {
		t.Errorf("expected flow prefix, got %q", a)
	}
	if Key("media", "https://example.com/") == a {
		t.Error("different flows should give different keys")
	}
	if Key("media", "https://example.com/", "image") == Key("media", "https://example.com/", "video") {
		t.Error("different params should give different keys")
	}
	// Param boundaries are part of the hash
	if Key("x", "u", "ab", "c") == Key("x", "u", "a", "bc") {
		t.Error("param boundaries should change the key")
	}
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"none", Config{Backend: BackendNone}, false},
		{"empty backend", Config{}, false},
		{"memory", Config{Backend: BackendMemory, MaxEntries: 10}, false},
		{"file", Config{Backend: BackendFile, FilePath: t.TempDir()}, false},
		{"file without path", Config{Backend: BackendFile}, true},
		{"s3 without bucket", Config{Backend: BackendS3, S3: S3Config{Region: "us-east-1"}}, true},
		{"postgres without dsn", Config{Backend: BackendPostgres}, true},
		{"unknown", Config{Backend: "memcached"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(ctx, tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer store.Close()
		})
	}
}

func TestNoopStoreNeverHits(t *testing.T) {
	ctx := context.Background()
	store, _ := New(ctx, Config{Backend: BackendNone})
	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}

	value := []byte("hello")
	if err := store.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value[0] = 'j'

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("stored value changed with caller's slice: %q", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected expired entry to miss, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expired entry should be removed on read, len=%d", store.Len())
	}
}

func TestMemoryStoreZeroTTLIsNotStored(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	store.Set(ctx, "k", []byte("v"), 0)
	if store.Len() != 0 {
		t.Errorf("zero TTL should not store, len=%d", store.Len())
	}
}

func TestMemoryStoreEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Set(ctx, "short", []byte("1"), time.Minute)
	store.Set(ctx, "long", []byte("2"), time.Hour)
	store.Set(ctx, "new", []byte("3"), 30*time.Minute)

	if store.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", store.Len())
	}
	if _, err := store.Get(ctx, "short"); !errors.Is(err, ErrMiss) {
		t.Error("entry closest to expiry should have been evicted")
	}
	for _, k := range []string{"long", "new"} {
		if _, err := store.Get(ctx, k); err != nil {
			t.Errorf("expected %q to remain, got %v", k, err)
		}
	}
}

func TestMemoryStoreEvictsExpiredFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Set(ctx, "stale", []byte("1"), time.Minute)
	store.Set(ctx, "fresh", []byte("2"), 10*time.Minute)
	now = now.Add(5 * time.Minute)
	store.Set(ctx, "new", []byte("3"), time.Minute)

	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh entry should survive eviction, got %v", err)
	}
	if _, err := store.Get(ctx, "new"); err != nil {
		t.Errorf("new entry missing: %v", err)
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(FileConfig{BasePath: dir})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	key := Key("text", "https://example.com/")
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}

	if err := store.Set(ctx, key, []byte(`{"ok":true}`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("got %q", got)
	}

	p := store.path(key)
	if !strings.HasPrefix(p, dir) {
		t.Errorf("path %q outside base dir", p)
	}
	if strings.Contains(filepath.Base(p), ":") {
		t.Errorf("path should not contain ':', got %q", p)
	}
}

func TestFileStoreExpiredEntryIsRemoved(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(FileConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if err := store.Set(ctx, "text:abc123", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := store.Get(ctx, "text:abc123"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss for expired entry, got %v", err)
	}
	if _, err := os.Stat(store.path("text:abc123")); !os.IsNotExist(err) {
		t.Errorf("expired file should be deleted, stat err=%v", err)
	}
}

func TestFileStoreCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store, _ := NewFileStore(FileConfig{BasePath: t.TempDir()})
	p := store.path("text:ffee")
	os.MkdirAll(filepath.Dir(p), 0755)
	os.WriteFile(p, []byte("not json"), 0644)

	_, err := store.Get(ctx, "text:ffee")
	if err == nil || errors.Is(err, ErrMiss) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestNewS3StoreValidation(t *testing.T) {
	ctx := context.Background()
	valid := S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	}

	tests := []struct {
		name    string
		mutate  func(c *S3Config)
		wantErr bool
	}{
		{"valid", func(c *S3Config) {}, false},
		{"missing bucket", func(c *S3Config) { c.Bucket = "" }, true},
		{"missing region", func(c *S3Config) { c.Region = "" }, true},
		{"missing credentials", func(c *S3Config) { c.AccessKeyID = ""; c.SecretAccessKey = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := NewS3Store(ctx, cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewS3Store() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestS3ObjectKey(t *testing.T) {
	store, err := NewS3Store(context.Background(), S3Config{
		Region:          "us-east-1",
		Bucket:          "b",
		Prefix:          "aboutus",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
	})
	if err != nil {
		t.Fatalf("NewS3Store failed: %v", err)
	}
	if got := store.objectKey("media:abc"); got != "aboutus/media/abc.json" {
		t.Errorf("objectKey = %q", got)
	}
}

func TestEnvelope(t *testing.T) {
	data, err := sealEnvelope([]byte("payload"), time.Minute)
	if err != nil {
		t.Fatalf("sealEnvelope failed: %v", err)
	}
	got, err := openEnvelope(data)
	if err != nil || string(got) != "payload" {
		t.Errorf("openEnvelope = %q, %v", got, err)
	}

	expired, _ := sealEnvelope([]byte("payload"), -time.Minute)
	if _, err := openEnvelope(expired); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss for expired envelope, got %v", err)
	}
}

func TestPendingMigrations(t *testing.T) {
	if got := len(pendingMigrations(0)); got != len(postgresMigrations) {
		t.Errorf("expected all %d migrations pending, got %d", len(postgresMigrations), got)
	}
	last := sortedMigrations()[len(postgresMigrations)-1].Version
	if got := len(pendingMigrations(last)); got != 0 {
		t.Errorf("expected no pending migrations at version %d, got %d", last, got)
	}
}

// TestPostgresStore runs against a real database when ABOUTUS_TEST_POSTGRES_DSN is set
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("ABOUTUS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ABOUTUS_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStore(ctx, PostgresConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}
	defer store.Close()

	key := Key("test", "https://example.com/", time.Now().String())
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
	if err := store.Set(ctx, key, []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, key, []byte("v2"), time.Minute); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	got, err := store.Get(ctx, key)
	if err != nil || string(got) != "v2" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if _, err := store.PurgeExpired(ctx); err != nil {
		t.Errorf("PurgeExpired failed: %v", err)
	}
}

type result struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
}

func TestLoaderCachesKeptResults(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(NewMemoryStore(10), time.Minute, nil)

	var calls int32
	fn := func(context.Context) (result, error) {
		atomic.AddInt32(&calls, 1)
		return result{Name: "Acme", OK: true}, nil
	}
	keep := func(r result) bool { return r.OK }

	first, hit, err := Load(ctx, loader, "k", fn, keep)
	if err != nil || hit {
		t.Fatalf("first load: hit=%v err=%v", hit, err)
	}
	second, hit, err := Load(ctx, loader, "k", fn, keep)
	if err != nil || !hit {
		t.Fatalf("second load: hit=%v err=%v", hit, err)
	}
	if first != second {
		t.Errorf("cached value differs: %+v vs %+v", first, second)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestLoaderSkipsUnkeptResults(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(NewMemoryStore(10), time.Minute, nil)

	var calls int32
	fn := func(context.Context) (result, error) {
		atomic.AddInt32(&calls, 1)
		return result{OK: false}, nil
	}
	keep := func(r result) bool { return r.OK }

	Load(ctx, loader, "k", fn, keep)
	_, hit, _ := Load(ctx, loader, "k", fn, keep)
	if hit {
		t.Error("failed result should not be cached")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestLoaderDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	loader := NewLoader(store, time.Minute, nil)

	boom := errors.New("boom")
	_, _, err := Load(ctx, loader, "k", func(context.Context) (result, error) {
		return result{}, boom
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("error result should not be stored, len=%d", store.Len())
	}
}

func TestLoaderCollapsesConcurrentLoads(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(nil, time.Minute, nil)

	var calls int32
	release := make(chan struct{})
	fn := func(context.Context) (result, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return result{Name: "Acme", OK: true}, nil
	}

	const n = 8
	var started, done sync.WaitGroup
	started.Add(n)
	done.Add(n)
	results := make([]result, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			r, _, _ := Load(ctx, loader, "same", fn, nil)
			results[i] = r
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	if calls != 1 {
		t.Errorf("expected concurrent loads to share one call, got %d", calls)
	}
	for i, r := range results {
		if r.Name != "Acme" {
			t.Errorf("result %d = %+v", i, r)
		}
	}
}

func TestLoaderSharedLoadOutlivesFirstCaller(t *testing.T) {
	loader := NewLoader(nil, time.Minute, nil)

	fn := func(ctx context.Context) (result, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return result{Name: "Acme", OK: true}, nil
		case <-ctx.Done():
			return result{}, ctx.Err()
		}
	}

	short, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	var firstErr, secondErr error
	var second result
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, firstErr = Load(short, loader, "same", fn, nil)
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		second, _, secondErr = Load(context.Background(), loader, "same", fn, nil)
	}()
	wg.Wait()

	if !errors.Is(firstErr, context.DeadlineExceeded) {
		t.Errorf("first caller error = %v, want deadline exceeded", firstErr)
	}
	if secondErr != nil || second.Name != "Acme" {
		t.Errorf("second caller = %+v, %v; want the completed load", second, secondErr)
	}
}

func TestLoaderLoadTimeout(t *testing.T) {
	loader := NewLoader(nil, time.Minute, nil)
	loader.SetLoadTimeout(20 * time.Millisecond)

	_, _, err := Load(context.Background(), loader, "k", func(ctx context.Context) (result, error) {
		<-ctx.Done()
		return result{}, ctx.Err()
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestLoadWithNilLoader(t *testing.T) {
	v, hit, err := Load(context.Background(), nil, "k", func(context.Context) (int, error) {
		return 42, nil
	}, nil)
	if v != 42 || hit || err != nil {
		t.Errorf("Load(nil) = %v, %v, %v", v, hit, err)
	}
}
