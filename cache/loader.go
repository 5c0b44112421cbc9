package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/docutag/aboutus-scraper/metrics"
)

// DefaultLoadTimeout bounds one shared load
const DefaultLoadTimeout = 5 * time.Minute

// Loader reads through a Store and collapses concurrent loads of one key into
// a single call
type Loader struct {
	store       Store
	ttl         time.Duration
	loadTimeout time.Duration
	group       singleflight.Group
	logger      *slog.Logger
}

// NewLoader wraps store. A nil store behaves like BackendNone.
func NewLoader(store Store, ttl time.Duration, logger *slog.Logger) *Loader {
	if store == nil {
		store = noopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, ttl: ttl, loadTimeout: DefaultLoadTimeout, logger: logger}
}

// SetLoadTimeout bounds shared loads; non-positive values keep the current bound
func (l *Loader) SetLoadTimeout(d time.Duration) {
	if d > 0 {
		l.loadTimeout = d
	}
}

// Store returns the wrapped backend
func (l *Loader) Store() Store {
	return l.store
}

// Load returns the cached value for key, or calls fn and caches its result
// when keep reports it worth keeping. The bool result reports a cache hit.
//
// Concurrent callers of one key share a single fn call. That call runs on a
// context that keeps ctx's values but not its cancellation, bounded by the
// load timeout, so one caller leaving early cannot fail the others. A caller
// whose ctx ends first gets ctx.Err() while the load carries on.
func Load[T interface{}](ctx context.Context, l *Loader, key string, fn func(context.Context) (T, error), keep func(T) bool) (T, bool, error) {
	var zero T
	if l == nil {
		v, err := fn(ctx)
		return v, false, err
	}

	if data, err := l.store.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return v, true, nil
		}
		l.logger.Warn("discarding undecodable cache entry", "key", key)
	} else if errors.Is(err, ErrMiss) {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	} else {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		l.logger.Warn("cache lookup failed", "key", key, "error", err)
	}

	ch := l.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.loadTimeout)
		defer cancel()

		v, err := fn(loadCtx)
		if err != nil {
			return v, err
		}
		if keep == nil || keep(v) {
			if data, mErr := json.Marshal(v); mErr == nil {
				if sErr := l.store.Set(loadCtx, key, data, l.ttl); sErr != nil {
					l.logger.Warn("cache store failed", "key", key, "error", sErr)
				}
			}
		}
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			l.logger.Debug("shared in-flight load", "key", key)
		}
		v, ok := res.Val.(T)
		if !ok {
			v = zero
		}
		return v, false, res.Err
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}
