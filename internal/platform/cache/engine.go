package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xlamaexchange/swapdata/internal/platform/observability"
	"github.com/xlamaexchange/swapdata/internal/platform/worker"
)

// FetchFunc loads a value from upstream. Fetchers must not touch the
// store themselves; writing the result back is the engine's job.
type FetchFunc func(ctx context.Context) (any, error)

// Engine ties the freshness store to a per-key request coalescer and a
// background revalidation pool, implementing stale-while-revalidate:
// fresh hits return immediately, stale hits return immediately and
// refresh in the background, misses block on a single shared fetch.
type Engine struct {
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics
	tasks   *worker.Pool

	group singleflight.Group

	mu           sync.Mutex
	inflight     map[string]int
	revalidating map[string]struct{}
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Capacity          int
	RevalidateWorkers int
	RevalidateQueue   int
	Logger            *observability.Logger
	Metrics           *observability.Metrics
}

// NewEngine creates an engine. ctx bounds the lifetime of the
// background revalidation workers.
func NewEngine(ctx context.Context, cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &observability.Metrics{}
	}
	if cfg.RevalidateWorkers <= 0 {
		cfg.RevalidateWorkers = 4
	}
	if cfg.RevalidateQueue <= 0 {
		cfg.RevalidateQueue = 64
	}

	e := &Engine{
		store:        NewStore(cfg.Capacity),
		logger:       logger.Named("cache"),
		metrics:      metrics,
		tasks:        worker.NewPool(ctx, cfg.RevalidateWorkers, cfg.RevalidateQueue),
		inflight:     make(map[string]int),
		revalidating: make(map[string]struct{}),
	}
	e.store.onEvict = func() {
		e.metrics.RecordEviction(context.Background())
	}
	return e
}

// Store exposes the underlying freshness store.
func (e *Engine) Store() *Store {
	return e.store
}

// FetchAndCache fetches the value for key, guaranteeing at most one
// in-flight fetch per key: concurrent callers share the same result.
// A successful result is stored under the given tier; the pending slot
// is cleared whether the fetch succeeds or fails.
func (e *Engine) FetchAndCache(ctx context.Context, key string, tier Tier, fetch FetchFunc) (any, error) {
	// Registered before group.Do so a concurrent Clear() can always
	// find and Forget this key's slot.
	e.track(key)
	defer e.untrack(key)

	data, err, shared := e.group.Do(key, func() (any, error) {
		start := time.Now()
		data, err := fetch(ctx)
		if e.metrics.FetchDuration != nil {
			e.metrics.FetchDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
		}
		if err != nil {
			return nil, err
		}

		e.store.Set(key, data, tier)
		e.metrics.RecordCacheSize(ctx, int64(e.store.Len()))
		return data, nil
	})

	if shared && e.metrics.CoalescedFetches != nil {
		e.metrics.CoalescedFetches.Add(ctx, 1)
	}

	return data, err
}

// GetOrFetch is the stale-while-revalidate read path.
//
// Fresh hit: cached data, no fetch. Stale hit: cached data now, plus a
// best-effort background revalidation whose error is logged and
// swallowed. Miss: blocks on FetchAndCache and propagates its error,
// since there is nothing else to serve.
//
// fromCache reports whether the returned data came from the store.
func (e *Engine) GetOrFetch(ctx context.Context, key string, tier Tier, fetch FetchFunc) (data any, fromCache bool, err error) {
	if data, stale, ok := e.store.Get(key); ok {
		e.metrics.RecordCacheHit(ctx, stale)
		if stale {
			e.revalidate(key, tier, fetch)
		}
		return data, true, nil
	}

	e.metrics.RecordCacheMiss(ctx)

	data, err = e.FetchAndCache(ctx, key, tier, fetch)
	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}

// revalidate schedules a background refresh for a stale key. The
// caller is never blocked: the work runs on the engine's task pool
// under the pool's context, and a saturated queue sheds the refresh
// (the stale entry stays serveable, a later read retries).
//
// At most one refresh is pending per key. Stale reads landing while a
// refresh is queued or running reuse it, and the task re-checks
// freshness before fetching in case an earlier refresh already ran.
func (e *Engine) revalidate(key string, tier Tier, fetch FetchFunc) {
	e.mu.Lock()
	if _, pending := e.revalidating[key]; pending {
		e.mu.Unlock()
		return
	}
	e.revalidating[key] = struct{}{}
	e.mu.Unlock()

	clearPending := func() {
		e.mu.Lock()
		delete(e.revalidating, key)
		e.mu.Unlock()
	}

	submitted := e.tasks.TrySubmit(worker.Task{
		Name: "revalidate:" + key,
		Run: func(ctx context.Context) {
			defer clearPending()

			if _, stale, ok := e.store.Get(key); ok && !stale {
				return
			}
			if _, err := e.FetchAndCache(ctx, key, tier, fetch); err != nil {
				if e.metrics.RevalidationFailures != nil {
					e.metrics.RevalidationFailures.Add(ctx, 1)
				}
				e.logger.LogDebug(ctx, "background revalidation failed", "key", key, "error", err)
			}
		},
	})

	if !submitted {
		clearPending()
		ctx := context.Background()
		if e.metrics.RevalidationsDropped != nil {
			e.metrics.RevalidationsDropped.Add(ctx, 1)
		}
		e.logger.LogDebug(ctx, "revalidation dropped, queue full", "key", key)
	}
}

// Invalidate removes a single key.
func (e *Engine) Invalidate(key string) {
	e.store.Invalidate(key)
}

// InvalidatePrefix removes every key under a namespace prefix.
func (e *Engine) InvalidatePrefix(prefix string) {
	e.store.InvalidatePrefix(prefix)
}

// Clear drops all entries and forgets every pending fetch slot. Used as
// a hard session reset (wallet disconnect, tests). In-flight fetches
// finish but later callers no longer join them.
func (e *Engine) Clear() {
	e.store.Clear()

	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.inflight {
		e.group.Forget(key)
	}
}

// Close stops the background revalidation workers.
func (e *Engine) Close() {
	e.tasks.Close()
}

func (e *Engine) track(key string) {
	e.mu.Lock()
	e.inflight[key]++
	e.mu.Unlock()
}

func (e *Engine) untrack(key string) {
	e.mu.Lock()
	if e.inflight[key]--; e.inflight[key] <= 0 {
		delete(e.inflight, key)
	}
	e.mu.Unlock()
}

// GetOrFetchAs is the typed variant of Engine.GetOrFetch, tying the
// payload type and freshness tier together at the call site.
func GetOrFetchAs[T any](ctx context.Context, e *Engine, key string, tier Tier, fetch func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T

	data, fromCache, err := e.GetOrFetch(ctx, key, tier, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, false, err
	}

	typed, ok := data.(T)
	if !ok {
		return zero, false, fmt.Errorf("cache: entry %q holds %T, not %T", key, data, zero)
	}
	return typed, fromCache, nil
}

// FetchAs is the typed variant of Engine.FetchAndCache.
func FetchAs[T any](ctx context.Context, e *Engine, key string, tier Tier, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	data, err := e.FetchAndCache(ctx, key, tier, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("cache: entry %q holds %T, not %T", key, data, zero)
	}
	return typed, nil
}
