package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xlamaexchange/swapdata/internal/platform/observability"
)

// Target is one key the prefetcher may warm: where to store it, under
// which tier, and how to load it.
type Target struct {
	Key   string
	Tier  Tier
	Fetch FetchFunc
}

// PrefetcherConfig configures the warming schedule. Tier one is warmed
// Tier1Delay after Start (deferred so it never competes with initial
// rendering); tier two follows Tier2Delay after tier one settles.
type PrefetcherConfig struct {
	Tier1Delay  time.Duration
	Tier2Delay  time.Duration
	TierOne     []Target
	TierTwo     []Target
	Concurrency int
	Logger      *observability.Logger
}

// Prefetcher warms the freshness store in two priority tiers. All
// warming is best-effort: keys already resident are skipped and fetch
// errors are logged, never surfaced.
type Prefetcher struct {
	engine      *Engine
	tier1Delay  time.Duration
	tier2Delay  time.Duration
	tierOne     []Target
	tierTwo     []Target
	concurrency int
	logger      *observability.Logger

	complete atomic.Bool
	done     chan struct{}
}

// NewPrefetcher creates a prefetcher over the given engine.
func NewPrefetcher(engine *Engine, cfg PrefetcherConfig) *Prefetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Prefetcher{
		engine:      engine,
		tier1Delay:  cfg.Tier1Delay,
		tier2Delay:  cfg.Tier2Delay,
		tierOne:     cfg.TierOne,
		tierTwo:     cfg.TierTwo,
		concurrency: cfg.Concurrency,
		logger:      logger.Named("prefetch"),
		done:        make(chan struct{}),
	}
}

// Start launches the warming schedule and returns immediately.
func (p *Prefetcher) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *Prefetcher) run(ctx context.Context) {
	defer close(p.done)

	if !sleepCtx(ctx, p.tier1Delay) {
		return
	}
	p.warmTier(ctx, "tier1", p.tierOne)

	if !sleepCtx(ctx, p.tier2Delay) {
		return
	}
	p.warmTier(ctx, "tier2", p.tierTwo)

	p.complete.Store(true)
}

// warmTier fetches every non-resident target in the tier, bounded by
// the configured concurrency.
func (p *Prefetcher) warmTier(ctx context.Context, name string, targets []Target) {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	var skippedCount, failedCount atomic.Int64
	for _, target := range targets {
		target := target
		if _, _, ok := p.engine.Store().Get(target.Key); ok {
			skippedCount.Add(1)
			continue
		}

		g.Go(func() error {
			if _, err := p.engine.FetchAndCache(gctx, target.Key, target.Tier, target.Fetch); err != nil {
				failedCount.Add(1)
				p.logger.LogDebug(gctx, "prefetch failed", "key", target.Key, "error", err)
			}
			// Warming never aborts the group.
			return nil
		})
	}

	_ = g.Wait()

	p.logger.LogInfo(ctx, "warming pass complete",
		"tier", name,
		"targets", len(targets),
		"skipped", skippedCount.Load(),
		"failed", failedCount.Load(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Prefetch warms a single target on demand (e.g. on hover), skipping it
// when already resident. Errors are logged, never returned.
func (p *Prefetcher) Prefetch(ctx context.Context, target Target) {
	if _, _, ok := p.engine.Store().Get(target.Key); ok {
		return
	}

	if _, err := p.engine.FetchAndCache(ctx, target.Key, target.Tier, target.Fetch); err != nil {
		p.logger.LogDebug(ctx, "manual prefetch failed", "key", target.Key, "error", err)
	}
}

// IsComplete reports whether both scheduled tiers have been warmed.
func (p *Prefetcher) IsComplete() bool {
	return p.complete.Load()
}

// Done returns a channel closed when the warming schedule has finished
// or been cancelled.
func (p *Prefetcher) Done() <-chan struct{} {
	return p.done
}

// sleepCtx waits for d, reporting false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
