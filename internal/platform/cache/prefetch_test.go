package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPrefetcher_WarmsBothTiersInOrder(t *testing.T) {
	e, _ := newTestEngine(t, 10)

	var tier1Fetches, tier2Fetches atomic.Int64
	countingTarget := func(key string, counter *atomic.Int64) Target {
		return Target{
			Key:  key,
			Tier: TierTokenList,
			Fetch: func(ctx context.Context) (any, error) {
				counter.Add(1)
				return "warmed", nil
			},
		}
	}

	p := NewPrefetcher(e, PrefetcherConfig{
		Tier1Delay: time.Millisecond,
		Tier2Delay: time.Millisecond,
		TierOne:    []Target{countingTarget(TokenListKey("196"), &tier1Fetches)},
		TierTwo: []Target{
			countingTarget(TokenListKey("1"), &tier2Fetches),
			countingTarget(TokenListKey("56"), &tier2Fetches),
		},
	})

	if p.IsComplete() {
		t.Fatal("prefetcher should not be complete before Start")
	}

	p.Start(context.Background())

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("prefetch schedule never finished")
	}

	if !p.IsComplete() {
		t.Error("IsComplete should be true after both tiers")
	}
	if tier1Fetches.Load() != 1 {
		t.Errorf("expected 1 tier-1 fetch, got %d", tier1Fetches.Load())
	}
	if tier2Fetches.Load() != 2 {
		t.Errorf("expected 2 tier-2 fetches, got %d", tier2Fetches.Load())
	}

	for _, chain := range []string{"196", "1", "56"} {
		if _, _, ok := e.Store().Get(TokenListKey(chain)); !ok {
			t.Errorf("token list for chain %s should be warmed", chain)
		}
	}
}

func TestPrefetcher_SkipsResidentKeys(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.store.Set(TokenListKey("196"), "already here", TierTokenList)

	var fetches atomic.Int64
	p := NewPrefetcher(e, PrefetcherConfig{
		TierOne: []Target{{
			Key:  TokenListKey("196"),
			Tier: TierTokenList,
			Fetch: func(ctx context.Context) (any, error) {
				fetches.Add(1)
				return "refetched", nil
			},
		}},
	})

	p.Start(context.Background())
	<-p.Done()

	if fetches.Load() != 0 {
		t.Errorf("resident key should be skipped, got %d fetches", fetches.Load())
	}
	if data, _, _ := e.store.Get(TokenListKey("196")); data != "already here" {
		t.Errorf("resident entry should be untouched, got %v", data)
	}
}

func TestPrefetcher_ErrorsAreBestEffort(t *testing.T) {
	e, _ := newTestEngine(t, 10)

	p := NewPrefetcher(e, PrefetcherConfig{
		TierOne: []Target{
			{
				Key:  "bad",
				Tier: TierDefault,
				Fetch: func(ctx context.Context) (any, error) {
					return nil, errors.New("feed down")
				},
			},
			{
				Key:  "good",
				Tier: TierDefault,
				Fetch: func(ctx context.Context) (any, error) {
					return "ok", nil
				},
			},
		},
	})

	p.Start(context.Background())
	<-p.Done()

	if !p.IsComplete() {
		t.Error("a failed target must not block completion")
	}
	if _, _, ok := e.store.Get("bad"); ok {
		t.Error("failed target should not be cached")
	}
	if _, _, ok := e.store.Get("good"); !ok {
		t.Error("good target should be cached despite sibling failure")
	}
}

func TestPrefetcher_CancelledBeforeTierOne(t *testing.T) {
	e, _ := newTestEngine(t, 10)

	var fetches atomic.Int64
	p := NewPrefetcher(e, PrefetcherConfig{
		Tier1Delay: time.Hour,
		TierOne: []Target{{
			Key:  "k",
			Tier: TierDefault,
			Fetch: func(ctx context.Context) (any, error) {
				fetches.Add(1)
				return "v", nil
			},
		}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("cancelled prefetcher should stop promptly")
	}

	if p.IsComplete() {
		t.Error("cancelled schedule should not report complete")
	}
	if fetches.Load() != 0 {
		t.Errorf("no fetches expected after cancellation, got %d", fetches.Load())
	}
}

func TestPrefetcher_ManualPrefetch(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	p := NewPrefetcher(e, PrefetcherConfig{})

	var fetches atomic.Int64
	target := Target{
		Key:  QuoteKey("1", "0xaaa", "0xbbb", "1000"),
		Tier: TierQuote,
		Fetch: func(ctx context.Context) (any, error) {
			fetches.Add(1)
			return "quote", nil
		},
	}

	p.Prefetch(context.Background(), target)
	if fetches.Load() != 1 {
		t.Fatalf("expected 1 fetch, got %d", fetches.Load())
	}

	// Second hover on a warmed key is a no-op.
	p.Prefetch(context.Background(), target)
	if fetches.Load() != 1 {
		t.Errorf("resident key should be skipped, got %d fetches", fetches.Load())
	}
}
