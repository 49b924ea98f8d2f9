package pricing

import (
	"context"

	"github.com/xlamaexchange/swapdata/internal/platform/config"
)

// knownPriceSource surfaces a price the caller already obtained.
type knownPriceSource struct {
	name string
	pick func(Query) *float64
}

func (s knownPriceSource) Name() string {
	return s.name
}

func (s knownPriceSource) Resolve(_ context.Context, q Query) (float64, error) {
	p := s.pick(q)
	if p == nil || *p <= 0 {
		return 0, ErrNoPrice
	}
	return *p, nil
}

// stableRegistrySource answers $1 exactly for tokens whose contract
// address is in the stablecoin registry. The fiat-pegged fast path:
// skips external calls entirely.
type stableRegistrySource struct{}

func (stableRegistrySource) Name() string {
	return "stable-registry"
}

func (stableRegistrySource) Resolve(_ context.Context, q Query) (float64, error) {
	if !config.IsStablecoin(q.ChainID, q.Address) {
		return 0, ErrNoPrice
	}
	return 1.0, nil
}

// pairFeedSource queries the external per-pair price index, but only
// for chains the feed declares support for.
type pairFeedSource struct {
	feed PairPriceProvider
}

func (s pairFeedSource) Name() string {
	return "pair-feed"
}

func (s pairFeedSource) Resolve(ctx context.Context, q Query) (float64, error) {
	if s.feed == nil || q.Address == "" || !s.feed.SupportsChain(q.ChainID) {
		return 0, ErrNoPrice
	}
	return s.feed.TokenPrice(ctx, q.ChainID, q.Address)
}

// symbolFeedSource queries the external per-symbol aggregator, which
// covers major assets by ticker regardless of chain.
type symbolFeedSource struct {
	feed SymbolPriceProvider
}

func (s symbolFeedSource) Name() string {
	return "symbol-feed"
}

func (s symbolFeedSource) Resolve(ctx context.Context, q Query) (float64, error) {
	if s.feed == nil || q.Symbol == "" {
		return 0, ErrNoPrice
	}
	return s.feed.SymbolPrice(ctx, q.Symbol)
}

// wrappedAssetSource prices a recognized wrapped token through its
// underlying asset's ticker: a wrapper trades 1:1 with what it wraps.
type wrappedAssetSource struct {
	feed SymbolPriceProvider
}

func (s wrappedAssetSource) Name() string {
	return "wrapped-underlying"
}

func (s wrappedAssetSource) Resolve(ctx context.Context, q Query) (float64, error) {
	if s.feed == nil {
		return 0, ErrNoPrice
	}

	underlying, ok := config.WrappedUnderlying(q.ChainID, q.Address)
	if !ok {
		return 0, ErrNoPrice
	}
	return s.feed.SymbolPrice(ctx, underlying)
}

// stableSymbolSource is the heuristic of last resort: a ticker matching
// a known stablecoin symbol is assumed to trade at $1. Runs only after
// real price discovery has been attempted.
type stableSymbolSource struct{}

func (stableSymbolSource) Name() string {
	return "stable-symbol"
}

func (stableSymbolSource) Resolve(_ context.Context, q Query) (float64, error) {
	if !config.IsStableSymbol(q.Symbol) {
		return 0, ErrNoPrice
	}
	return 1.0, nil
}
