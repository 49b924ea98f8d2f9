// Package pricing resolves USD unit prices for arbitrary tokens by
// walking an ordered chain of sources until one yields a positive
// price.
package pricing

import (
	"context"
	"errors"

	"github.com/xlamaexchange/swapdata/internal/platform/observability"
)

// ErrNoPrice is returned by a source that has no price for the query.
// The resolver treats it as "try the next source"; any other error is
// handled the same way but logged.
var ErrNoPrice = errors.New("pricing: no price available")

// Query identifies the token to price. APIPrice and RouterPrice are
// prices the caller already holds (from a token API response or implied
// by a swap quote); when positive they short-circuit the chain, since
// first-party contextual data beats a third-party index.
type Query struct {
	ChainID string
	Address string
	Symbol  string

	APIPrice    *float64
	RouterPrice *float64
}

// Source is one step of the resolution chain. Resolve returns a
// positive USD price, or ErrNoPrice when the source has nothing for
// this token.
type Source interface {
	Name() string
	Resolve(ctx context.Context, q Query) (float64, error)
}

// PairPriceProvider serves USD prices keyed by chain and contract
// address, typically from a DEX pair index. Not every chain is
// indexed; SupportsChain gates the call.
type PairPriceProvider interface {
	Name() string
	SupportsChain(chainID string) bool
	TokenPrice(ctx context.Context, chainID, address string) (float64, error)
}

// SymbolPriceProvider serves USD prices keyed by ticker, covering major
// assets regardless of chain.
type SymbolPriceProvider interface {
	Name() string
	SymbolPrice(ctx context.Context, symbol string) (float64, error)
}

// step is a source plus whether it may run in the synchronous variant
// (no I/O).
type step struct {
	source Source
	sync   bool
}

// Resolver walks the ordered source chain. It is stateless per call;
// the providers behind it may cache, but the fallback logic itself does
// not.
type Resolver struct {
	steps   []step
	logger  *observability.Logger
	metrics *observability.Metrics
}

// ResolverConfig configures the chain's external providers.
type ResolverConfig struct {
	PairFeed   PairPriceProvider
	SymbolFeed SymbolPriceProvider
	Logger     *observability.Logger
	Metrics    *observability.Metrics
}

// NewResolver builds the chain in its fixed order: caller-known prices
// first, then exact address matches, then external discovery, with the
// ticker heuristic as the final default. Reordering here is the only
// way to change resolution priority.
func NewResolver(cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &observability.Metrics{}
	}

	steps := []step{
		{source: knownPriceSource{name: "api-price", pick: func(q Query) *float64 { return q.APIPrice }}, sync: true},
		{source: knownPriceSource{name: "router-price", pick: func(q Query) *float64 { return q.RouterPrice }}, sync: true},
		{source: stableRegistrySource{}, sync: true},
		{source: pairFeedSource{feed: cfg.PairFeed}},
		{source: symbolFeedSource{feed: cfg.SymbolFeed}},
		{source: wrappedAssetSource{feed: cfg.SymbolFeed}},
		{source: stableSymbolSource{}, sync: true},
	}

	return &Resolver{
		steps:   steps,
		logger:  logger.Named("pricing"),
		metrics: metrics,
	}
}

// Resolve returns the best available USD unit price for the token, or
// ok=false when every source came up empty. It never returns zero or a
// negative price with ok=true, and never fails: source errors just move
// the chain along.
func (r *Resolver) Resolve(ctx context.Context, q Query) (price float64, ok bool) {
	return r.resolve(ctx, q, false)
}

// ResolveSync is the non-blocking variant: it consults only the steps
// that need no I/O (caller-known prices, the stablecoin address
// registry, and the ticker heuristic).
func (r *Resolver) ResolveSync(q Query) (price float64, ok bool) {
	return r.resolve(context.Background(), q, true)
}

func (r *Resolver) resolve(ctx context.Context, q Query, syncOnly bool) (float64, bool) {
	for _, s := range r.steps {
		if syncOnly && !s.sync {
			continue
		}

		price, err := s.source.Resolve(ctx, q)
		if err != nil {
			if !errors.Is(err, ErrNoPrice) {
				r.logger.LogDebug(ctx, "price source failed",
					"source", s.source.Name(),
					"chain", q.ChainID,
					"address", q.Address,
					"error", err,
				)
			}
			continue
		}
		if price > 0 {
			r.metrics.RecordResolution(ctx, s.source.Name())
			return price, true
		}
	}

	if r.metrics.PriceUnresolved != nil {
		r.metrics.PriceUnresolved.Add(ctx, 1)
	}
	return 0, false
}
