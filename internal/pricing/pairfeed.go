package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xlamaexchange/swapdata/internal/platform/cache"
	"github.com/xlamaexchange/swapdata/internal/platform/observability"
	"github.com/xlamaexchange/swapdata/internal/platform/resilience"
)

// chainSlugs maps chain IDs to the pair index's chain identifiers.
// A chain missing here cannot be served by the feed at all.
var chainSlugs = map[string]string{
	"1":   "ethereum",
	"56":  "bsc",
	"137": "polygon",
	"196": "xlayer",
}

// PairFeed fetches token prices from a DEX pair index (DexScreener
// API shape): query by contract address, pick the deepest pair quoting
// a USD price.
type PairFeed struct {
	client      *http.Client
	baseURL     string
	chains      map[string]string // chain ID -> feed slug
	rateLimiter *resilience.RateLimiter
	retryCfg    resilience.RetryConfig
	cb          *resilience.CircuitBreaker
	cache       *cache.Engine
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// PairFeedConfig holds pair feed configuration
type PairFeedConfig struct {
	BaseURL        string
	Chains         []string // chain IDs to serve; nil means every known chain
	RateLimitRPM   int
	RateLimitBurst int
	Cache          *cache.Engine
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	RetryConfig    resilience.RetryConfig
}

// pairFeedResponse mirrors the pair index response
type pairFeedResponse struct {
	Pairs []struct {
		ChainID   string `json:"chainId"`
		PriceUSD  string `json:"priceUsd"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// NewPairFeed creates a pair feed client
func NewPairFeed(cfg PairFeedConfig) *PairFeed {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.dexscreener.com"
	}
	if cfg.RateLimitRPM == 0 {
		cfg.RateLimitRPM = 300
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 10
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = resilience.DefaultRetryConfig()
	}
	if cfg.RetryConfig.RetryIf == nil {
		// "No price" is an answer, not a failure worth retrying.
		cfg.RetryConfig.RetryIf = func(err error) bool {
			return !errors.Is(err, ErrNoPrice) && resilience.IsRetryable(err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &observability.Metrics{}
	}

	chains := make(map[string]string)
	if cfg.Chains == nil {
		for id, slug := range chainSlugs {
			chains[id] = slug
		}
	} else {
		for _, id := range cfg.Chains {
			if slug, ok := chainSlugs[id]; ok {
				chains[id] = slug
			}
		}
	}

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "pair-feed",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		OnStateChange: func(from, to resilience.State) {
			metrics.SetCircuitBreakerState(context.Background(), "pair-feed", int64(to))
		},
		// A token without pairs is a healthy response.
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, ErrNoPrice)
		},
	})

	return &PairFeed{
		client:      &http.Client{Timeout: 10 * time.Second},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		chains:      chains,
		rateLimiter: resilience.NewRateLimiterFromRPM(cfg.RateLimitRPM, cfg.RateLimitBurst),
		retryCfg:    cfg.RetryConfig,
		cb:          cb,
		cache:       cfg.Cache,
		logger:      logger.Named("pair-feed"),
		metrics:     metrics,
	}
}

// Name identifies the provider in logs and metrics
func (f *PairFeed) Name() string {
	return "pair-feed"
}

// SupportsChain reports whether the feed indexes the given chain
func (f *PairFeed) SupportsChain(chainID string) bool {
	_, ok := f.chains[chainID]
	return ok
}

// TokenPrice returns the USD unit price for a token contract. Results
// are cached under the price tier; concurrent lookups for the same
// token share one request.
func (f *PairFeed) TokenPrice(ctx context.Context, chainID, address string) (float64, error) {
	slug, ok := f.chains[chainID]
	if !ok {
		return 0, fmt.Errorf("pair feed: unsupported chain %s: %w", chainID, ErrNoPrice)
	}

	address = strings.ToLower(address)

	if f.cache == nil {
		return f.fetchPrice(ctx, slug, address)
	}

	key := "pairfeed:" + chainID + ":" + address
	price, _, err := cache.GetOrFetchAs(ctx, f.cache, key, cache.TierPrice, func(ctx context.Context) (float64, error) {
		return f.fetchPrice(ctx, slug, address)
	})
	return price, err
}

// fetchPrice performs the rate-limited, retried, circuit-broken lookup
func (f *PairFeed) fetchPrice(ctx context.Context, slug, address string) (float64, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("pair feed: rate limiter: %w", err)
	}

	return resilience.RetryWithResult(ctx, f.retryCfg, func(ctx context.Context) (float64, error) {
		return resilience.ExecuteWithResult(f.cb, ctx, func(ctx context.Context) (float64, error) {
			return f.doRequest(ctx, slug, address)
		})
	})
}

func (f *PairFeed) doRequest(ctx context.Context, slug, address string) (float64, error) {
	start := time.Now()

	url := fmt.Sprintf("%s/latest/dex/tokens/%s", f.baseURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("pair feed: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.RecordProviderRequest(ctx, "pair-feed", float64(time.Since(start).Milliseconds()), err)
		return 0, fmt.Errorf("pair feed: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("pair feed: unexpected status code %d", resp.StatusCode)
		f.metrics.RecordProviderRequest(ctx, "pair-feed", float64(time.Since(start).Milliseconds()), err)
		return 0, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		f.metrics.RecordProviderRequest(ctx, "pair-feed", float64(time.Since(start).Milliseconds()), err)
		return 0, fmt.Errorf("pair feed: read body: %w", err)
	}

	var payload pairFeedResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		f.metrics.RecordProviderRequest(ctx, "pair-feed", float64(time.Since(start).Milliseconds()), err)
		return 0, fmt.Errorf("pair feed: decode response: %w", err)
	}

	f.metrics.RecordProviderRequest(ctx, "pair-feed", float64(time.Since(start).Milliseconds()), nil)

	// Pick the deepest pair on the requested chain; thin pools quote
	// unreliable prices.
	best := -1.0
	bestLiquidity := -1.0
	for _, pair := range payload.Pairs {
		if pair.ChainID != slug || pair.PriceUSD == "" {
			continue
		}
		price, err := strconv.ParseFloat(pair.PriceUSD, 64)
		if err != nil || price <= 0 {
			continue
		}
		if pair.Liquidity.USD > bestLiquidity {
			best = price
			bestLiquidity = pair.Liquidity.USD
		}
	}

	if best <= 0 {
		return 0, ErrNoPrice
	}

	f.logger.LogDebug(ctx, "pair feed price",
		"chain", slug,
		"address", address,
		"price", best,
		"liquidity_usd", bestLiquidity,
	)

	return best, nil
}
