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

// SymbolFeed fetches spot prices by ticker from a Binance-style API:
// GET /api/v3/ticker/price?symbol=BTCUSDT. The USDT quote is treated
// as USD, which is accurate to well within display precision.
type SymbolFeed struct {
	client      *http.Client
	baseURL     string
	rateLimiter *resilience.RateLimiter
	retryCfg    resilience.RetryConfig
	cb          *resilience.CircuitBreaker
	cache       *cache.Engine
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// SymbolFeedConfig holds symbol feed configuration
type SymbolFeedConfig struct {
	BaseURL        string
	RateLimitRPM   int
	RateLimitBurst int
	Cache          *cache.Engine
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	RetryConfig    resilience.RetryConfig
}

// tickerResponse mirrors the ticker price endpoint response
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// NewSymbolFeed creates a symbol feed client
func NewSymbolFeed(cfg SymbolFeedConfig) *SymbolFeed {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.binance.com"
	}
	if cfg.RateLimitRPM == 0 {
		cfg.RateLimitRPM = 1200
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 50
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = resilience.DefaultRetryConfig()
	}
	if cfg.RetryConfig.RetryIf == nil {
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

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "symbol-feed",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		OnStateChange: func(from, to resilience.State) {
			metrics.SetCircuitBreakerState(context.Background(), "symbol-feed", int64(to))
		},
		// An unlisted ticker is a healthy response.
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, ErrNoPrice)
		},
	})

	return &SymbolFeed{
		client:      &http.Client{Timeout: 10 * time.Second},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter: resilience.NewRateLimiterFromRPM(cfg.RateLimitRPM, cfg.RateLimitBurst),
		retryCfg:    cfg.RetryConfig,
		cb:          cb,
		cache:       cfg.Cache,
		logger:      logger.Named("symbol-feed"),
		metrics:     metrics,
	}
}

// Name identifies the provider in logs and metrics
func (f *SymbolFeed) Name() string {
	return "symbol-feed"
}

// SymbolPrice returns the USD price for a ticker. Results are cached
// under the price tier.
func (f *SymbolFeed) SymbolPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, ErrNoPrice
	}
	// The quote asset itself has no SYMBOLUSDT pair.
	if symbol == "USDT" {
		return 1.0, nil
	}

	if f.cache == nil {
		return f.fetchPrice(ctx, symbol)
	}

	key := "symbolfeed:" + strings.ToLower(symbol)
	price, _, err := cache.GetOrFetchAs(ctx, f.cache, key, cache.TierPrice, func(ctx context.Context) (float64, error) {
		return f.fetchPrice(ctx, symbol)
	})
	return price, err
}

func (f *SymbolFeed) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("symbol feed: rate limiter: %w", err)
	}

	return resilience.RetryWithResult(ctx, f.retryCfg, func(ctx context.Context) (float64, error) {
		return resilience.ExecuteWithResult(f.cb, ctx, func(ctx context.Context) (float64, error) {
			return f.doRequest(ctx, symbol)
		})
	})
}

func (f *SymbolFeed) doRequest(ctx context.Context, symbol string) (float64, error) {
	start := time.Now()

	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%sUSDT", f.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("symbol feed: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.RecordProviderRequest(ctx, "symbol-feed", float64(time.Since(start).Milliseconds()), err)
		return 0, fmt.Errorf("symbol feed: request failed: %w", err)
	}
	defer resp.Body.Close()

	// The feed answers 400 for tickers it does not list.
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		f.metrics.RecordProviderRequest(ctx, "symbol-feed", float64(time.Since(start).Milliseconds()), nil)
		return 0, ErrNoPrice
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("symbol feed: unexpected status code %d", resp.StatusCode)
		f.metrics.RecordProviderRequest(ctx, "symbol-feed", float64(time.Since(start).Milliseconds()), err)
		return 0, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		f.metrics.RecordProviderRequest(ctx, "symbol-feed", float64(time.Since(start).Milliseconds()), err)
		return 0, fmt.Errorf("symbol feed: read body: %w", err)
	}

	var payload tickerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		f.metrics.RecordProviderRequest(ctx, "symbol-feed", float64(time.Since(start).Milliseconds()), err)
		return 0, fmt.Errorf("symbol feed: decode response: %w", err)
	}

	f.metrics.RecordProviderRequest(ctx, "symbol-feed", float64(time.Since(start).Milliseconds()), nil)

	price, err := strconv.ParseFloat(payload.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("symbol feed: malformed price %q: %w", payload.Price, err)
	}
	if price <= 0 {
		return 0, ErrNoPrice
	}

	f.logger.LogDebug(ctx, "symbol feed price", "symbol", symbol, "price", price)

	return price, nil
}
