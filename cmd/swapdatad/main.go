package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xlamaexchange/swapdata/internal/platform/cache"
	"github.com/xlamaexchange/swapdata/internal/platform/config"
	"github.com/xlamaexchange/swapdata/internal/platform/observability"
	"github.com/xlamaexchange/swapdata/internal/pricing"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "swapdatad",
	Short: "Swap data freshness engine",
	Long: `swapdatad serves token prices through a stale-while-revalidate
cache backed by a multi-source resolution chain (stablecoin registry,
DEX pair index, ticker feed, wrapped-asset lookup).`,
	Version: "1.0.0",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the price service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("Loading configuration...")
	cfg := config.MustLoad(configPath)

	// Observability first, everything else logs through it.
	logger := observability.NewLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	metrics, err := observability.NewMetrics("swapdatad", cfg.Observability.Metrics.Enabled)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	tracer, err := observability.NewTracerProvider(ctx, "swapdatad", observability.TracingConfig{
		Enabled:  cfg.Observability.Tracing.Enabled,
		Endpoint: cfg.Observability.Tracing.Endpoint,
		Sampler:  cfg.Observability.Tracing.Sampler,
		Ratio:    cfg.Observability.Tracing.Ratio,
	})
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	defer tracer.Shutdown(context.Background())

	logger.Info("observability setup complete")

	// Freshness engine
	engine := cache.NewEngine(ctx, cache.EngineConfig{
		Capacity:          cfg.Cache.Capacity,
		RevalidateWorkers: cfg.Cache.RevalidateWorkers,
		RevalidateQueue:   cfg.Cache.RevalidateQueue,
		Logger:            logger,
		Metrics:           metrics,
	})
	defer engine.Close()

	// Price providers
	logger.Info("creating price providers...")

	pairFeed := pricing.NewPairFeed(pricing.PairFeedConfig{
		BaseURL:        cfg.Providers.PairFeed.BaseURL,
		Chains:         cfg.Providers.PairFeed.Chains,
		RateLimitRPM:   cfg.Providers.PairFeed.RateLimit.RequestsPerMinute,
		RateLimitBurst: cfg.Providers.PairFeed.RateLimit.Burst,
		Cache:          engine,
		Logger:         logger,
		Metrics:        metrics,
	})

	symbolFeed := pricing.NewSymbolFeed(pricing.SymbolFeedConfig{
		BaseURL:        cfg.Providers.SymbolFeed.BaseURL,
		RateLimitRPM:   cfg.Providers.SymbolFeed.RateLimit.RequestsPerMinute,
		RateLimitBurst: cfg.Providers.SymbolFeed.RateLimit.Burst,
		Cache:          engine,
		Logger:         logger,
		Metrics:        metrics,
	})

	resolver := pricing.NewResolver(pricing.ResolverConfig{
		PairFeed:   pairFeed,
		SymbolFeed: symbolFeed,
		Logger:     logger,
		Metrics:    metrics,
	})

	// Cache warming: wrapped-native prices per chain, priority chains
	// first. Best-effort by construction.
	prefetcher := cache.NewPrefetcher(engine, cache.PrefetcherConfig{
		Tier1Delay: cfg.Prefetch.Tier1Delay,
		Tier2Delay: cfg.Prefetch.Tier2Delay,
		TierOne:    warmTargets(cfg.Prefetch.TierOneChains, resolver),
		TierTwo:    warmTargets(cfg.Prefetch.TierTwoChains, resolver),
		Logger:     logger,
	})
	prefetcher.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	server := newHTTPServer(cfg.HTTP.Port, engine, resolver, prefetcher, metrics, logger)
	go func() {
		logger.Info("HTTP server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogError(ctx, "HTTP server error", err)
			cancel()
		}
	}()

	select {
	case <-sigCh:
		logger.Info("shutdown signal received, gracefully stopping...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.LogError(shutdownCtx, "HTTP shutdown error", err)
	}

	logger.Info("application stopped")
	return nil
}

// nativeAssets maps chain IDs to the chain's canonical wrapped-native
// token, the single most queried price on each chain.
var nativeAssets = map[string]struct {
	address string
	symbol  string
}{
	"1":   {"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", "WETH"},
	"56":  {"0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c", "WBNB"},
	"137": {"0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270", "WPOL"},
	"196": {"0xe538905cf8410324e03a5a23c1c177a474d59b2b", "WOKB"},
}

func warmTargets(chains []string, resolver *pricing.Resolver) []cache.Target {
	var targets []cache.Target
	for _, chainID := range chains {
		asset, ok := nativeAssets[chainID]
		if !ok {
			continue
		}
		q := pricing.Query{ChainID: chainID, Address: asset.address, Symbol: asset.symbol}
		targets = append(targets, cache.Target{
			Key:  cache.PriceKey(chainID, asset.address),
			Tier: cache.TierPrice,
			Fetch: func(ctx context.Context) (any, error) {
				price, ok := resolver.Resolve(ctx, q)
				if !ok {
					return nil, pricing.ErrNoPrice
				}
				return price, nil
			},
		})
	}
	return targets
}

func newHTTPServer(
	port int,
	engine *cache.Engine,
	resolver *pricing.Resolver,
	prefetcher *cache.Prefetcher,
	metrics *observability.Metrics,
	logger *observability.Logger,
) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ready","prefetch_complete":%v}`, prefetcher.IsComplete())
	})

	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/v1/price", func(w http.ResponseWriter, r *http.Request) {
		handlePrice(w, r, engine, resolver, logger)
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

type priceResponse struct {
	ChainID string  `json:"chain_id"`
	Address string  `json:"address"`
	Price   float64 `json:"price"`
	Cached  bool    `json:"cached"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handlePrice serves GET /v1/price?chain=&address=&symbol=. Reads go
// through the freshness engine so repeated lookups are served from
// cache and stale entries refresh in the background.
func handlePrice(w http.ResponseWriter, r *http.Request, engine *cache.Engine, resolver *pricing.Resolver, logger *observability.Logger) {
	w.Header().Set("Content-Type", "application/json")

	chainID := r.URL.Query().Get("chain")
	address := r.URL.Query().Get("address")
	symbol := r.URL.Query().Get("symbol")
	if chainID == "" || address == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{Error: "chain and address are required"})
		return
	}

	q := pricing.Query{ChainID: chainID, Address: address, Symbol: symbol}
	if raw := r.URL.Query().Get("api_price"); raw != "" {
		if p, err := strconv.ParseFloat(raw, 64); err == nil {
			q.APIPrice = &p
		}
	}

	// Caller-known prices and registry answers beat whatever the cache
	// holds for this key.
	if price, ok := resolver.ResolveSync(q); ok {
		json.NewEncoder(w).Encode(priceResponse{
			ChainID: chainID,
			Address: address,
			Price:   price,
			Cached:  false,
		})
		return
	}

	price, cached, err := cache.GetOrFetchAs(r.Context(), engine, cache.PriceKey(chainID, address), cache.TierPrice,
		func(ctx context.Context) (float64, error) {
			p, ok := resolver.Resolve(ctx, q)
			if !ok {
				return 0, pricing.ErrNoPrice
			}
			return p, nil
		})
	if err != nil {
		logger.LogDebug(r.Context(), "price lookup failed",
			"chain", chainID,
			"address", address,
			"error", err,
		)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errorResponse{Error: "no price available"})
		return
	}

	json.NewEncoder(w).Encode(priceResponse{
		ChainID: chainID,
		Address: address,
		Price:   price,
		Cached:  cached,
	})
}
