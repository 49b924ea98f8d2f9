package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xlamaexchange/swapdata/internal/platform/cache"
	"github.com/xlamaexchange/swapdata/internal/platform/observability"
	"github.com/xlamaexchange/swapdata/internal/pricing"
)

func priceRequest(t *testing.T, engine *cache.Engine, resolver *pricing.Resolver, url string) (priceResponse, int) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	handlePrice(rec, req, engine, resolver, observability.NewNopLogger())

	var resp priceResponse
	if rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return resp, rec.Code
}

func TestHandlePrice_KnownPriceBeatsCachedEntry(t *testing.T) {
	ctx := context.Background()
	engine := cache.NewEngine(ctx, cache.EngineConfig{Capacity: 10})
	t.Cleanup(engine.Close)
	resolver := pricing.NewResolver(pricing.ResolverConfig{})

	// Seed a cached resolution for the token.
	_, err := engine.FetchAndCache(ctx, cache.PriceKey("1", "0xabc"), cache.TierPrice,
		func(ctx context.Context) (any, error) { return 5.0, nil })
	if err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	// An explicit api_price wins even though the key is resident.
	resp, code := priceRequest(t, engine, resolver, "/v1/price?chain=1&address=0xabc&api_price=3.5")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Price != 3.5 {
		t.Errorf("price = %v, want 3.5 (caller-known price)", resp.Price)
	}
	if resp.Cached {
		t.Error("known-price answer should not report cached")
	}

	// Without it the cached resolution serves.
	resp, code = priceRequest(t, engine, resolver, "/v1/price?chain=1&address=0xabc")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Price != 5.0 || !resp.Cached {
		t.Errorf("got price=%v cached=%v, want 5.0 from cache", resp.Price, resp.Cached)
	}
}

func TestHandlePrice_StablecoinAnswersWithoutCache(t *testing.T) {
	ctx := context.Background()
	engine := cache.NewEngine(ctx, cache.EngineConfig{Capacity: 10})
	t.Cleanup(engine.Close)
	resolver := pricing.NewResolver(pricing.ResolverConfig{})

	resp, code := priceRequest(t, engine, resolver,
		"/v1/price?chain=1&address=0xdac17f958d2ee523a2206206994597c13d831ec7&symbol=USDT")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Price != 1.0 {
		t.Errorf("price = %v, want 1.0", resp.Price)
	}
}

func TestHandlePrice_MissingParams(t *testing.T) {
	ctx := context.Background()
	engine := cache.NewEngine(ctx, cache.EngineConfig{Capacity: 10})
	t.Cleanup(engine.Close)
	resolver := pricing.NewResolver(pricing.ResolverConfig{})

	_, code := priceRequest(t, engine, resolver, "/v1/price?chain=1")
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}
