package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("/nonexistent-but-optional.yaml")
	if err == nil {
		// An explicit path that does not exist should fail.
		t.Fatal("expected error for explicit missing config file")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load with defaults failed: %v", err)
	}

	if cfg.Cache.Capacity != 500 {
		t.Errorf("expected default capacity 500, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.RevalidateWorkers != 4 {
		t.Errorf("expected 4 revalidate workers, got %d", cfg.Cache.RevalidateWorkers)
	}
	if cfg.Providers.PairFeed.BaseURL == "" {
		t.Error("expected pair feed base URL default")
	}
	if len(cfg.Providers.PairFeed.Chains) == 0 {
		t.Error("expected default pair feed chain list")
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.HTTP.Port)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Cache: CacheConfig{Capacity: 500, RevalidateWorkers: 4, RevalidateQueue: 64},
			Providers: ProvidersConfig{
				PairFeed:   PairFeedConfig{BaseURL: "https://api.dexscreener.com"},
				SymbolFeed: SymbolFeedConfig{BaseURL: "https://api.binance.com"},
			},
			Observability: ObservabilityConfig{Tracing: TracingConfig{Sampler: "always"}},
			HTTP:          HTTPConfig{Port: 8080},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.Cache.Capacity = 0 }},
		{"no workers", func(c *Config) { c.Cache.RevalidateWorkers = 0 }},
		{"missing pair feed URL", func(c *Config) { c.Providers.PairFeed.BaseURL = "" }},
		{"missing symbol feed URL", func(c *Config) { c.Providers.SymbolFeed.BaseURL = "" }},
		{"negative tier delay", func(c *Config) { c.Prefetch.Tier1Delay = -1 }},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }},
		{"bad sampler", func(c *Config) { c.Observability.Tracing.Sampler = "sometimes" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
