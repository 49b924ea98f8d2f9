package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the swapdata engine
type Config struct {
	Cache         CacheConfig         `mapstructure:"cache"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Prefetch      PrefetchConfig      `mapstructure:"prefetch"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	HTTP          HTTPConfig          `mapstructure:"http"`
}

// CacheConfig holds freshness store settings
type CacheConfig struct {
	Capacity int `mapstructure:"capacity"`
	// RevalidateWorkers is the number of goroutines draining background
	// revalidations; RevalidateQueue bounds how many may be pending.
	RevalidateWorkers int `mapstructure:"revalidate_workers"`
	RevalidateQueue   int `mapstructure:"revalidate_queue"`
}

// ProvidersConfig holds configuration for external price feeds
type ProvidersConfig struct {
	PairFeed   PairFeedConfig   `mapstructure:"pair_feed"`
	SymbolFeed SymbolFeedConfig `mapstructure:"symbol_feed"`
}

// PairFeedConfig configures the per-pair DEX price feed
type PairFeedConfig struct {
	BaseURL   string          `mapstructure:"base_url"`
	Chains    []string        `mapstructure:"chains"` // chain IDs the feed indexes
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// SymbolFeedConfig configures the per-symbol ticker price feed
type SymbolFeedConfig struct {
	BaseURL   string          `mapstructure:"base_url"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// PrefetchConfig holds cache warming schedule settings
type PrefetchConfig struct {
	Tier1Delay time.Duration `mapstructure:"tier1_delay"`
	Tier2Delay time.Duration `mapstructure:"tier2_delay"`
	// TierOneChains are warmed first (the chains the UI lands on);
	// TierTwoChains follow once tier one has settled.
	TierOneChains []string `mapstructure:"tier1_chains"`
	TierTwoChains []string `mapstructure:"tier2_chains"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	Endpoint string  `mapstructure:"endpoint"`
	Sampler  string  `mapstructure:"sampler"` // always, never, ratio
	Ratio    float64 `mapstructure:"ratio"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SWAPDATA")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not fatal, defaults and env vars apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Cache defaults
	v.SetDefault("cache.capacity", 500)
	v.SetDefault("cache.revalidate_workers", 4)
	v.SetDefault("cache.revalidate_queue", 64)

	// Provider defaults
	v.SetDefault("providers.pair_feed.base_url", "https://api.dexscreener.com")
	v.SetDefault("providers.pair_feed.chains", []string{"1", "56", "137", "196"})
	v.SetDefault("providers.pair_feed.rate_limit.requests_per_minute", 300)
	v.SetDefault("providers.pair_feed.rate_limit.burst", 10)
	v.SetDefault("providers.symbol_feed.base_url", "https://api.binance.com")
	v.SetDefault("providers.symbol_feed.rate_limit.requests_per_minute", 1200)
	v.SetDefault("providers.symbol_feed.rate_limit.burst", 50)

	// Prefetch defaults
	v.SetDefault("prefetch.tier1_delay", "2s")
	v.SetDefault("prefetch.tier2_delay", "10s")
	v.SetDefault("prefetch.tier1_chains", []string{"196"})
	v.SetDefault("prefetch.tier2_chains", []string{"1", "56", "137"})

	// Observability defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sampler", "always")
	v.SetDefault("observability.tracing.ratio", 1.0)

	// HTTP defaults
	v.SetDefault("http.port", 8080)
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Cache.RevalidateWorkers <= 0 {
		return fmt.Errorf("cache.revalidate_workers must be positive, got %d", c.Cache.RevalidateWorkers)
	}
	if c.Providers.PairFeed.BaseURL == "" {
		return fmt.Errorf("providers.pair_feed.base_url is required")
	}
	if c.Providers.SymbolFeed.BaseURL == "" {
		return fmt.Errorf("providers.symbol_feed.base_url is required")
	}
	if c.Prefetch.Tier1Delay < 0 || c.Prefetch.Tier2Delay < 0 {
		return fmt.Errorf("prefetch delays must not be negative")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be in (0, 65535], got %d", c.HTTP.Port)
	}
	switch c.Observability.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		return fmt.Errorf("observability.tracing.sampler must be always, never or ratio, got %q", c.Observability.Tracing.Sampler)
	}
	return nil
}
