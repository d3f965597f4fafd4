// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"; empty picks by Env

	// Algorand
	Network      string // "testnet" or "mainnet"
	AlgodURL     string
	IndexerURL   string
	AlgodToken   string // Optional, public nodes need none
	HistoryLimit int    // Transactions fetched per analysis
	UpstreamRPS  int    // Requests per second to algod/indexer

	// Pool catalog
	DatabaseURL     string // PostgreSQL connection string (optional, uses the built-in catalog if not set)
	CatalogSchedule string // cron spec with seconds field

	// HTTP
	RateLimitRPM int
	CORSOrigins  []string

	// Observability
	OTLPEndpoint string // Tracing disabled when empty
}

// Network defaults (algonode public endpoints)
const (
	NetworkTestnet = "testnet"
	NetworkMainnet = "mainnet"

	TestnetAlgodURL   = "https://testnet-api.algonode.cloud"
	TestnetIndexerURL = "https://testnet-idx.algonode.cloud"
	MainnetAlgodURL   = "https://mainnet-api.algonode.cloud"
	MainnetIndexerURL = "https://mainnet-idx.algonode.cloud"

	DefaultPort            = "5000"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultNetwork         = NetworkTestnet
	DefaultHistoryLimit    = 100
	DefaultUpstreamRPS     = 20
	DefaultRateLimit       = 120
	DefaultCatalogSchedule = "0 */5 * * * *"
	MaxHistoryLimit        = 1000
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	network := strings.ToLower(getEnv("ALGORAND_NETWORK", DefaultNetwork))
	algodURL, indexerURL := networkURLs(network)

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:       os.Getenv("LOG_FORMAT"),
		Network:         network,
		AlgodURL:        getEnv("ALGOD_URL", algodURL),
		IndexerURL:      getEnv("INDEXER_URL", indexerURL),
		AlgodToken:      os.Getenv("ALGOD_TOKEN"),
		HistoryLimit:    int(getEnvInt64("HISTORY_LIMIT", DefaultHistoryLimit)),
		UpstreamRPS:     int(getEnvInt64("UPSTREAM_RPS", DefaultUpstreamRPS)),
		DatabaseURL:     os.Getenv("DATABASE_URL"), // Optional
		CatalogSchedule: getEnv("CATALOG_REFRESH_SCHEDULE", DefaultCatalogSchedule),
		RateLimitRPM:    int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
		CORSOrigins:     getEnvList("CORS_ORIGINS"),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Network != NetworkTestnet && c.Network != NetworkMainnet {
		return fmt.Errorf("ALGORAND_NETWORK must be %q or %q, got %q", NetworkTestnet, NetworkMainnet, c.Network)
	}
	for _, e := range []struct{ key, raw string }{{"ALGOD_URL", c.AlgodURL}, {"INDEXER_URL", c.IndexerURL}} {
		u, err := url.Parse(e.raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", e.key)
		}
	}
	if c.HistoryLimit < 1 || c.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("HISTORY_LIMIT must be between 1 and %d", MaxHistoryLimit)
	}
	if c.UpstreamRPS < 1 {
		return fmt.Errorf("UPSTREAM_RPS must be positive")
	}
	if c.RateLimitRPM < 1 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(c.CatalogSchedule); err != nil {
		return fmt.Errorf("CATALOG_REFRESH_SCHEDULE is invalid: %w", err)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedLogFormat returns LogFormat, defaulting to JSON in production.
func (c *Config) ResolvedLogFormat() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}
	if c.IsProduction() {
		return "json"
	}
	return "text"
}

func networkURLs(network string) (algod, indexer string) {
	if network == NetworkMainnet {
		return MainnetAlgodURL, MainnetIndexerURL
	}
	return TestnetAlgodURL, TestnetIndexerURL
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
