package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func validConfig() Config {
	return Config{
		Network:         NetworkTestnet,
		AlgodURL:        TestnetAlgodURL,
		IndexerURL:      TestnetIndexerURL,
		HistoryLimit:    DefaultHistoryLimit,
		UpstreamRPS:     DefaultUpstreamRPS,
		RateLimitRPM:    DefaultRateLimit,
		CatalogSchedule: DefaultCatalogSchedule,
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "ALGORAND_NETWORK", "")
	setEnv(t, "ALGOD_URL", "")
	setEnv(t, "INDEXER_URL", "")
	setEnv(t, "PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, NetworkTestnet, cfg.Network)
	assert.Equal(t, TestnetAlgodURL, cfg.AlgodURL)
	assert.Equal(t, TestnetIndexerURL, cfg.IndexerURL)
	assert.Equal(t, DefaultHistoryLimit, cfg.HistoryLimit)
	assert.Equal(t, DefaultCatalogSchedule, cfg.CatalogSchedule)
}

func TestLoad_Mainnet(t *testing.T) {
	setEnv(t, "ALGORAND_NETWORK", "MainNet")
	setEnv(t, "ALGOD_URL", "")
	setEnv(t, "INDEXER_URL", "http://localhost:8980")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, NetworkMainnet, cfg.Network)
	assert.Equal(t, MainnetAlgodURL, cfg.AlgodURL)
	assert.Equal(t, "http://localhost:8980", cfg.IndexerURL, "explicit URL overrides network default")
}

func TestLoad_InvalidNetwork(t *testing.T) {
	setEnv(t, "ALGORAND_NETWORK", "betanet")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ALGORAND_NETWORK")
}

func TestLoad_CORSOrigins(t *testing.T) {
	setEnv(t, "ALGORAND_NETWORK", "")
	setEnv(t, "CORS_ORIGINS", " http://localhost:3000, ,https://app.example.com ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.CORSOrigins)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "relative algod URL",
			mutate:  func(c *Config) { c.AlgodURL = "/v2" },
			wantErr: "ALGOD_URL must be an absolute URL",
		},
		{
			name:    "missing indexer URL",
			mutate:  func(c *Config) { c.IndexerURL = "" },
			wantErr: "INDEXER_URL must be an absolute URL",
		},
		{
			name:    "history limit too large",
			mutate:  func(c *Config) { c.HistoryLimit = MaxHistoryLimit + 1 },
			wantErr: "HISTORY_LIMIT",
		},
		{
			name:    "zero upstream rate",
			mutate:  func(c *Config) { c.UpstreamRPS = 0 },
			wantErr: "UPSTREAM_RPS",
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.RateLimitRPM = 0 },
			wantErr: "RATE_LIMIT_RPM",
		},
		{
			name:    "five-field cron",
			mutate:  func(c *Config) { c.CatalogSchedule = "*/5 * * * *" },
			wantErr: "CATALOG_REFRESH_SCHEDULE",
		},
		{
			name:    "descriptor cron",
			mutate:  func(c *Config) { c.CatalogSchedule = "@every 30s" },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestConfig_ResolvedLogFormat(t *testing.T) {
	assert.Equal(t, "text", (&Config{Env: "development"}).ResolvedLogFormat())
	assert.Equal(t, "json", (&Config{Env: "production"}).ResolvedLogFormat())
	assert.Equal(t, "text", (&Config{Env: "production", LogFormat: "text"}).ResolvedLogFormat())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}
