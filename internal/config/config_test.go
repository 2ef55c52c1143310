package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoadFrom_Defaults(t *testing.T) {
	c, err := LoadFrom(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, &Config{
		LogLevel:         slog.LevelDebug,
		LogFormat:        "text",
		BindAddr:         ":8080",
		StateDB:          "state.db",
		SecretKey:        []byte{},
		TokenTTL:         24 * time.Hour,
		BcryptCost:       bcrypt.DefaultCost,
		SimulatedLatency: 300 * time.Millisecond,
		RateLimitRPS:     10,
		RateLimitBurst:   20,
	}, c)
}

func TestLoadFrom_Values(t *testing.T) {
	c, err := LoadFrom(envOf(map[string]string{
		"LOG_LEVEL":         "WARN",
		"LOG_FORMAT":        "JSON",
		"BIND_ADDR":         "127.0.0.1:9000",
		"DEBUG_MODE":        "on",
		"DATABASE_URL":      " postgres://localhost/books ",
		"SECRET_KEY":        "s3cret",
		"TOKEN_TTL":         "1h",
		"SIMULATED_LATENCY": "0s",
		"BCRYPT_COST":       "4",
		"RATE_LIMIT_RPS":    "2.5",
		"RATE_LIMIT_BURST":  "5",
		"SEED_OPDS_FEED":    "https://example.org/opds",
	}))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelWarn, c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
	assert.True(t, c.DebugMode)
	assert.Equal(t, "postgres://localhost/books", c.DatabaseURL)
	assert.Equal(t, []byte("s3cret"), c.SecretKey)
	assert.Equal(t, time.Hour, c.TokenTTL)
	assert.Zero(t, c.SimulatedLatency)
	assert.Equal(t, 4, c.BcryptCost)
	assert.Equal(t, 2.5, c.RateLimitRPS)
	assert.Equal(t, 5, c.RateLimitBurst)
	assert.Equal(t, "https://example.org/opds", c.SeedOPDSFeed)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"LOG_LEVEL":         {"LOG_LEVEL": "loud"},
		"LOG_FORMAT":        {"LOG_FORMAT": "yaml"},
		"TOKEN_TTL":         {"TOKEN_TTL": "forever"},
		"SIMULATED_LATENCY": {"SIMULATED_LATENCY": "-1s"},
		"BCRYPT_COST":       {"BCRYPT_COST": "99"},
		"RATE_LIMIT_BURST":  {"RATE_LIMIT_BURST": "many"},
	}

	for key, vars := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := LoadFrom(envOf(vars))
			assert.ErrorContains(t, err, key)
		})
	}
}
