// Package config reads the service settings from the environment. Mains import
// github.com/joho/godotenv/autoload so a local .env file is honored too.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	LogLevel  slog.Level
	LogFormat string
	BindAddr  string
	DebugMode bool

	// DatabaseURL selects PostgreSQL repositories; empty keeps books and users in memory.
	DatabaseURL string
	// StateDB is the SQLite file holding session and theme; empty keeps them in memory.
	StateDB string

	SecretKey        []byte
	TokenTTL         time.Duration
	BcryptCost       int
	SimulatedLatency time.Duration

	SeedOPDSFeed string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

func LoadFrom(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}

	c := &Config{
		LogFormat:    strings.ToLower(e.getOrDefault("LOG_FORMAT", "text")),
		BindAddr:     e.getOrDefault("BIND_ADDR", ":8080"),
		DebugMode:    e.getBool("DEBUG_MODE"),
		DatabaseURL:  e.get("DATABASE_URL"),
		StateDB:      e.getOrDefault("STATE_DB", "state.db"),
		SecretKey:    []byte(e.get("SECRET_KEY")),
		SeedOPDSFeed: e.get("SEED_OPDS_FEED"),
	}

	if err := c.LogLevel.UnmarshalText([]byte(e.getOrDefault("LOG_LEVEL", "debug"))); err != nil {
		e.fail("LOG_LEVEL", "one of debug, info, warn or error expected")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		e.fail("LOG_FORMAT", "json or text expected")
	}

	c.TokenTTL = e.getDuration("TOKEN_TTL", 24*time.Hour)
	c.SimulatedLatency = e.getDuration("SIMULATED_LATENCY", 300*time.Millisecond)
	c.BcryptCost = e.getInt("BCRYPT_COST", bcrypt.DefaultCost)
	c.RateLimitRPS = e.getFloat("RATE_LIMIT_RPS", 10)
	c.RateLimitBurst = e.getInt("RATE_LIMIT_BURST", 20)

	if c.TokenTTL <= 0 {
		e.fail("TOKEN_TTL", "must be positive")
	}
	if c.SimulatedLatency < 0 {
		e.fail("SIMULATED_LATENCY", "must not be negative")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		e.fail("BCRYPT_COST", fmt.Sprintf("must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	if e.err != nil {
		return nil, e.err
	}
	return c, nil
}

type env struct {
	getenv func(string) string
	err    error
}

func (e *env) fail(key, msg string) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s: %s", key, msg)
	}
}

func (e *env) get(key string) string {
	return strings.TrimSpace(e.getenv(key))
}

func (e *env) getOrDefault(key, default_ string) string {
	if val := e.get(key); val != "" {
		return val
	}

	return default_
}

func (e *env) getBool(key string) bool {
	if val := strings.ToLower(e.get(key)); val == "yes" || val == "on" || val == "true" || val == "1" {
		return true
	}

	return false
}

func (e *env) getDuration(key string, default_ time.Duration) time.Duration {
	val := e.get(key)
	if val == "" {
		return default_
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		e.fail(key, "duration like 300ms or 24h expected")
		return default_
	}
	return d
}

func (e *env) getInt(key string, default_ int) int {
	val := e.get(key)
	if val == "" {
		return default_
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		e.fail(key, "integer expected")
		return default_
	}
	return n
}

func (e *env) getFloat(key string, default_ float64) float64 {
	val := e.get(key)
	if val == "" {
		return default_
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		e.fail(key, "number expected")
		return default_
	}
	return f
}
