// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port           string
	Env            string // "development", "staging", "production"
	LogLevel       string
	RequestTimeout time.Duration

	// Scoring
	ArtifactPath    string // empty uses the artifact embedded in the binary
	StrictSchema    bool
	PremiumFloor    float64
	PremiumDecimals int32

	// Batch endpoint
	MaxBatchSize     int
	BatchConcurrency int

	// Audit log (optional, in-memory if not set)
	DatabaseURL string

	// Result cache
	RedisURL  string // optional, local cache only if not set
	CacheTTL  time.Duration
	CacheSize int
}

const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultRequestTimeout   = 30 * time.Second
	DefaultMaxBatchSize     = 1000
	DefaultBatchConcurrency = 8
	DefaultCacheTTL         = 10 * time.Minute
	DefaultCacheSize        = 10000

	maxPremiumDecimals = 4
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var p envParser
	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		RequestTimeout:   p.duration("REQUEST_TIMEOUT", DefaultRequestTimeout),
		ArtifactPath:     os.Getenv("ARTIFACT_PATH"),
		StrictSchema:     p.bool("STRICT_SCHEMA", false),
		PremiumFloor:     p.float("PREMIUM_FLOOR", 0),
		PremiumDecimals:  int32(p.int("PREMIUM_DECIMALS", 0)),
		MaxBatchSize:     p.int("MAX_BATCH_SIZE", DefaultMaxBatchSize),
		BatchConcurrency: p.int("BATCH_CONCURRENCY", DefaultBatchConcurrency),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		CacheTTL:         p.duration("CACHE_TTL", DefaultCacheTTL),
		CacheSize:        p.int("CACHE_SIZE", DefaultCacheSize),
	}
	if p.err != nil {
		return nil, fmt.Errorf("config parse error: %w", p.err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if math.IsNaN(c.PremiumFloor) || math.IsInf(c.PremiumFloor, 0) || c.PremiumFloor < 0 {
		return fmt.Errorf("PREMIUM_FLOOR must be a finite non-negative number")
	}
	if c.PremiumDecimals < 0 || c.PremiumDecimals > maxPremiumDecimals {
		return fmt.Errorf("PREMIUM_DECIMALS must be between 0 and %d", maxPremiumDecimals)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("MAX_BATCH_SIZE must be positive")
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("CACHE_SIZE cannot be negative")
	}
	if c.CacheTTL < 0 || c.RequestTimeout <= 0 {
		return fmt.Errorf("CACHE_TTL and REQUEST_TIMEOUT must not be negative")
	}
	return nil
}

// CacheEnabled reports whether results are cached at all
func (c *Config) CacheEnabled() bool {
	return c.CacheSize > 0 || c.RedisURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser collects every malformed variable instead of stopping at the first
type envParser struct {
	err error
}

func (p *envParser) fail(key, value string, err error) {
	p.err = errors.Join(p.err, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (p *envParser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *envParser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *envParser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *envParser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}
