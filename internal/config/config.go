package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/efreitasn/marketsim/internal/domain"
)

// Config holds all runtime configuration for the market simulator.
type Config struct {
	Port     int
	LogLevel string

	DBPath      string // empty disables SQLite persistence
	CatalogPath string // optional YAML catalog

	PricingInterval      time.Duration
	MatchingInterval     time.Duration
	NewsInterval         time.Duration
	SnapshotInterval     time.Duration // 0 disables snapshots
	MarketBroadcastEvery int

	PersistQueueSize  int
	PersistMaxRetries int
	Seed              int64 // 0 seeds from the clock

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	cfg := &Config{
		Port:        port,
		LogLevel:    logLevel,
		DBPath:      getStrAllowEmpty("DB_PATH", "marketsim.db"),
		CatalogPath: getStr("CATALOG_PATH", ""),
	}

	durations := []struct {
		key string
		dst *time.Duration
		def time.Duration
		min time.Duration // smallest accepted value
	}{
		{"PRICING_INTERVAL", &cfg.PricingInterval, time.Second, 1},
		{"MATCHING_INTERVAL", &cfg.MatchingInterval, 2 * time.Second, 1},
		{"NEWS_INTERVAL", &cfg.NewsInterval, time.Minute, 1},
		{"SNAPSHOT_INTERVAL", &cfg.SnapshotInterval, time.Minute, 0},
		{"READ_TIMEOUT", &cfg.ReadTimeout, 5 * time.Second, 0},
		{"WRITE_TIMEOUT", &cfg.WriteTimeout, 10 * time.Second, 0},
		{"IDLE_TIMEOUT", &cfg.IdleTimeout, 60 * time.Second, 0},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout, 10 * time.Second, 0},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if v < d.min {
			if d.min > 0 {
				return nil, fmt.Errorf("invalid %s: must be greater than 0", d.key)
			}
			return nil, fmt.Errorf("invalid %s: must not be negative", d.key)
		}
		*d.dst = v
	}

	ints := []struct {
		key string
		dst *int
		def int
		min int
	}{
		{"MARKET_BROADCAST_EVERY", &cfg.MarketBroadcastEvery, 5, 1},
		{"PERSIST_QUEUE_SIZE", &cfg.PersistQueueSize, 1024, 1},
		{"PERSIST_MAX_RETRIES", &cfg.PersistMaxRetries, 3, 0},
	}
	for _, n := range ints {
		v, err := getInt(n.key, n.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", n.key, err)
		}
		if v < n.min {
			return nil, fmt.Errorf("invalid %s: must be >= %d", n.key, n.min)
		}
		*n.dst = v
	}

	seed, err := getInt64("SEED", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid SEED: %w", err)
	}
	cfg.Seed = seed

	return cfg, nil
}

// MarketParameters returns the default model parameters with the
// configured tick intervals.
func (c *Config) MarketParameters() domain.MarketParameters {
	p := domain.DefaultParameters()
	p.PricingInterval = c.PricingInterval
	p.MatchingInterval = c.MatchingInterval
	p.NewsInterval = c.NewsInterval
	return p
}

// Warnings lists settings that are valid but probably unintended.
func (c *Config) Warnings() []string {
	var out []string
	if c.MatchingInterval > c.PricingInterval {
		out = append(out, fmt.Sprintf("MATCHING_INTERVAL %s is longer than PRICING_INTERVAL %s; crossed orders will rest for several pricing ticks", c.MatchingInterval, c.PricingInterval))
	}
	if c.DBPath == "" {
		out = append(out, "DB_PATH is empty; orders and transactions will not be persisted")
	}
	return out
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

// getStrAllowEmpty distinguishes an unset variable from one set to "".
func getStrAllowEmpty(key, defaultVal string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
