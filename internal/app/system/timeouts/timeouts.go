// Package timeouts holds the context deadlines used by handlers, the sync
// layer and the identity provider client.
//
//   - Ping: health checks
//   - Short: single-document reads and membership lookups
//   - Medium: list queries and single writes
//   - Long: cascading deletes and other multi-collection writes
//   - Provider: calls to the identity provider's backend API
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing     = 2 * time.Second
	DefaultShort    = 5 * time.Second
	DefaultMedium   = 10 * time.Second
	DefaultLong     = 30 * time.Second
	DefaultProvider = 8 * time.Second
)

// Config holds timeout values. Zero fields leave the current value alone.
type Config struct {
	Ping     time.Duration
	Short    time.Duration
	Medium   time.Duration
	Long     time.Duration
	Provider time.Duration
}

var defaults = Config{
	Ping:     DefaultPing,
	Short:    DefaultShort,
	Medium:   DefaultMedium,
	Long:     DefaultLong,
	Provider: DefaultProvider,
}

var (
	mu  sync.RWMutex
	cur = defaults
)

func get(f func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return f(cur)
}

func Ping() time.Duration     { return get(func(c Config) time.Duration { return c.Ping }) }
func Short() time.Duration    { return get(func(c Config) time.Duration { return c.Short }) }
func Medium() time.Duration   { return get(func(c Config) time.Duration { return c.Medium }) }
func Long() time.Duration     { return get(func(c Config) time.Duration { return c.Long }) }
func Provider() time.Duration { return get(func(c Config) time.Duration { return c.Provider }) }

// Configure overrides the non-zero values in cfg. Call it during startup.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	merge(&cur.Ping, cfg.Ping)
	merge(&cur.Short, cfg.Short)
	merge(&cur.Medium, cfg.Medium)
	merge(&cur.Long, cfg.Long)
	merge(&cur.Provider, cfg.Provider)
}

func merge(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// Reset restores the defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults
}

// Current returns a snapshot of the active values.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// ConfigureFromEnv reads GROUPHUB_TIMEOUT_{PING,SHORT,MEDIUM,LONG,PROVIDER}
// as Go durations ("500ms", "2m"). Unset or invalid values are skipped.
// It returns how many values were applied.
func ConfigureFromEnv() int {
	var cfg Config
	n := 0
	for _, e := range []struct {
		name string
		dst  *time.Duration
	}{
		{"GROUPHUB_TIMEOUT_PING", &cfg.Ping},
		{"GROUPHUB_TIMEOUT_SHORT", &cfg.Short},
		{"GROUPHUB_TIMEOUT_MEDIUM", &cfg.Medium},
		{"GROUPHUB_TIMEOUT_LONG", &cfg.Long},
		{"GROUPHUB_TIMEOUT_PROVIDER", &cfg.Provider},
	} {
		d, err := time.ParseDuration(os.Getenv(e.name))
		if err != nil || d <= 0 {
			continue
		}
		*e.dst = d
		n++
	}
	Configure(cfg)
	return n
}

// WithTimeout is context.WithTimeout whose cancel func logs a warning when
// the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete group")
//	defer cancel()
func WithTimeout(parent context.Context, d time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, func() {
		if log != nil && ctx.Err() == context.DeadlineExceeded {
			log.Warn("operation timed out", zap.String("operation", operation), zap.Duration("timeout", d))
		}
		cancel()
	}
}
