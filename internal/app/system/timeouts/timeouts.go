// Package timeouts provides centralized timeout values for handler and
// worker operations.
//
// Guidelines for choosing a timeout:
//   - Ping: health checks and connectivity verification
//   - Short: single-document reads, token verification
//   - Medium: committee creation, progress reads, cancellation
//   - Long: feedback submission, dispatch and reminder runs
//   - Notify: one outbound email
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values.
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
	DefaultNotify = 10 * time.Second
)

// Config holds timeout values. Zero fields mean "keep the current value".
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Notify time.Duration
}

var defaults = Config{
	Ping:   DefaultPing,
	Short:  DefaultShort,
	Medium: DefaultMedium,
	Long:   DefaultLong,
	Notify: DefaultNotify,
}

var (
	mu  sync.RWMutex
	cur = defaults
)

// fields pairs each setting with its environment variable.
func (c *Config) fields() []struct {
	env string
	d   *time.Duration
} {
	return []struct {
		env string
		d   *time.Duration
	}{
		{"TIMEOUT_PING", &c.Ping},
		{"TIMEOUT_SHORT", &c.Short},
		{"TIMEOUT_MEDIUM", &c.Medium},
		{"TIMEOUT_LONG", &c.Long},
		{"TIMEOUT_NOTIFY", &c.Notify},
	}
}

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(cur)
}

// Ping is for health checks.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Short is for single-document reads such as verifying a feedback link.
func Short() time.Duration { return get(func(c Config) time.Duration { return c.Short }) }

// Medium is for committee creation, progress reads and cancellation.
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }

// Long is for work touching several collections: submission, dispatch, sweeps.
func Long() time.Duration { return get(func(c Config) time.Duration { return c.Long }) }

// Notify bounds one outbound notification.
func Notify() time.Duration { return get(func(c Config) time.Duration { return c.Notify }) }

// Configure overrides the non-zero fields of cfg. Call it during startup,
// before handlers are registered.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	dst := cur.fields()
	for i, f := range cfg.fields() {
		if *f.d > 0 {
			*dst[i].d = *f.d
		}
	}
}

// Reset restores the defaults. Tests use it to undo Configure.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults
}

// ConfigureFromEnv reads TIMEOUT_PING, TIMEOUT_SHORT, TIMEOUT_MEDIUM,
// TIMEOUT_LONG and TIMEOUT_NOTIFY (Go durations such as "5s"). Unset, invalid
// or non-positive values are skipped. It returns how many were applied.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()
	n := 0
	for _, f := range cur.fields() {
		v := os.Getenv(f.env)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*f.d = d
			n++
		}
	}
	return n
}

// Current returns a snapshot of the active values.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// WithTimeout is context.WithTimeout whose cancel func logs a warning when
// the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Notify(), log, "send feedback request")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
