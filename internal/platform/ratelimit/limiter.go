package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1.
func (d Decision) RetryAfterSeconds() int {
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type Config struct {
	Requests int
	Window   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Requests < 1 {
		c.Requests = 10
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}

func decide(cfg Config, count int64, ttl time.Duration) Decision {
	if ttl <= 0 || ttl > cfg.Window {
		ttl = cfg.Window
	}
	remaining := cfg.Requests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   count <= int64(cfg.Requests),
		Limit:     cfg.Requests,
		Remaining: remaining,
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d
}
