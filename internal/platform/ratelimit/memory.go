package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int64
}

// Memory keeps windows in process memory. Counts are not shared between
// instances and reset on restart; use Redis when running more than one.
type Memory struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	lastGC  time.Time
}

func NewMemory(cfg Config) *Memory {
	return &Memory{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (m *Memory) Allow(ctx context.Context, key string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.gc(now)
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.cfg.Window {
		w = &window{start: now}
		m.windows[key] = w
	}
	w.count++
	return decide(m.cfg, w.count, w.start.Add(m.cfg.Window).Sub(now)), nil
}

// gc drops expired windows at most once per window length.
func (m *Memory) gc(now time.Time) {
	if now.Sub(m.lastGC) < m.cfg.Window {
		return
	}
	m.lastGC = now
	for k, w := range m.windows {
		if now.Sub(w.start) >= m.cfg.Window {
			delete(m.windows, k)
		}
	}
}
