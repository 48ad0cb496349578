package session

import (
	"sync"
	"time"
)

// Gate is the session-wide cooldown between pipeline runs. The window starts
// when a run begins and keeps counting regardless of how the run ends; a run
// may finish long before or after it expires. TryEnter is atomic, so two
// overlapping run attempts can never both pass.
type Gate struct {
	mu        sync.Mutex
	interval  time.Duration
	startedAt time.Time
	now       func() time.Time
}

// NewGate builds a gate with the given window. A zero or negative interval
// disables gating entirely.
func NewGate(interval time.Duration) *Gate {
	return &Gate{interval: interval, now: time.Now}
}

// TryEnter reports whether a new run may start, and if so starts the window.
func (g *Gate) TryEnter() bool {
	if g == nil || g.interval <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.startedAt.IsZero() && now.Sub(g.startedAt) < g.interval {
		return false
	}

	g.startedAt = now
	return true
}

// Remaining reports how long until the gate reopens; zero when open.
func (g *Gate) Remaining() time.Duration {
	if g == nil || g.interval <= 0 {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.startedAt.IsZero() {
		return 0
	}

	left := g.interval - g.now().Sub(g.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Reset clears the window so the user may retry immediately. Called on fatal
// outcomes that consumed no meaningful quota.
func (g *Gate) Reset() {
	if g == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.startedAt = time.Time{}
}
