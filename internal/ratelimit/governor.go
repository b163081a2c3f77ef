package ratelimit

import (
	"sync"
	"time"
)

// Governor is the process-wide admission gate for backend dispatches. It holds
// a single "earliest next request" timestamp: normal admission reads it, and
// only a backend-reported overload advances it. The timestamp never moves
// backwards while the process lives.
type Governor struct {
	mu            sync.Mutex
	nextAvailable time.Time
}

func NewGovernor() *Governor {
	return &Governor{}
}

// Admit reports whether a dispatch may proceed at now. It does not mutate the
// gate; denial is a normal control-flow outcome, not an error.
func (g *Governor) Admit(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !now.Before(g.nextAvailable)
}

// Penalize closes the gate until now+d. A shorter penalty never truncates a
// longer one already in effect.
func (g *Governor) Penalize(now time.Time, d time.Duration) {
	if d <= 0 {
		return
	}
	until := now.Add(d)
	g.mu.Lock()
	defer g.mu.Unlock()
	if until.After(g.nextAvailable) {
		g.nextAvailable = until
	}
}

// RetryAfter returns how long from now until the gate reopens, zero when it is
// already open.
func (g *Governor) RetryAfter(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.Before(g.nextAvailable) {
		return g.nextAvailable.Sub(now)
	}
	return 0
}
