package executor

import (
	"sync"
	"time"
)

const rateWindow = time.Minute

// rateLimiter enforces per-tool sliding-window limits. Timestamps older than
// the window are pruned on every check.
type rateLimiter struct {
	mu    sync.Mutex
	calls map[string][]time.Time
	now   func() time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		calls: make(map[string][]time.Time),
		now:   time.Now,
	}
}

// Allow records the call and returns true if the tool is under its limit.
// A rejected call is not recorded.
func (r *rateLimiter) Allow(toolID string, limit int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-rateWindow)

	recent := r.calls[toolID][:0]
	for _, t := range r.calls[toolID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= limit {
		r.calls[toolID] = recent
		return false
	}

	r.calls[toolID] = append(recent, now)
	return true
}
