package app

import (
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/jonboulle/clockwork"
)

// RateLimiter is a sliding window of attempts per participant.
// A non-positive limit disables it.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	history  map[domain.ParticipantID][]time.Time
	limit    int
	interval time.Duration
}

func NewRateLimiter(clock clockwork.Clock, limit int, interval time.Duration) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		clock:    clock,
		history:  make(map[domain.ParticipantID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(id domain.ParticipantID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[id]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}
	rl.history[id] = append(fresh, now)
	return true
}
