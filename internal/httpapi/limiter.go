package httpapi

import (
	"sync"
	"time"
)

// rateLimiter is a sliding-window counter per client. Reindexing is
// expensive enough that a misbehaving client must not be able to queue
// builds back to back.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	history map[string][]time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		history: make(map[string][]time.Time),
	}
}

// Allow reports whether the client may proceed, recording the attempt if so.
func (l *rateLimiter) Allow(client string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.history[client][:0]
	for _, ts := range l.history[client] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.limit {
		l.history[client] = recent
		return false
	}
	l.history[client] = append(recent, now)
	return true
}
