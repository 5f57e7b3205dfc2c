package presence

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter rate-limits heartbeats per user.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

// NewLimiter creates a per-user limiter pool.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 5
	}
	return &Limiter{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.m[key]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.m[key] = lim
	return lim
}

// Allow reports whether userID may send another heartbeat now.
func (l *Limiter) Allow(userID string) bool {
	return l.get(userID).Allow()
}

// Forget drops the limiter of a user, e.g. once their last session ends.
func (l *Limiter) Forget(userID string) {
	l.mu.Lock()
	delete(l.m, userID)
	l.mu.Unlock()
}
