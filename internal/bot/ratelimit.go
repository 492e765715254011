package bot

import (
	"sync"

	"golang.org/x/time/rate"
)

// userLimiters keeps one token bucket per user so a flooding account cannot
// starve the update loop for everyone else.
type userLimiters struct {
	mu    sync.Mutex
	m     map[int64]*rate.Limiter
	limit rate.Limit
	burst int
}

func newUserLimiters(limits Limits) *userLimiters {
	if limits.MessagesPerMinute <= 0 {
		limits.MessagesPerMinute = 20
	}
	if limits.Burst <= 0 {
		limits.Burst = 5
	}
	return &userLimiters{
		m:     make(map[int64]*rate.Limiter),
		limit: rate.Limit(float64(limits.MessagesPerMinute) / 60.0),
		burst: limits.Burst,
	}
}

func (l *userLimiters) allow(userID int64) bool {
	l.mu.Lock()
	lim, ok := l.m[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.m[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
