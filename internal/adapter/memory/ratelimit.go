package memory

import (
	"context"
	"sync"
	"time"
)

const maxSlots = 10000

// Limiter is a single-process fixed-window attempt counter.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	slots  map[string]*attempts
}

type attempts struct {
	count   int
	resetAt time.Time
}

// NewLimiter allows limit attempts per key every window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{limit: limit, window: window, now: time.Now, slots: make(map[string]*attempts)}
}

// Allow records one attempt for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.slots[key]
	if w == nil || !now.Before(w.resetAt) {
		if len(l.slots) >= maxSlots {
			l.prune(now)
		}
		w = &attempts{resetAt: now.Add(l.window)}
		l.slots[key] = w
	}
	w.count++
	if w.count <= l.limit {
		return true, 0, nil
	}
	return false, w.resetAt.Sub(now), nil
}

func (l *Limiter) prune(now time.Time) {
	for k, w := range l.slots {
		if !now.Before(w.resetAt) {
			delete(l.slots, k)
		}
	}
}
