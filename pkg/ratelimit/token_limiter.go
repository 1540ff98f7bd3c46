package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter enforces a per-minute token budget for AI providers whose
// quotas are expressed in tokens rather than requests. The window resets a
// minute after the first consumption in that window.
type TokenLimiter struct {
	mu        sync.Mutex
	limit     int
	used      int
	windowEnd time.Time
}

// NewTokenLimiter creates a limiter with the given tokens-per-minute budget.
func NewTokenLimiter(limitPerMinute int) *TokenLimiter {
	return &TokenLimiter{limit: limitPerMinute}
}

// GetRemaining returns the tokens left in the current window.
func (l *TokenLimiter) GetRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refresh(time.Now())
	return l.limit - l.used
}

// Wait blocks until n tokens are available or the context is cancelled.
func (l *TokenLimiter) Wait(ctx context.Context, n int) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.refresh(now)
		if l.used+n <= l.limit || n > l.limit {
			// Requests larger than the whole budget are admitted alone
			// rather than blocking forever.
			l.used += n
			l.mu.Unlock()
			return nil
		}
		wait := time.Until(l.windowEnd)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *TokenLimiter) refresh(now time.Time) {
	if l.windowEnd.IsZero() || now.After(l.windowEnd) {
		l.used = 0
		l.windowEnd = now.Add(time.Minute)
	}
}
