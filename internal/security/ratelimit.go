package security

import (
	"sync"
	"time"
)

// bucket tracks fixed-window request counting for one user.
type bucket struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// rateLimiter enforces a per-user fixed window with a post-exceed block.
// All state is in-process; per-user atomicity comes from the single mutex.
type rateLimiter struct {
	limit    int
	window   time.Duration
	blockFor time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time // swappable for tests
}

func newRateLimiter(limit int, window, blockFor time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:    limit,
		window:   window,
		blockFor: blockFor,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

// allow records one request for userID and reports whether it is admitted.
// When the limit is exceeded the user is blocked for blockFor; the block
// holds even if the user stops sending requests. Returns the remaining
// block duration on denial.
func (rl *rateLimiter) allow(userID string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[userID]
	if !ok {
		b = &bucket{windowStart: now}
		rl.buckets[userID] = b
	}

	if now.Before(b.blockedUntil) {
		return false, b.blockedUntil.Sub(now)
	}

	if now.Sub(b.windowStart) > rl.window {
		b.count = 0
		b.windowStart = now
		b.blockedUntil = time.Time{}
	}

	b.count++
	if b.count > rl.limit {
		b.blockedUntil = now.Add(rl.blockFor)
		return false, rl.blockFor
	}
	return true, 0
}

// clear drops the bucket for a user (admin escape hatch).
func (rl *rateLimiter) clear(userID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, userID)
}
