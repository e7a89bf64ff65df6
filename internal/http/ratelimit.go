package http

import (
	"sync"
	"time"
)

const (
	loginAttemptsPerMinute = 10
	loginWindow            = time.Minute
)

// rateLimiter allows at most limit hits per key in each fixed window.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]bucket

	done     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	opened time.Time
	hits   int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]bucket),
		done:    make(chan struct{}),
	}
	go rl.sweep(5 * window)
	return rl
}

// sweep drops expired buckets until stop is called.
func (rl *rateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.forgetExpired()
		}
	}
}

func (rl *rateLimiter) forgetExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.opened) > rl.window {
			delete(rl.buckets, key)
		}
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.opened) > rl.window {
		b = bucket{opened: now}
	}
	b.hits++
	rl.buckets[key] = b
	return b.hits <= rl.limit
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// userLocks serialises requests of the same user so that a read-modify-write
// of their ledger never interleaves with another.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *userLocks) lock(user string) func() {
	l.mu.Lock()
	m, ok := l.locks[user]
	if !ok {
		m = &sync.Mutex{}
		l.locks[user] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
