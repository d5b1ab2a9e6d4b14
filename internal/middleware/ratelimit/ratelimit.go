// Package ratelimit throttles mutating requests per client with a fixed
// window. Routes are grouped into classes so a bulk import does not spend
// the budget of single-entry writes.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Class names a group of routes that share one budget per client.
type Class string

const (
	ClassWrite  Class = "write"
	ClassImport Class = "import"
)

// Config holds rate limiter configuration. Limits is the number of requests
// a client may make per Window in each class; classes without an entry use
// the ClassWrite limit.
type Config struct {
	Window          time.Duration
	Limits          map[Class]int
	CleanupInterval time.Duration
}

// DefaultConfig allows 60 writes and 6 imports per minute.
func DefaultConfig() Config {
	return Config{
		Window: time.Minute,
		Limits: map[Class]int{
			ClassWrite:  60,
			ClassImport: 6,
		},
		CleanupInterval: 5 * time.Minute,
	}
}

type bucketKey struct {
	class  Class
	client string
}

type bucket struct {
	start time.Time
	count int
}

// Limiter counts requests per class and client.
type Limiter struct {
	mu           sync.Mutex
	buckets      map[bucketKey]*bucket
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	window          time.Duration
	limits          map[Class]int
	cleanupInterval time.Duration
	now             func() time.Time
}

// NewLimiter creates a limiter and starts its cleanup goroutine. Zero or
// negative settings fall back to DefaultConfig.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	limits := make(map[Class]int, len(def.Limits))
	for class, n := range def.Limits {
		limits[class] = n
	}
	for class, n := range config.Limits {
		if n > 0 {
			limits[class] = n
		}
	}

	rl := &Limiter{
		buckets:         make(map[bucketKey]*bucket),
		stopCleanup:     make(chan struct{}),
		window:          config.Window,
		limits:          limits,
		cleanupInterval: config.CleanupInterval,
		now:             time.Now,
	}
	go rl.startCleanup()
	return rl
}

// Limit returns the per-window budget of class.
func (rl *Limiter) Limit(class Class) int {
	if n, ok := rl.limits[class]; ok {
		return n
	}
	return rl.limits[ClassWrite]
}

// Allow records a request from client in class. When the budget is spent it
// returns false and the time left until the client's window resets.
func (rl *Limiter) Allow(class Class, client string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	key := bucketKey{class: class, client: client}
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.start) >= rl.window {
		rl.buckets[key] = &bucket{start: now, count: 1}
		return true, 0
	}
	if b.count >= rl.Limit(class) {
		return false, b.start.Add(rl.window).Sub(now)
	}
	b.count++
	return true, 0
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupExpired()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupExpired drops buckets whose window has ended.
func (rl *Limiter) cleanupExpired() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, b := range rl.buckets {
		if now.Sub(b.start) >= rl.window {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of tracked class and client pairs.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Stop shuts down the cleanup goroutine. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// RetryAfter formats d as a Retry-After value in whole seconds, rounded up
// and never below one.
func RetryAfter(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// Middleware limits requests in class. Limited requests get a Retry-After
// header and are passed to onLimit, or answered with a plain 429 when
// onLimit is nil.
func (rl *Limiter) Middleware(class Class, extractIP func(*http.Request) string, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := rl.Allow(class, extractIP(r))
			if !ok {
				w.Header().Set("Retry-After", RetryAfter(wait))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
