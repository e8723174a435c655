package http

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the max requests per key per window
	DefaultRateLimit = 60

	// DefaultRateWindow is the fixed counting window
	DefaultRateWindow = time.Minute

	// sweepInterval is how often expired windows are dropped
	sweepInterval = 5 * time.Minute
)

type rateWindow struct {
	count    int
	resetsAt time.Time
}

// RateLimiter is a fixed-window counter keyed by extension token, falling
// back to client IP for unauthenticated requests
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*rateWindow

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*rateWindow),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go rl.sweep()

	return rl
}

// Close stops the background sweeper
func (rl *RateLimiter) Close() {
	close(rl.stopCh)
	<-rl.doneCh
}

// Allow counts a request for the key. The second return is the seconds
// until the window resets, for the Retry-After header.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetsAt) {
		rl.windows[key] = &rateWindow{count: 1, resetsAt: now.Add(rl.window)}
		return true, 0
	}

	if w.count >= rl.limit {
		retryAfter := int(time.Until(w.resetsAt).Seconds()) + 1
		return false, retryAfter
	}

	w.count++
	return true, 0
}

// Middleware rejects over-limit requests with 429 and a Retry-After
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(extensionTokenHeader)
		if key == "" {
			key = clientIP(r)
		}

		allowed, retryAfter := rl.Allow(key)
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) sweep() {
	defer close(rl.doneCh)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, w := range rl.windows {
				if !now.Before(w.resetsAt) {
					delete(rl.windows, key)
				}
			}
			rl.mu.Unlock()

		case <-rl.stopCh:
			return
		}
	}
}
