package httpx

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 5 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter applies one token bucket per client address.
// Idle buckets are swept in the background until Stop is called.
type ClientRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	limit   rate.Limit
	burst   int

	done     chan struct{}
	stopOnce sync.Once
}

func NewClientRateLimiter(rps float64, burst int) *ClientRateLimiter {
	rl := &ClientRateLimiter{
		buckets: make(map[string]*clientBucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		done:    make(chan struct{}),
	}
	go rl.sweep(limiterIdleTTL)
	return rl
}

func (rl *ClientRateLimiter) sweep(ttl time.Duration) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.evictIdle(now, ttl)
		}
	}
}

func (rl *ClientRateLimiter) evictIdle(now time.Time, ttl time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > ttl {
			delete(rl.buckets, key)
		}
	}
}

// Stop ends the background sweep.
func (rl *ClientRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// reserve takes a token for key and reports how long the caller must wait if
// none is available.
func (rl *ClientRateLimiter) reserve(key string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *ClientRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.reserve(clientKey(r), time.Now())
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			JSONError(w, r, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the peer address. Forwarding headers are only honoured once a
// trusted proxy setup has rewritten RemoteAddr (chi's RealIP).
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
