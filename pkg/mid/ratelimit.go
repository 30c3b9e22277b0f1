package mid

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitOpts configures RateLimit.
type RateLimitOpts struct {
	RPS   float64
	Burst int
	// Key groups requests; defaults to the client IP.
	Key func(*http.Request) string
	// IdleTTL drops a key's bucket after this long without requests.
	IdleTTL time.Duration
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

type keyedLimiter struct {
	mu      sync.Mutex
	opts    RateLimitOpts
	buckets map[string]*bucket
	swept   time.Time
	now     func() time.Time
}

func (k *keyedLimiter) allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	if now.Sub(k.swept) > k.opts.IdleTTL {
		for id, b := range k.buckets {
			if now.Sub(b.seen) > k.opts.IdleTTL {
				delete(k.buckets, id)
			}
		}
		k.swept = now
	}

	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(k.opts.RPS), k.opts.Burst)}
		k.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// RateLimit returns middleware that applies a token bucket per client and
// answers 429 once it is drained. RPS <= 0 disables limiting.
func RateLimit(opts RateLimitOpts) Middleware {
	if opts.RPS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.Burst <= 0 {
		opts.Burst = int(opts.RPS) + 1
	}
	if opts.Key == nil {
		opts.Key = clientIP
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 5 * time.Minute
	}
	kl := &keyedLimiter{opts: opts, buckets: make(map[string]*bucket), now: time.Now}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions && !kl.allow(opts.Key(r)) {
				w.Header().Set("Retry-After", "1")
				WriteJSON(w, http.StatusTooManyRequests, map[string]string{"message": "Too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
