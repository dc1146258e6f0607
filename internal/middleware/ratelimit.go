package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type route struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per method+path.
type RateLimiter struct {
	mu     sync.Mutex
	routes map[string]*route
	r      rate.Limit
	burst  int
}

// NewRateLimiter with rps <= 0 never waits.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	r := rate.Limit(rps)
	if rps <= 0 {
		r = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		routes: make(map[string]*route),
		r:      r,
		burst:  burst,
	}
}

// paths carry appointment ids, so prune instead of growing forever
const maxRoutes = 256

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	if c, ok := rl.routes[key]; ok {
		c.seen = now
		return c.lim
	}
	if len(rl.routes) >= maxRoutes {
		for k, c := range rl.routes {
			if now.Sub(c.seen) > 3*time.Minute {
				delete(rl.routes, k)
			}
		}
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.routes[key] = &route{lim: l, seen: now}
	return l
}

// Throttle delays a request until its route has budget. It waits rather than
// failing, and gives up only when the request context ends.
func Throttle(rl *RateLimiter, base http.RoundTripper) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if err := rl.get(r.Method + " " + r.URL.Path).Wait(r.Context()); err != nil {
			return nil, err
		}
		return base.RoundTrip(r)
	})
}
