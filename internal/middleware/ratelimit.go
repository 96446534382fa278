package middleware

import (
	"net/http"
	"sync"
	"time"

	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/httputil"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// CallerRateLimiter is the per-caller (by source identity, typically IP)
// sliding-window limiter from spec.md §4.3: default 100 requests/minute.
type CallerRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewCallerRateLimiter builds a limiter admitting perMinute requests per
// caller, with a burst equal to perMinute (permits an initial burst up to
// the per-minute budget, matching the teacher's per-key limiter shape).
func NewCallerRateLimiter(perMinute int) *CallerRateLimiter {
	return &CallerRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (rl *CallerRateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// Cleanup drops limiters whose token bucket is fully replenished, bounding
// memory growth from callers that are no longer active.
func (rl *CallerRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, l := range rl.limiters {
		if l.Tokens() >= float64(rl.burst) {
			delete(rl.limiters, key)
		}
	}
}

// StartCleanup runs Cleanup on a ticker until stop is closed.
func (rl *CallerRateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}

// Handler enforces the per-caller limit, responding 429 with Retry-After
// when exhausted.
func (rl *CallerRateLimiter) Handler() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)
			if !rl.limiterFor(key).Allow() {
				httputil.WriteError(w, svcerrors.RateLimited(1))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
