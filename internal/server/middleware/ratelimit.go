package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"auth-control-plane/internal/server/respond"
	"auth-control-plane/internal/telemetry"
	"auth-control-plane/internal/telemetry/domain"
)

// RateLimiter implements per-client-IP rate limiting.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rps      rate.Limit
	burst    int
}

// NewRateLimiter returns a limiter allowing rps requests per second with the given burst per client IP.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[ip]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		limiter, exists = rl.limiters[ip]
		if !exists {
			limiter = rate.NewLimiter(rl.rps, rl.burst)
			rl.limiters[ip] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// Middleware enforces the rate limit. Health endpoints are exempt. Rejections answer 429
// and emit a rate_limited security event when emitter is non-nil.
func (rl *RateLimiter) Middleware(emitter telemetry.EventEmitter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/healthz") {
				next.ServeHTTP(w, r)
				return
			}
			ip := ClientIP(r.Context())
			if !rl.getLimiter(ip).Allow() {
				if emitter != nil {
					meta, _ := json.Marshal(map[string]string{"path": r.URL.Path, "client_ip": ip})
					telemetry.EmitAsync(emitter, r.Context(), &domain.SecurityEvent{
						EventType: domain.EventRateLimited,
						Source:    "http",
						Metadata:  meta,
					})
				}
				respond.Error(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
