package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// IPRateLimitConfig holds per-IP request limiting configuration
type IPRateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultLoginRateLimit returns the burst limit applied to the login
// endpoint in front of the per-IP failure throttle (10 requests per minute).
func DefaultLoginRateLimit() IPRateLimitConfig {
	return IPRateLimitConfig{
		RequestsPerMinute: 10,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config IPRateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Too many requests"}`))
		}),
	)
}
