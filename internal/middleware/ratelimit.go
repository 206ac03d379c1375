package middleware

import (
	"log"
	"net"
	"net/http"

	"github.com/albocarride/server/internal/ratelimit"
)

// RateLimitMiddleware rejects requests whose key exceeded the limiter's budget
func RateLimitMiddleware(limiter ratelimit.Limiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), keyFunc(r))
			if err != nil {
				log.Printf("rate limiter error: %v", err)
				allowed = true
			}
			if !allowed {
				respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetIPKey extracts the client IP for rate limiting. RemoteAddr is already
// rewritten by chi's RealIP middleware when proxy headers are present.
func GetIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
