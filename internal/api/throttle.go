package api

import (
	"net"
	"net/http"

	"github.com/Priya8975/telltide-relay/internal/ratelimit"
)

// ingestThrottle rejects requests from a client IP that exceeds limit per
// window with 429. RemoteAddr has already been rewritten by RealIP.
func ingestThrottle(limiter *ratelimit.Limiter, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.Context(), clientIP(r), limit) {
				w.Header().Set("Retry-After", "1")
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
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
