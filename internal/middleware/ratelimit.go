// File: internal/middleware/ratelimit.go
package middleware

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/lunahq/luna/internal/ratelimit"
)

// RateLimitMiddleware creates a rate limiting middleware
func RateLimitMiddleware(limiter *ratelimit.MemoryRateLimiter, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ratelimit.GetClientIP(r)

			allowed, info := limiter.Allow(clientIP)

			limit := info.Remaining
			if info.Allowed {
				limit++
			}
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))

			if !allowed {
				statusMsg := "RATE LIMITED"
				if info.Banned {
					statusMsg = "BANNED"
				}
				log.Printf("[RateLimit] Blocked %s request from %s - %s", name, clientIP, statusMsg)

				if info.RetryAfter > 0 {
					w.Header().Set("Retry-After", fmt.Sprintf("%.0f", info.RetryAfter.Seconds()))
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorMsg := "Too many attempts. Please try again later."
				if info.Banned {
					errorMsg = fmt.Sprintf("Too many requests. Temporarily blocked, try again in %d minutes.",
						int(info.RetryAfter.Minutes()))
				}

				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      errorMsg,
					"retryAfter": int(info.RetryAfter.Seconds()),
					"banned":     info.Banned,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthSuccessMiddleware resets an IP's attempt counter after a successful
// authentication response.
func AuthSuccessMiddleware(limiter *ratelimit.MemoryRateLimiter, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			if wrapper.statusCode >= 200 && wrapper.statusCode < 300 {
				clientIP := ratelimit.GetClientIP(r)
				limiter.RecordSuccess(clientIP)
				log.Printf("[RateLimit] Reset attempts for %s from %s (successful auth)", name, clientIP)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
