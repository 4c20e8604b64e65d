// File: internal/middleware/logger.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDFrom returns the short request id assigned by LoggingMiddleware,
// empty when the request never passed through it.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// LoggingMiddleware logs incoming HTTP request & response details, tagging
// each request with a short id for correlating streamed-turn log lines.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()[:8]

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))

		log.Printf(
			"Request: %s %s from %s | ID: %s | Duration: %v",
			r.Method,
			r.RequestURI,
			r.RemoteAddr,
			requestID,
			time.Since(start),
		)
	})
}
