// File: internal/middleware/recovery.go
package middleware

import (
	"log"
	"net/http"
	"runtime/debug"
)

// RecoverPanic converts handler panics into a 500, tagged with the request id
// so the crash correlates with the request log line.
func RecoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] ID: %s | %s %s | %v\n%s",
					RequestIDFrom(r.Context()), r.Method, r.RequestURI, err, debug.Stack())
				w.Header().Set("Connection", "close")
				http.Error(w, "Something went wrong on our end.", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
