// File: internal/middleware/identity.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/services/user_services"
)

// NewIdentityMiddleware resolves the request's identity key from the auth
// cookie. An absent or invalid token falls back to the shared guest
// identity rather than rejecting the request: unauthenticated chat is a
// supported mode, just quota-limited.
func NewIdentityMiddleware(authService *user_services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := domain.GuestIdentity
			username := ""

			if cookie, err := r.Cookie(AuthCookieName); err == nil {
				name, err := authService.ValidateJWTToken(cookie.Value)
				if err != nil {
					log.Printf("[IdentityMiddleware] Invalid token, continuing as guest: %v", err)
					clearAuthCookie(w)
				} else {
					username = name
					identity = domain.IdentityKey(name)
				}
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			ctx = context.WithValue(ctx, UsernameKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that resolved to the guest identity. Used on
// account-scoped endpoints such as persona management.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()) == domain.GuestIdentity {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFrom reads the resolved identity key, defaulting to guest.
func IdentityFrom(ctx context.Context) string {
	if identity, ok := ctx.Value(IdentityKey).(string); ok && identity != "" {
		return identity
	}
	return domain.GuestIdentity
}

// UsernameFrom reads the authenticated username, empty for guests.
func UsernameFrom(ctx context.Context) string {
	username, _ := ctx.Value(UsernameKey).(string)
	return username
}

func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
