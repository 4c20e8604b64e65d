// File: internal/middleware/constants.go
package middleware

// Context keys for middleware communication
type contextKey string

const (
	IdentityKey  contextKey = "identity"
	UsernameKey  contextKey = "username"
	RequestIDKey contextKey = "request_id"
)

// AuthCookieName is the cookie the session token travels in.
const AuthCookieName = "auth_token"
