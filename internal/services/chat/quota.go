// File: internal/services/chat/quota.go
package chat

// GuestLocked is the guest quota policy: a pure predicate over the
// authentication state and the count of user-authored turns in the active
// session. It holds no state of its own and is recomputed whenever either
// input changes.
func GuestLocked(authenticated bool, userTurns, limit int) bool {
	if authenticated {
		return false
	}
	return userTurns >= limit
}
