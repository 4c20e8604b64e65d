// File: internal/services/chat/quota_test.go
package chat

import "testing"

func TestGuestLocked(t *testing.T) {
	tests := []struct {
		name          string
		authenticated bool
		userTurns     int
		limit         int
		want          bool
	}{
		{"guest under limit", false, 0, 5, false},
		{"guest one below limit", false, 4, 5, false},
		{"guest at limit", false, 5, 5, true},
		{"guest over limit", false, 9, 5, true},
		{"authenticated at limit", true, 5, 5, false},
		{"authenticated far over", true, 100, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GuestLocked(tt.authenticated, tt.userTurns, tt.limit); got != tt.want {
				t.Errorf("GuestLocked(%v, %d, %d) = %v, want %v",
					tt.authenticated, tt.userTurns, tt.limit, got, tt.want)
			}
		})
	}
}
