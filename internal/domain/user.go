// File: internal/domain/user.go
package domain

import "time"

// User is an account record. Credential handling lives in the identity
// collaborator; the orchestrator only ever sees the identity key.
type User struct {
	ID           uint   `gorm:"primarykey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GuestIdentity is the shared identity key for unauthenticated usage.
const GuestIdentity = "guest"

// IdentityKey derives the identity key a user's chat data is stored under.
func IdentityKey(username string) string {
	if username == "" {
		return GuestIdentity
	}
	return "user:" + username
}
