// File: internal/domain/persona.go
package domain

import "time"

// Persona is a user-defined system instruction selectable per conversation.
type Persona struct {
	ID        string `gorm:"primarykey" json:"id"`
	Identity  string `gorm:"index;not null" json:"-"` // owning identity key
	Name      string `gorm:"not null" json:"name"`
	Prompt    string `gorm:"not null" json:"prompt"`
	CreatedAt time.Time
}

// ActivePersona records which persona an identity has selected, if any.
type ActivePersona struct {
	Identity  string `gorm:"primarykey"`
	PersonaID string `gorm:"not null"`
	UpdatedAt time.Time
}
