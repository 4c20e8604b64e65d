// File: internal/repository/user/interface.go
package user

import (
	"context"

	"github.com/lunahq/luna/internal/domain"
)

// UserRepository handles account records for the identity collaborator.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID uint, hash string) error
	Delete(ctx context.Context, userID uint) error
}
