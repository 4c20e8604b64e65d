// File: internal/repository/user/gorm_user_repository.go
package user

import (
	"context"
	"errors"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/lunahq/luna/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")
var ErrUsernameTaken = errors.New("username is already taken")

type gormUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	if u == nil || strings.TrimSpace(u.Username) == "" {
		return nil, errors.New("username is required")
	}

	err := r.db.WithContext(ctx).Create(u).Error
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, ErrUsernameTaken
		}
		log.Printf("[UserRepository] Database error creating user %q: %v", u.Username, err)
		return nil, errors.New("database error creating user")
	}
	return u, nil
}

func (r *gormUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, errors.New("invalid username")
	}

	var u domain.User
	err := r.db.WithContext(ctx).First(&u, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		log.Printf("[UserRepository] Database error finding user %q: %v", username, err)
		return nil, errors.New("database query failed")
	}
	return &u, nil
}

func (r *gormUserRepository) UpdatePasswordHash(ctx context.Context, userID uint, hash string) error {
	if userID == 0 || hash == "" {
		return errors.New("invalid user ID or hash")
	}

	result := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash)
	if result.Error != nil {
		log.Printf("[UserRepository] Database error updating password for user ID %d: %v", userID, result.Error)
		return errors.New("database error updating password")
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *gormUserRepository) Delete(ctx context.Context, userID uint) error {
	if userID == 0 {
		return errors.New("invalid user ID")
	}
	if err := r.db.WithContext(ctx).Delete(&domain.User{}, userID).Error; err != nil {
		log.Printf("[UserRepository] Database error deleting user ID %d: %v", userID, err)
		return errors.New("database error deleting user")
	}
	return nil
}
