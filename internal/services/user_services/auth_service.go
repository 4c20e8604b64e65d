// File: internal/services/user_services/auth_service.go
package user_services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/repository/user"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// AuthService authenticates accounts and issues the session tokens the
// identity middleware validates. Each account's chat history is keyed by the
// identity derived from its username.
type AuthService struct {
	userRepo     user.UserRepository
	jwtSecretKey string
	logger       Logger
}

func NewAuthService(userRepo user.UserRepository, jwtSecretKey string, logger Logger) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		logger:       logger,
	}
}

// Login authenticates a user and returns a JWT token
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, error) {
	if username == "" || password == "" {
		s.logger.Warn("login attempt with empty credentials",
			"has_username", username != "",
			"has_password", password != "")
		return nil, "", errors.New("username and password are required")
	}

	s.logger.Info("user login attempt",
		"username", username[:min(4, len(username))]+"****")

	account, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		s.logger.Warn("login failed - user not found",
			"username", username[:min(4, len(username))]+"****")
		return nil, "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("login failed - invalid password",
			"username", username[:min(4, len(username))]+"****",
			"user_id", account.ID)
		return nil, "", errors.New("invalid credentials")
	}

	token, err := s.generateJWTToken(account)
	if err != nil {
		s.logger.Error("JWT token generation failed",
			"error", err,
			"user_id", account.ID)
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("login successful",
		"username", username[:min(4, len(username))]+"****",
		"user_id", account.ID)

	return account, token, nil
}

// Register creates an account after validating the credentials.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	if err := s.validateRegistrationInput(username, password); err != nil {
		s.logger.Warn("registration validation failed",
			"username", username[:min(4, len(username))]+"****",
			"error", err.Error())
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	s.logger.Info("user registration attempt",
		"username", username[:min(4, len(username))]+"****")

	if existing, err := s.userRepo.FindByUsername(ctx, username); err == nil && existing != nil {
		s.logger.Warn("registration failed - username already exists",
			"username", username[:min(4, len(username))]+"****",
			"existing_user_id", existing.ID)
		return nil, user.ErrUsernameTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("password hashing failed",
			"error", err,
			"username", username[:min(4, len(username))]+"****")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
	}

	created, err := s.userRepo.Create(ctx, account)
	if err != nil {
		s.logger.Error("user creation failed",
			"error", err,
			"username", username[:min(4, len(username))]+"****")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered successfully",
		"username", username[:min(4, len(username))]+"****",
		"user_id", created.ID)

	return created, nil
}

func (s *AuthService) validateRegistrationInput(username, password string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username validation: username must be 3-20 characters, alphanumeric or underscore")
	}
	if len(password) < 8 {
		return fmt.Errorf("password validation: password must be at least 8 characters")
	}
	return nil
}

// ValidateJWTToken validates a JWT token and returns the subject username.
func (s *AuthService) ValidateJWTToken(tokenString string) (string, error) {
	if tokenString == "" {
		s.logger.Warn("JWT validation attempted with empty token")
		return "", errors.New("empty token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Warn("JWT token with invalid signing method",
				"method", token.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecretKey), nil
	})

	if err != nil {
		s.logger.Warn("JWT token validation failed", "error", err)
		return "", fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		username, ok := claims["sub"].(string)
		if !ok || username == "" {
			s.logger.Warn("JWT token missing subject claim")
			return "", errors.New("invalid token claims")
		}
		return username, nil
	}

	s.logger.Warn("JWT token validation failed - invalid claims")
	return "", errors.New("invalid token")
}

// generateJWTToken creates a JWT token for the user
func (s *AuthService) generateJWTToken(account *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":     account.Username,
		"user_id": account.ID,
		"exp":     time.Now().Add(time.Hour * 24 * 7).Unix(), // 7 days
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecretKey))
	if err != nil {
		return "", err
	}

	s.logger.Debug("JWT token generated",
		"user_id", account.ID,
		"expires_in", "7 days")

	return tokenString, nil
}
