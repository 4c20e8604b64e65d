// File: internal/handlers/auth_handlers.go
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/middleware"
	"github.com/lunahq/luna/internal/repository/user"
	"github.com/lunahq/luna/internal/services"
	"github.com/lunahq/luna/internal/services/user_services"
)

// AuthHandler holds the dependencies for authentication handlers.
type AuthHandler struct {
	AuthService *user_services.AuthService
	ChatService *services.ChatService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *user_services.AuthService, chatService *services.ChatService) *AuthHandler {
	return &AuthHandler{AuthService: authService, ChatService: chatService}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles new user registrations.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)

	created, err := h.AuthService.Register(r.Context(), username, password)
	if err != nil {
		log.Printf("Registration error: %v", err)
		status := http.StatusBadRequest
		if errors.Is(err, user.ErrUsernameTaken) {
			status = http.StatusConflict
		}
		writeError(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"username": created.Username,
	})
}

// Login validates credentials and sets the auth cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	account, token, err := h.AuthService.Login(r.Context(), strings.TrimSpace(req.Username), strings.TrimSpace(req.Password))
	if err != nil {
		log.Printf("Login error: %v", err)
		writeError(w, "Invalid username or password.", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		Expires:  time.Now().Add(7 * 24 * time.Hour),
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	// Warm the user's history so the next request sees the right active chat.
	history := h.ChatService.Bootstrap(r.Context(), domain.IdentityKey(account.Username))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"username":     account.Username,
		"activeChatId": history.ActiveChatID,
	})
}

// Logout clears the auth cookie and re-bootstraps the guest history.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	h.ChatService.Bootstrap(r.Context(), domain.GuestIdentity)
	w.WriteHeader(http.StatusNoContent)
}

// Me reports the authenticated username, empty for guests.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"username": middleware.UsernameFrom(r.Context()),
		"identity": middleware.IdentityFrom(r.Context()),
	})
}
