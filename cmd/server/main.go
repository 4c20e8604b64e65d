// File: cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/lunahq/luna/internal/config"
	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/handlers"
	"github.com/lunahq/luna/internal/middleware"
	"github.com/lunahq/luna/internal/ratelimit"
	"github.com/lunahq/luna/internal/repository/history"
	personarepo "github.com/lunahq/luna/internal/repository/persona"
	userrepo "github.com/lunahq/luna/internal/repository/user"
	"github.com/lunahq/luna/internal/services"
	"github.com/lunahq/luna/internal/services/persona"
	"github.com/lunahq/luna/internal/services/user_services"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg := config.Load()

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Fatalf("DB Error: %v", err)
	}

	if err := db.AutoMigrate(&domain.User{}, &history.HistoryRecord{}, &domain.Persona{}, &domain.ActivePersona{}); err != nil {
		log.Fatalf("DB Migration Error: %v", err)
	}

	// --- Repositories ---
	userRepo := userrepo.NewUserRepository(db)
	historyRepo := history.NewHistoryRepository(db)
	personaRepo := personarepo.NewPersonaRepository(db)

	// --- Services ---
	// A failed remote-client setup is not fatal: the orchestrator surfaces
	// it as an assistant message on every send for the process lifetime.
	aiService, setupErr := services.NewAIService(cfg)
	if setupErr != nil {
		log.Printf("WARNING: AI service unavailable: %v", setupErr)
	}

	authService := user_services.NewAuthService(userRepo, cfg.JWTSecretKey, services.NewLogger("auth"))
	personaService := persona.NewService(personaRepo, services.NewLogger("persona"))
	chatService := services.NewChatService(cfg, historyRepo, aiService, setupErr, personaService)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService, chatService)
	chatHandler := handlers.NewChatHandler(chatService)
	personaHandler := handlers.NewPersonaHandler(personaService)
	exportHandler := handlers.NewExportHandler(chatService)

	// --- Rate Limiters ---
	authLimiter := ratelimit.NewMemoryRateLimiter(ratelimit.DefaultAuthConfig())
	chatLimiter := ratelimit.NewMemoryRateLimiter(ratelimit.ChatConfig())
	defer authLimiter.Close()
	defer chatLimiter.Close()

	// --- Router Setup ---
	r := mux.NewRouter()
	identityMiddleware := middleware.NewIdentityMiddleware(authService)

	r.Use(corsMiddleware)
	r.Use(middleware.RecoverPanic)
	r.Use(middleware.LoggingMiddleware)
	r.Use(identityMiddleware)

	// --- Public Routes ---
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("OK")) }).Methods("GET")

	authRoutes := r.PathPrefix("/api/auth").Subrouter()
	authRoutes.Use(middleware.RateLimitMiddleware(authLimiter, "auth"))
	authRoutes.Use(middleware.AuthSuccessMiddleware(authLimiter, "auth"))
	authRoutes.HandleFunc("/register", authHandler.Register).Methods("POST")
	authRoutes.HandleFunc("/login", authHandler.Login).Methods("POST")
	authRoutes.HandleFunc("/logout", authHandler.Logout).Methods("POST")
	r.HandleFunc("/api/auth/me", authHandler.Me).Methods("GET")

	// --- Chat Routes (guests allowed, quota enforced in the service) ---
	api := r.PathPrefix("/api/chat").Subrouter()
	api.HandleFunc("/messages", chatHandler.GetMessages).Methods("GET")
	api.HandleFunc("/history", chatHandler.GetHistory).Methods("GET")
	api.HandleFunc("/new", chatHandler.NewChat).Methods("POST")
	api.HandleFunc("/switch/{id}", chatHandler.SwitchChat).Methods("POST")
	api.HandleFunc("/stop", chatHandler.StopGeneration).Methods("POST")
	api.HandleFunc("/{id}/export", exportHandler.ExportChat).Methods("GET")
	api.HandleFunc("/{id}", chatHandler.DeleteChat).Methods("DELETE")

	sendRoutes := r.PathPrefix("/api/chat").Subrouter()
	sendRoutes.Use(middleware.RateLimitMiddleware(chatLimiter, "chat"))
	sendRoutes.HandleFunc("/send", chatHandler.SendMessage).Methods("POST")
	sendRoutes.HandleFunc("/regenerate", chatHandler.Regenerate).Methods("POST")
	sendRoutes.HandleFunc("/study", chatHandler.StudyTopic).Methods("POST")
	sendRoutes.HandleFunc("/code", chatHandler.CodeAssistant).Methods("POST")
	sendRoutes.HandleFunc("/debug", chatHandler.DebugSession).Methods("POST")
	sendRoutes.HandleFunc("/actions/image", chatHandler.GenerateImage).Methods("POST")
	sendRoutes.HandleFunc("/actions/image-edit", chatHandler.EditImage).Methods("POST")
	sendRoutes.HandleFunc("/actions/video", chatHandler.GenerateVideo).Methods("POST")
	sendRoutes.HandleFunc("/actions/search", chatHandler.SearchQuery).Methods("POST")

	// --- Persona Routes (account-scoped) ---
	personaRoutes := r.PathPrefix("/api/personas").Subrouter()
	personaRoutes.Use(middleware.RequireAuth)
	personaRoutes.HandleFunc("", personaHandler.List).Methods("GET")
	personaRoutes.HandleFunc("", personaHandler.Create).Methods("POST")
	personaRoutes.HandleFunc("/activate", personaHandler.Activate).Methods("POST")
	personaRoutes.HandleFunc("/{id}", personaHandler.Update).Methods("PUT")
	personaRoutes.HandleFunc("/{id}", personaHandler.Delete).Methods("DELETE")

	// --- Server Configuration ---
	port := ":8081"
	if cfg.ServerPort != "" {
		port = ":" + cfg.ServerPort
	}
	srv := &http.Server{
		Addr:    port,
		Handler: r,
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("==================================================")
	log.Printf("Luna - Chat Session Orchestrator")
	log.Printf("==================================================")
	log.Printf("Server starting on port %s", port)
	log.Printf("Local access: http://localhost%s", port)
	log.Printf("Server ready to accept connections!")
	log.Printf("==================================================")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped gracefully")
}
