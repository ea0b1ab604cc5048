package api

import (
	"net/http"
	"time"

	"concierge-backend/internal/config"
	"concierge-backend/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	ChatHandler  *handlers.ChatHandlers
	AdminHandler *handlers.AdminHandlers
	Config       *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	if deps.ChatHandler == nil {
		panic("ChatHandler dependency is nil in router setup")
	}
	cfg := deps.Config

	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	sendLimiter := NewRateLimiter(cfg.SendRatePerMinute)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/prompts", deps.ChatHandler.HandleListPrompts)
		r.With(sendLimiter.Middleware).Post("/chats", deps.ChatHandler.HandleCreateChat)

		// --- Chat Routes (chat or admin token) ---
		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Use(JwtAuthMiddleware(cfg.JWTSecret))
			r.Use(RequireChatAccess)
			r.Get("/", deps.ChatHandler.HandleGetChat)
			r.With(sendLimiter.Middleware).Post("/messages", deps.ChatHandler.HandleSendMessage)
		})

		// --- Admin Routes ---
		if deps.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Post("/login", deps.AdminHandler.HandleLogin)
				r.Group(func(r chi.Router) {
					r.Use(JwtAuthMiddleware(cfg.JWTSecret))
					r.Use(RequireAdmin)
					r.Get("/chats", deps.AdminHandler.HandleListChats)
				})
			})
		} else {
			log.Warn().Msg("AdminHandler dependency is nil, skipping /v1/admin routes")
		}
	})

	return r
}
