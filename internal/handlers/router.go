package handlers

import (
	"compare-app/internal/app"
	"compare-app/internal/auth"
	"compare-app/internal/service/compare"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the full HTTP surface: public auth and health routes,
// then the authenticated chat and compare API.
func NewRouter(cfg *app.Config, compareService *compare.Service) chi.Router {
	authHandlers := auth.NewHandlers(cfg.DB, cfg.AppConfig.Auth)
	chatHandlers := NewChatHandlers(cfg)
	compareHandlers := NewCompareHandlers(cfg, compareService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// Public routes
	r.Post("/api/auth/register", authHandlers.RegisterHandler)
	r.Post("/api/auth/login", authHandlers.LoginHandler)
	r.Get("/api/health", HealthHandler)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(authHandlers.Middleware)

		r.Get("/api/models", chatHandlers.GetModelsHandler)

		r.Post("/api/chats", chatHandlers.CreateChatHandler)
		r.Get("/api/chats", chatHandlers.ListChatsHandler)
		r.Get("/api/chats/{id}/messages", chatHandlers.GetChatMessagesHandler)
		r.Delete("/api/chats/{id}", chatHandlers.DeleteChatHandler)

		r.Post("/api/compare/stream", compareHandlers.StreamHandler)
		r.Post("/api/compare/cancel", compareHandlers.CancelHandler)
		r.Get("/api/compare/runs", compareHandlers.ListRunsHandler)
		r.Get("/api/compare/runs/{id}", compareHandlers.GetRunHandler)
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
