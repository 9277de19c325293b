/*
Package handler provides the HTTP handlers and routing setup for the Listen Together Server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"listentogether/internal/pkg/auth/jwt"
	"listentogether/internal/pkg/limiter"
	"listentogether/internal/pkg/logx"
	"listentogether/internal/pkg/resp"
)

const (
	ConnectRate  = 0.5
	ConnectBurst = 10
	StatusRate   = 2
	StatusBurst  = 20
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and per-route middleware.
// It requires the room.Manager for session handling and the AppConfig for settings (like allowed origins).
func Router(deps *AppDeps) http.Handler {
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	statusLimiter := limiter.NewIPRateLimiter(rate.Limit(StatusRate), StatusBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			// Native clients do not send an Origin header.
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		logx.Debug("Health check endpoint hit")

		data := map[string]any{
			"status":  "ok",
			"service": "Listen Together Server",
			"rooms":   deps.Manager.RoomCount(),
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Get("/listen", statusLimiter.Middleware(HandleInvite(deps)).ServeHTTP)

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.With(statusLimiter.Middleware).Get("/rooms/{code}", HandleRoomStatus(deps))

		api.Route("/blocks", func(blocks chi.Router) {
			blocks.Use(jwt.RequireSession)

			blocks.Get("/", HandleListBlocks(deps))
			blocks.Post("/", HandleBlockUser(deps))
			blocks.Delete("/{username}", HandleUnblockUser(deps))
		})
	})

	r.Get("/ws", HandleWebSocket(deps, wsUpgrader, connectLimiter))

	return r
}
