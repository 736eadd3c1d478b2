package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vedaai/veda-backend/app"
	"github.com/vedaai/veda-backend/auth"
	"github.com/vedaai/veda-backend/handlers"
	"github.com/vedaai/veda-backend/middleware"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/utils"
	"go.uber.org/zap"
)

const (
	serviceName    = "veda-backend"
	defaultTimeout = 60 * time.Second
)

// Version is set at build time
var Version = "dev"

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout(deps)))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(deps),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := newHealthHandler(deps, logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	authMW := deps.AuthMiddleware
	if authMW == nil {
		logger.Warn("auth not configured, protected routes will reject every request")
		authMW = middleware.NewAuthMiddleware(rejectAllValidator{}, nil, logger)
	}

	userHandler := handlers.NewUserHandler(deps.Users, authMW.Forget, logger)
	chatHandler := handlers.NewChatHandler(deps.Chats, logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/status", health.HandleStatus)

		r.Route("/users/me", func(r chi.Router) {
			r.Use(authMW.RequireAuth)

			// Provisioning only needs a valid token
			r.Post("/", userHandler.HandleProvision)

			r.Group(func(r chi.Router) {
				r.Use(authMW.EnsureUser)
				r.Get("/", userHandler.HandleGetMe)
				r.Patch("/", userHandler.HandleUpdateMe)
				r.Delete("/", userHandler.HandleDeleteMe)
				r.Get("/settings", userHandler.HandleGetSettings)
				r.Patch("/settings", userHandler.HandleUpdateSettings)
			})
		})

		r.Route("/chats", func(r chi.Router) {
			r.Use(authMW.RequireAuth)
			r.Use(authMW.EnsureUser)
			r.Get("/", chatHandler.HandleListChats)
			r.Post("/", chatHandler.HandleCreateChat)
			r.Get("/{id}", chatHandler.HandleGetChat)
			r.Patch("/{id}", chatHandler.HandleUpdateChat)
			r.Delete("/{id}", chatHandler.HandleDeleteChat)
			r.Get("/{id}/messages", chatHandler.HandleListMessages)
			r.Post("/{id}/messages", chatHandler.HandleSendMessage)
		})

		if deps.Router != nil {
			routingHandler := handlers.NewRoutingHandler(deps.Router, logger)
			r.Route("/routing", func(r chi.Router) {
				r.Use(authMW.RequireAuth)
				r.Get("/table", routingHandler.HandleTable)
				r.Post("/resolve", routingHandler.HandleResolve)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

func newHealthHandler(deps *app.Dependencies, logger *zap.Logger) *handlers.HealthHandler {
	var db handlers.DatabaseChecker
	if deps.DB != nil {
		db = deps.DB
	}
	var lister handlers.ProviderLister
	if deps.Providers != nil {
		lister = deps.Providers
	}

	status := handlers.StatusResponse{
		Service:           serviceName,
		Version:           Version,
		DailyMessageLimit: models.DefaultDailyMessageLimit,
	}
	if deps.Config != nil {
		status.Environment = deps.Config.Environment
		if deps.Config.Quota.DefaultDailyLimit > 0 {
			status.DailyMessageLimit = deps.Config.Quota.DefaultDailyLimit
		}
	}
	if deps.Router != nil {
		for _, task := range deps.Router.Table().Tasks() {
			status.Tasks = append(status.Tasks, string(task))
		}
	}

	return handlers.NewHealthHandler(db, lister, status, logger)
}

// requestTimeout leaves a little of the server write timeout for the error response
func requestTimeout(deps *app.Dependencies) time.Duration {
	if deps.Config == nil || deps.Config.Server.WriteTimeout <= 0 {
		return defaultTimeout
	}
	if t := deps.Config.Server.WriteTimeout - time.Second; t > 0 {
		return t
	}
	return deps.Config.Server.WriteTimeout
}

func allowedOrigins(deps *app.Dependencies) []string {
	if deps.Config == nil || len(deps.Config.Server.AllowedOrigins) == 0 {
		return []string{"http://localhost:*"}
	}
	return deps.Config.Server.AllowedOrigins
}

// rejectAllValidator rejects all tokens (used when auth is not wired)
type rejectAllValidator struct{}

func (rejectAllValidator) ValidateToken(context.Context, string) (*auth.Identity, error) {
	return nil, errors.New("authentication not configured")
}
