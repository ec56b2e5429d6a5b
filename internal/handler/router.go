package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-identity/internal/service"
)

// RouterConfig contains everything the router needs.
type RouterConfig struct {
	AuthService *service.AuthService
	UserService *service.UserService
	Logger      zerolog.Logger
	CORS        CORSConfig
	MaxBodySize int64

	// MetricsEnabled mounts /metrics and the collection middleware.
	MetricsEnabled bool
	MetricsPath    string
}

// NewRouter assembles the chi router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(Recovery(cfg.Logger))
	r.Use(RequestLogging(cfg.Logger))
	r.Use(CORS(cfg.CORS))
	r.Use(MaxBodySize(cfg.MaxBodySize))
	if cfg.MetricsEnabled {
		r.Use(Metrics())
	}

	r.Get("/health", handleHealth)
	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	authHandler := NewAuthHandler(cfg.AuthService, cfg.Logger)
	userHandler := NewUserHandler(cfg.UserService, cfg.Logger)
	guard := AuthGuard(cfg.AuthService)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Get("/verify/{key}", authHandler.Verify)
			r.Post("/login", authHandler.Login)
			r.Get("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(guard)
				r.Get("/logout", authHandler.Logout)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/get", userHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(guard)
				r.Get("/me", userHandler.Me)
				r.Put("/update/login", userHandler.UpdateLogin)
				r.Put("/update/email", userHandler.UpdateEmail)
				r.Put("/update/password", userHandler.UpdatePassword)
				r.Delete("/delete", userHandler.Delete)
			})
		})
	})

	return r
}

// handleHealth handles health check requests.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
