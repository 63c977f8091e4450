package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/order-processing/app"
	"github.com/upb/order-processing/handlers"
	"github.com/upb/order-processing/middleware"
	"github.com/upb/order-processing/models"
	"github.com/upb/order-processing/utils"
)

// OrderPermission gates order placement
const OrderPermission = "CanOrder"

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	r.Use(cors.Handler(corsOptions(cfg.CORS.AllowedOrigins(), cfg.Auth.TokenHeader)))

	var db handlers.HealthChecker
	if deps.DB != nil {
		db = deps.DB
	}
	health := handlers.NewHealthHandler(db, deps.Logger)
	users := handlers.NewUserHandler(deps.UserService, deps.Logger)
	orders := handlers.NewOrderHandler(deps.Logger)
	authn := deps.AuthMiddleware

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if cfg.Observability.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Every API route authenticates, including the login endpoint itself
		r.Use(authn.RequireAuth)

		r.Route("/users", func(r chi.Router) {
			r.Post("/authenticate", users.HandleAuthenticate)
			r.Get("/me", users.HandleMe)

			r.With(authn.RequireRole(models.RoleAdmin)).Get("/{id}", users.HandleGetUser)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.HandleList)
			r.Get("/{id}", orders.HandleGet)
			r.With(authn.RequirePermission(OrderPermission)).Post("/", orders.HandleCreate)
			r.With(authn.RequireRole(models.RoleAdmin)).Post("/{id}/fulfill", orders.HandleFulfill)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

func corsOptions(origins []string, tokenHeader string) cors.Options {
	anyOrigin := len(origins) == 1 && origins[0] == "*"
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", tokenHeader},
		ExposedHeaders:   []string{tokenHeader, "X-Request-ID"},
		AllowCredentials: !anyOrigin,
		MaxAge:           300,
	}
}
