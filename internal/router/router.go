package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"drinkpoint-api/internal/handler"
	"drinkpoint-api/internal/metrics"
	"drinkpoint-api/internal/middleware"
	"drinkpoint-api/pkg/apierror"
	"drinkpoint-api/pkg/response"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	CaptureHandler *handler.CaptureHandler
	ProfileHandler *handler.ProfileHandler
	AdminHandler   *handler.AdminHandler
	AuthHandler    *handler.AuthHandler

	UserAuth    func(http.Handler) http.Handler
	AdminAuth   func(http.Handler) http.Handler
	RateLimiter *middleware.RateLimiter

	AllowedOrigins []string
	TrustProxy     bool
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.NewLogging(cfg.Logger))
	r.Use(middleware.NewMetrics(cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader, middleware.AdminTokenHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.MethodNotAllowed(""))
	})

	// PUBLIC routes
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// USER routes (identity provider JWT)
		r.Group(func(r chi.Router) {
			if cfg.UserAuth != nil {
				r.Use(cfg.UserAuth)
			}

			if cfg.CaptureHandler != nil {
				r.Route("/captures", func(r chi.Router) {
					r.Use(middleware.NewRateLimit(cfg.RateLimiter, cfg.Metrics))
					r.Post("/", cfg.CaptureHandler.Capture)
					r.Post("/manual", cfg.CaptureHandler.CaptureManual)
				})
			}

			if cfg.ProfileHandler != nil {
				r.Route("/me", func(r chi.Router) {
					r.Get("/", cfg.ProfileHandler.Me)
					r.Get("/badges", cfg.ProfileHandler.Badges)
					r.Get("/characters", cfg.ProfileHandler.Characters)
					r.Get("/consumptions", cfg.ProfileHandler.Consumptions)
				})
				r.Get("/leaderboard", cfg.ProfileHandler.Leaderboard)
				r.Get("/venues", cfg.ProfileHandler.Venues)
				r.Get("/products", cfg.ProfileHandler.Products)
			}
		})

		// ADMIN routes (session token from /admin/login)
		r.Route("/admin", func(r chi.Router) {
			if cfg.AuthHandler != nil {
				r.With(middleware.NewRateLimit(cfg.RateLimiter, cfg.Metrics)).Post("/login", cfg.AuthHandler.Login)
			}

			r.Group(func(r chi.Router) {
				if cfg.AdminAuth != nil {
					r.Use(cfg.AdminAuth)
				}

				if cfg.AuthHandler != nil {
					r.Post("/logout", cfg.AuthHandler.Logout)
					r.Post("/refresh", cfg.AuthHandler.Refresh)
				}
				if cfg.AdminHandler == nil {
					return
				}

				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Get("/analytics", cfg.AdminHandler.Analytics)

				r.Route("/users", func(r chi.Router) {
					r.Get("/", cfg.AdminHandler.ListUsers)
					r.Get("/{id}", cfg.AdminHandler.GetUser)
					r.Patch("/{id}", cfg.AdminHandler.UpdateUser)
					r.Post("/{id}/points", cfg.AdminHandler.AdjustPoints)
				})
				r.Route("/venues", func(r chi.Router) {
					r.Get("/", cfg.AdminHandler.ListVenues)
					r.Post("/", cfg.AdminHandler.CreateVenue)
					r.Get("/{id}", cfg.AdminHandler.GetVenue)
					r.Put("/{id}", cfg.AdminHandler.UpdateVenue)
					r.Delete("/{id}", cfg.AdminHandler.DeleteVenue)
				})
				r.Route("/products", func(r chi.Router) {
					r.Get("/", cfg.AdminHandler.ListProducts)
					r.Post("/", cfg.AdminHandler.CreateProduct)
					r.Get("/{id}", cfg.AdminHandler.GetProduct)
					r.Put("/{id}", cfg.AdminHandler.UpdateProduct)
					r.Delete("/{id}", cfg.AdminHandler.DeleteProduct)
				})
			})
		})
	})

	return r
}
