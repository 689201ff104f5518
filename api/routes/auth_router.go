package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threadline/threadline-backend/api/controllers"
	"github.com/threadline/threadline-backend/api/middleware"
	"github.com/threadline/threadline-backend/internal/authsvc"
	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/redis"
)

// NewAuthRouter assembles the auth service's HTTP surface.
func NewAuthRouter(
	cfg *config.Config,
	logg *logger.Logger,
	db controllers.Pinger,
	redisClient *redis.Client,
	bus controllers.Pinger,
	svc *authsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(config.ServiceAuth))
		r.Get("/ready", controllers.HealthReady(config.ServiceAuth, logg, map[string]controllers.Pinger{
			"database": db,
			"redis":    redisClient,
			"bus":      bus,
		}))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).
			Post("/register", controllers.AuthRegister(svc, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/login", controllers.AuthLogin(svc, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(svc, cfg.JWT, logg))
		r.Post("/logout", controllers.AuthLogout(svc, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/me", controllers.AuthMe(svc, logg))

			r.Route("/admin/users", func(r chi.Router) {
				r.Use(middleware.RequireAdmin(logg))
				r.Get("/", controllers.AdminListUsers(svc, logg))
				r.Post("/{userId}/block", controllers.AdminSetBlocked(svc, logg, true))
				r.Post("/{userId}/unblock", controllers.AdminSetBlocked(svc, logg, false))
				r.Post("/{userId}/make-admin", controllers.AdminSetRole(svc, logg, true))
				r.Post("/{userId}/remove-admin", controllers.AdminSetRole(svc, logg, false))
			})
		})
	})

	return r
}
