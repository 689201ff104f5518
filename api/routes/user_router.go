package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threadline/threadline-backend/api/controllers"
	"github.com/threadline/threadline-backend/api/middleware"
	"github.com/threadline/threadline-backend/internal/usersvc"
	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/logger"
)

// NewUserRouter assembles the user service's HTTP surface.
func NewUserRouter(
	cfg *config.Config,
	logg *logger.Logger,
	db controllers.Pinger,
	bus controllers.Pinger,
	svc *usersvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(config.ServiceUser))
		r.Get("/ready", controllers.HealthReady(config.ServiceUser, logg, map[string]controllers.Pinger{
			"database": db,
			"bus":      bus,
		}))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/me", controllers.ProfileGet(svc, logg))
		r.Put("/me", controllers.ProfileUpdate(svc, logg))
		r.Post("/me/password", controllers.ProfileChangePassword(svc, logg))

		r.Route("/me/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(svc, logg))
			r.Post("/", controllers.AddressCreate(svc, logg))
			r.Put("/{addressId}", controllers.AddressUpdate(svc, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(svc, logg))
		})
	})

	return r
}
