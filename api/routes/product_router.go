package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threadline/threadline-backend/api/controllers"
	"github.com/threadline/threadline-backend/api/middleware"
	"github.com/threadline/threadline-backend/internal/productsvc"
	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/logger"
)

// NewProductRouter assembles the product service's HTTP surface.
// Catalog reads are public; carts and orders need a session; catalog
// writes need the admin role.
func NewProductRouter(
	cfg *config.Config,
	logg *logger.Logger,
	db controllers.Pinger,
	bus controllers.Pinger,
	svc *productsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(config.ServiceProduct))
		r.Get("/ready", controllers.HealthReady(config.ServiceProduct, logg, map[string]controllers.Pinger{
			"database": db,
			"bus":      bus,
		}))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(svc, logg))
		r.Get("/{productId}", controllers.ProductGet(svc, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg), middleware.RequireAdmin(logg))
			r.Post("/", controllers.ProductCreate(svc, logg))
			r.Put("/{productId}", controllers.ProductUpdate(svc, logg))
			r.Post("/{productId}/active", controllers.ProductSetActive(svc, logg))
			r.Delete("/{productId}", controllers.ProductDelete(svc, logg))
		})
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", controllers.CategoryList(svc, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg), middleware.RequireAdmin(logg))
			r.Post("/", controllers.CategoryCreate(svc, logg))
			r.Put("/{categoryId}", controllers.CategoryUpdate(svc, logg))
			r.Delete("/{categoryId}", controllers.CategoryDelete(svc, logg))
		})
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/", controllers.CartGet(svc, logg))
		r.Post("/items", controllers.CartAddItem(svc, logg))
		r.Put("/items/{productId}", controllers.CartUpdateItem(svc, logg))
		r.Delete("/items/{productId}", controllers.CartRemoveItem(svc, logg))
		r.Delete("/", controllers.CartClear(svc, logg))
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/", controllers.OrderList(svc, logg))
		r.Post("/", controllers.OrderCreate(svc, logg))
		r.Get("/{orderId}", controllers.OrderGet(svc, logg))
		r.Post("/{orderId}/cancel", controllers.OrderCancel(svc, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Get("/all", controllers.AdminOrderList(svc, logg))
			r.Post("/{orderId}/status", controllers.AdminOrderUpdateStatus(svc, logg))
		})
	})

	return r
}
