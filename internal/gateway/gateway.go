package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/multierr"

	"github.com/threadline/threadline-backend/api/middleware"
	"github.com/threadline/threadline-backend/api/responses"
	"github.com/threadline/threadline-backend/pkg/config"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/logger"
)

// Gateway is a thin routing layer in front of the services. It forwards
// requests untouched; authentication and authorization stay with the
// service that owns the resource.
type Gateway struct {
	logg    *logger.Logger
	auth    *httputil.ReverseProxy
	user    *httputil.ReverseProxy
	product *httputil.ReverseProxy
}

// New builds proxies for every upstream. All misconfigured URLs are
// reported together so one boot failure surfaces the full problem.
func New(cfg config.GatewayConfig, logg *logger.Logger) (*Gateway, error) {
	var errs []error

	auth, err := newProxy(cfg.AuthServiceURL, logg)
	if err != nil {
		errs = append(errs, fmt.Errorf("auth service url: %w", err))
	}
	user, err := newProxy(cfg.UserServiceURL, logg)
	if err != nil {
		errs = append(errs, fmt.Errorf("user service url: %w", err))
	}
	product, err := newProxy(cfg.ProductServiceURL, logg)
	if err != nil {
		errs = append(errs, fmt.Errorf("product service url: %w", err))
	}
	if combined := multierr.Combine(errs...); combined != nil {
		return nil, combined
	}
	return &Gateway{logg: logg, auth: auth, user: user, product: product}, nil
}

// Handler assembles the gateway's routing table. Path prefixes map to
// owning services; everything under a prefix forwards as-is.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(g.logg),
		middleware.RequestID(g.logg),
		middleware.Logging(g.logg),
		middleware.CORS(),
	)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "live", "service": config.ServiceGateway})
	})

	r.Handle("/api/auth/*", g.auth)
	r.Handle("/api/users/*", g.user)
	r.Handle("/api/products", g.product)
	r.Handle("/api/products/*", g.product)
	r.Handle("/api/categories", g.product)
	r.Handle("/api/categories/*", g.product)
	r.Handle("/api/cart", g.product)
	r.Handle("/api/cart/*", g.product)
	r.Handle("/api/orders", g.product)
	r.Handle("/api/orders/*", g.product)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		err := pkgerrors.New(pkgerrors.CodeNotFound, "no service owns this path")
		responses.WriteError(r.Context(), g.logg, w, err)
	})

	return r
}

func newProxy(rawURL string, logg *logger.Logger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upstream unreachable")
		responses.WriteError(r.Context(), logg, w, wrapped)
	}
	return proxy, nil
}
