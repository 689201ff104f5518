package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func echoUpstream(t *testing.T, name string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", name)
		_, _ = io.WriteString(w, name+" "+r.URL.Path)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestGateway(t *testing.T) (*Gateway, map[string]*httptest.Server) {
	t.Helper()

	upstreams := map[string]*httptest.Server{
		"auth":    echoUpstream(t, "auth"),
		"user":    echoUpstream(t, "user"),
		"product": echoUpstream(t, "product"),
	}
	gw, err := New(config.GatewayConfig{
		AuthServiceURL:    upstreams["auth"].URL,
		UserServiceURL:    upstreams["user"].URL,
		ProductServiceURL: upstreams["product"].URL,
	}, testLogger())
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gw, upstreams
}

func TestGatewayRoutesByPrefix(t *testing.T) {
	t.Parallel()

	gw, _ := newTestGateway(t)
	server := httptest.NewServer(gw.Handler())
	t.Cleanup(server.Close)

	cases := []struct {
		path     string
		upstream string
	}{
		{"/api/auth/login", "auth"},
		{"/api/users/me", "user"},
		{"/api/users/me/addresses", "user"},
		{"/api/products", "product"},
		{"/api/products/42", "product"},
		{"/api/categories", "product"},
		{"/api/cart", "product"},
		{"/api/cart/items/7", "product"},
		{"/api/orders", "product"},
		{"/api/orders/3/cancel", "product"},
	}
	for _, tc := range cases {
		resp, err := http.Get(server.URL + tc.path)
		if err != nil {
			t.Fatalf("%s: %v", tc.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if got := resp.Header.Get("X-Upstream"); got != tc.upstream {
			t.Fatalf("%s routed to %q, want %q", tc.path, got, tc.upstream)
		}
		if !strings.Contains(string(body), tc.path) {
			t.Fatalf("%s: path not forwarded untouched, upstream saw %q", tc.path, body)
		}
	}
}

func TestGatewayUnknownPath(t *testing.T) {
	t.Parallel()

	gw, _ := newTestGateway(t)
	server := httptest.NewServer(gw.Handler())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/api/payments")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGatewayUpstreamDown(t *testing.T) {
	t.Parallel()

	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	gw, err := New(config.GatewayConfig{
		AuthServiceURL:    down.URL,
		UserServiceURL:    down.URL,
		ProductServiceURL: down.URL,
	}, testLogger())
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	server := httptest.NewServer(gw.Handler())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/api/auth/login")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 from proxy error handler, got %d", resp.StatusCode)
	}
}
