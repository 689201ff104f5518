package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:               "test-secret",
			Issuer:               "threadline",
			ExpirationMinutes:    15,
			RefreshTokenTTLHours: 168,
		},
	}
}

func TestProductRouterHealthAndMetrics(t *testing.T) {
	t.Parallel()

	handler := NewProductRouter(testConfig(), testLogger(), nil, nil, nil)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s returned %d", path, resp.StatusCode)
		}
	}
}

func TestProductRouterProtectedPathsRequireAuth(t *testing.T) {
	t.Parallel()

	handler := NewProductRouter(testConfig(), testLogger(), nil, nil, nil)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/orders"},
		{http.MethodPost, "/api/products"},
		{http.MethodPost, "/api/categories"},
	}
	for _, tc := range cases {
		req, err := http.NewRequest(tc.method, server.URL+tc.path, nil)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s %s returned %d, want 401", tc.method, tc.path, resp.StatusCode)
		}
	}
}

func TestUserRouterRequiresAuth(t *testing.T) {
	t.Parallel()

	handler := NewUserRouter(testConfig(), testLogger(), nil, nil, nil)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/api/users/me")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
