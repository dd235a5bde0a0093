package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/tphan267/xui-hub/pkg/api"
	"github.com/tphan267/xui-hub/pkg/config"
	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/providers"
	"github.com/tphan267/xui-hub/pkg/providers/analytics"
	"github.com/tphan267/xui-hub/pkg/providers/auth"
	"github.com/tphan267/xui-hub/pkg/providers/panel"
	"github.com/tphan267/xui-hub/pkg/providers/servers"
	"github.com/tphan267/xui-hub/pkg/storage"
)

func setupTestServer(t *testing.T) *ApiServer {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:", logger.Discard())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		JWTSecret: "test-secret",
		TokenTTL:  "1h",
		Admin:     config.AdminConfig{Username: "admin", Password: "admin123"},
		Remote:    config.RemoteConfig{Timeout: "2s"},
	}

	registry := providers.NewRegistry(store, logger.Discard(), cfg)
	registry.MustRegister(auth.NewService())
	registry.MustRegister(analytics.NewService())
	registry.MustRegister(servers.NewService())
	registry.MustRegister(panel.NewService())
	if err := registry.InitializeAll(context.Background()); err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	srv, err := New(registry)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return srv
}

func request(t *testing.T, srv *ApiServer, method, path, token string, body any) (int, api.ApiResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.App().Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	raw, _ := io.ReadAll(resp.Body)
	var response api.ApiResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		t.Fatalf("Failed to parse response %q: %v", raw, err)
	}
	return resp.StatusCode, response
}

func login(t *testing.T, srv *ApiServer, username, password string) string {
	t.Helper()

	status, response := request(t, srv, "POST", "/api/auth/login", "", creds(username, password))
	if status != fiber.StatusOK {
		t.Fatalf("Expected login to succeed, got %d: %s", status, response.Msg)
	}

	data, _ := response.Data.(map[string]any)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("Expected token in login response, got %v", response.Data)
	}
	return token
}

func creds(username, password string) map[string]string {
	return map[string]string{"username": username, "password": password}
}

func TestHealth(t *testing.T) {
	srv := setupTestServer(t)

	status, response := request(t, srv, "GET", "/api/health", "", nil)
	if status != fiber.StatusOK || !response.Success {
		t.Errorf("Expected healthy response, got %d %+v", status, response)
	}
}

func TestLogin(t *testing.T) {
	srv := setupTestServer(t)

	status, response := request(t, srv, "POST", "/api/auth/login", "", creds("admin", ""))
	if status != fiber.StatusBadRequest || response.Success {
		t.Errorf("Expected 400 for missing password, got %d", status)
	}

	status, response = request(t, srv, "POST", "/api/auth/login", "", creds("admin", "wrong"))
	if status != fiber.StatusUnauthorized || response.Success {
		t.Errorf("Expected 401 for wrong password, got %d", status)
	}
	if response.Msg == "" {
		t.Error("Expected error message on failed login")
	}

	login(t, srv, "admin", "admin123")
}

func TestAuthMiddleware(t *testing.T) {
	srv := setupTestServer(t)

	status, _ := request(t, srv, "GET", "/api/servers", "", nil)
	if status != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", status)
	}

	status, _ = request(t, srv, "GET", "/api/xui/all-servers/status", "not-a-token", nil)
	if status != fiber.StatusForbidden {
		t.Errorf("Expected 403 for invalid token, got %d", status)
	}

	token := login(t, srv, "admin", "admin123")

	status, response := request(t, srv, "GET", "/api/servers", token, nil)
	if status != fiber.StatusOK || !response.Success {
		t.Errorf("Expected 200 with valid token, got %d", status)
	}

	status, response = request(t, srv, "GET", "/api/xui/all-servers/inbounds", token, nil)
	if status != fiber.StatusOK || !response.Success {
		t.Errorf("Expected 200 for empty fan-out, got %d", status)
	}
}

func TestChangePassword(t *testing.T) {
	srv := setupTestServer(t)
	token := login(t, srv, "admin", "admin123")
	path := "/api/auth/change-password"

	status, _ := request(t, srv, "POST", path, "", map[string]string{"oldPassword": "admin123", "newPassword": "x"})
	if status != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", status)
	}

	status, _ = request(t, srv, "POST", path, token, map[string]string{"oldPassword": "nope", "newPassword": "next"})
	if status != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong old password, got %d", status)
	}

	status, _ = request(t, srv, "POST", path, token, map[string]string{"oldPassword": "admin123", "newPassword": ""})
	if status != fiber.StatusBadRequest {
		t.Errorf("Expected 400 for empty new password, got %d", status)
	}

	status, response := request(t, srv, "POST", path, token, map[string]string{"oldPassword": "admin123", "newPassword": "next"})
	if status != fiber.StatusOK || !response.Success {
		t.Fatalf("Expected password change to succeed, got %d: %s", status, response.Msg)
	}

	status, _ = request(t, srv, "POST", "/api/auth/login", "", creds("admin", "admin123"))
	if status != fiber.StatusUnauthorized {
		t.Errorf("Expected old password to be rejected, got %d", status)
	}
	login(t, srv, "admin", "next")
}

func TestUnknownAPIRoute(t *testing.T) {
	srv := setupTestServer(t)

	status, response := request(t, srv, "GET", "/api/does-not-exist", "", nil)
	if status != fiber.StatusNotFound || response.Success {
		t.Errorf("Expected JSON 404, got %d", status)
	}
}

func TestServesUI(t *testing.T) {
	srv := setupTestServer(t)

	for _, path := range []string{"/", "/servers/abc"} {
		resp, err := srv.App().Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("Expected 200 for %s, got %d", path, resp.StatusCode)
		}
		if !strings.Contains(string(body), "<title>XUI Hub</title>") {
			t.Errorf("Expected dashboard page for %s", path)
		}
	}
}

func TestExtractToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(extractToken(c))
	})

	cases := map[string]string{
		"":             "",
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearerabc":    "",
	}
	for header, want := range cases {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != want {
			t.Errorf("extractToken(%q) = %q, want %q", header, body, want)
		}
	}
}
