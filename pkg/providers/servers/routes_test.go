package servers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/tphan267/xui-hub/pkg/api"
	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/models"
	"github.com/tphan267/xui-hub/pkg/providers"
	"github.com/tphan267/xui-hub/pkg/storage"
)

func setupTestServers(t *testing.T) (*Service, *fiber.App) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:", logger.Discard())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := NewService()
	registry := providers.NewRegistry(store, logger.Discard(), nil)
	if err := svc.Initialize(context.Background(), registry); err != nil {
		t.Fatalf("Failed to initialize servers: %v", err)
	}

	app := fiber.New()
	if err := svc.RegisterAPIRoutes(app.Group("/api")); err != nil {
		t.Fatalf("Failed to register routes: %v", err)
	}

	return svc, app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, api.ApiResponse, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, _ := json.Marshal(b)
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	raw, _ := io.ReadAll(resp.Body)
	var response api.ApiResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		t.Fatalf("Failed to parse response %q: %v", raw, err)
	}
	return resp, response, raw
}

func TestGetServers_Empty(t *testing.T) {
	_, app := setupTestServers(t)

	resp, response, raw := doJSON(t, app, "GET", "/api/servers", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !response.Success {
		t.Error("Expected success response")
	}
	if !strings.Contains(string(raw), `"data":[]`) {
		t.Errorf("Expected empty list, got %s", raw)
	}
}

func TestCreateServer_Success(t *testing.T) {
	svc, app := setupTestServers(t)

	// The dashboard sends the port as a string
	body := `{"name":"A","host":"10.0.0.1","port":"54321","username":"u","password":"p","webBasePath":"/xui"}`
	resp, response, raw := doJSON(t, app, "POST", "/api/servers", body)

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, raw)
	}
	if !response.Success {
		t.Error("Expected success response")
	}
	if strings.Contains(string(raw), `"password"`) {
		t.Errorf("Password must not be returned: %s", raw)
	}

	servers, _ := svc.GetServers(context.Background())
	if len(servers) != 1 {
		t.Fatalf("Expected 1 server, got %d", len(servers))
	}
	if servers[0].Port != 54321 || servers[0].Password != "p" {
		t.Errorf("Unexpected stored record: %+v", servers[0])
	}

	_, _, raw = doJSON(t, app, "GET", "/api/servers", nil)
	if strings.Contains(string(raw), `"password"`) {
		t.Errorf("Password must not be listed: %s", raw)
	}
}

func TestCreateServer_MissingFields(t *testing.T) {
	svc, app := setupTestServers(t)

	cases := []string{
		`{"name":"A","port":54321,"username":"u","password":"p"}`,
		`{"name":"A","host":"10.0.0.1","username":"u","password":"p"}`,
		`{"name":"A","host":"10.0.0.1","port":"","username":"u","password":"p"}`,
		`{"host":"10.0.0.1","port":54321,"username":"u","password":"p"}`,
		`{"name":"A","host":"10.0.0.1","port":54321,"password":"p"}`,
		`{"name":"A","host":"10.0.0.1","port":54321,"username":"u"}`,
		`{"name":"A","host":"10.0.0.1","port":"abc","username":"u","password":"p"}`,
	}

	for _, body := range cases {
		resp, response, _ := doJSON(t, app, "POST", "/api/servers", body)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("Expected status 400 for %s, got %d", body, resp.StatusCode)
		}
		if response.Success || response.Msg == "" {
			t.Errorf("Expected failure envelope with msg for %s, got %+v", body, response)
		}
	}

	servers, _ := svc.GetServers(context.Background())
	if len(servers) != 0 {
		t.Errorf("Expected no servers to be stored, got %d", len(servers))
	}
}

func TestUpdateServer(t *testing.T) {
	svc, app := setupTestServers(t)

	server, err := svc.AddServer(context.Background(), models.ServerInput{
		Name: "A", Host: "10.0.0.1", Port: 54321, Username: "u", Password: "p",
	})
	if err != nil {
		t.Fatal(err)
	}

	var notified []string
	svc.OnChange(func(id string) { notified = append(notified, id) })

	// An empty password keeps the stored one
	resp, response, raw := doJSON(t, app, "PUT", "/api/servers/"+server.ID, `{"name":"B","port":2053,"password":""}`)
	if resp.StatusCode != fiber.StatusOK || !response.Success {
		t.Fatalf("Expected successful update, got %d: %s", resp.StatusCode, raw)
	}

	updated, _ := svc.GetServer(context.Background(), server.ID)
	if updated.Name != "B" || updated.Port != 2053 || updated.Password != "p" {
		t.Errorf("Unexpected record after update: %+v", updated)
	}
	if len(notified) != 1 || notified[0] != server.ID {
		t.Errorf("Expected change notification for %s, got %v", server.ID, notified)
	}

	resp, _, _ = doJSON(t, app, "PUT", "/api/servers/"+server.ID, `{"host":""}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected status 400 for empty host, got %d", resp.StatusCode)
	}

	resp, _, _ = doJSON(t, app, "PUT", "/api/servers/missing", `{"name":"C"}`)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestDeleteServer(t *testing.T) {
	svc, app := setupTestServers(t)

	server, err := svc.AddServer(context.Background(), models.ServerInput{
		Name: "A", Host: "10.0.0.1", Port: 54321, Username: "u", Password: "p",
	})
	if err != nil {
		t.Fatal(err)
	}

	var notified []string
	svc.OnChange(func(id string) { notified = append(notified, id) })

	resp, response, _ := doJSON(t, app, "DELETE", "/api/servers/"+server.ID, nil)
	if resp.StatusCode != fiber.StatusOK || !response.Success {
		t.Fatalf("Expected successful delete, got %d", resp.StatusCode)
	}
	if len(notified) != 1 {
		t.Errorf("Expected one change notification, got %v", notified)
	}

	// Deleting again is a consistent 404, never a crash
	for range 2 {
		resp, response, _ = doJSON(t, app, "DELETE", "/api/servers/"+server.ID, nil)
		if resp.StatusCode != fiber.StatusNotFound {
			t.Errorf("Expected status 404, got %d", resp.StatusCode)
		}
		if response.Success || response.Msg == "" {
			t.Errorf("Expected failure envelope, got %+v", response)
		}
	}
	if len(notified) != 1 {
		t.Errorf("Unknown ids must not notify, got %v", notified)
	}
}

func TestGetServer_NotFound(t *testing.T) {
	_, app := setupTestServers(t)

	resp, _, _ := doJSON(t, app, "GET", "/api/servers/nope", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}
