package main

import (
	"context"
	"testing"

	"github.com/tphan267/xui-hub/pkg/config"
	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/models"
	"github.com/tphan267/xui-hub/pkg/providers"
	"github.com/tphan267/xui-hub/pkg/storage"
)

func TestServiceRegistryIntegration(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:", nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	defer store.Close()

	cfg := &config.Config{JWTSecret: "test-secret", Remote: config.RemoteConfig{Timeout: "1s"}}
	registry := createServiceRegistry(store, logger.Discard(), cfg)

	ctx := context.Background()
	if err := registry.InitializeAll(ctx); err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	authProvider, err := registry.GetAuth()
	if err != nil {
		t.Fatalf("Failed to get auth provider: %v", err)
	}
	if _, err := registry.GetAnalytics(); err != nil {
		t.Errorf("Failed to get analytics provider: %v", err)
	}
	serverProvider, err := registry.GetServers()
	if err != nil {
		t.Fatalf("Failed to get server provider: %v", err)
	}
	panelProvider, err := registry.GetPanel()
	if err != nil {
		t.Fatalf("Failed to get panel provider: %v", err)
	}

	// Default admin is seeded
	token, err := authProvider.Authenticate(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("Authentication failed: %v", err)
	}
	claims, err := authProvider.ValidateToken(ctx, token.Token)
	if err != nil {
		t.Fatalf("Token validation failed: %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("Expected username 'admin', got %s", claims.Username)
	}

	// Password reset used by the passwd command
	if err := authProvider.ResetPassword(ctx, "admin", "changed"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := authProvider.Authenticate(ctx, "admin", "changed"); err != nil {
		t.Errorf("Expected new password to work: %v", err)
	}

	server, err := serverProvider.AddServer(ctx, models.ServerInput{
		Name: "test", Host: "127.0.0.1", Port: 1, Username: "u", Password: "p",
	})
	if err != nil {
		t.Fatalf("Failed to add server: %v", err)
	}

	// Nothing listens on port 1, so the fan-out reports one isolated failure
	results, err := panelProvider.AllStatus(ctx)
	if err != nil {
		t.Fatalf("Fan-out failed: %v", err)
	}
	if len(results) != 1 || results[0].ServerID != server.ID || results[0].Success {
		t.Errorf("Unexpected fan-out results: %+v", results)
	}

	registry.Track(ctx, providers.Event{Type: "test", Success: true})

	if err := registry.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
