package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/tphan267/xui-hub/pkg/models"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func setupServerRepo(t *testing.T) *ServerRepository {
	repo, err := NewServerRepository(setupTestDB(t))
	if err != nil {
		t.Fatalf("Failed to create server repository: %v", err)
	}
	return repo
}

func validInput() models.ServerInput {
	return models.ServerInput{
		Name:     "A",
		Host:     "10.0.0.1",
		Port:     54321,
		Username: "u",
		Password: "p",
	}
}

func TestAddServer(t *testing.T) {
	repo := setupServerRepo(t)
	ctx := context.Background()

	in := validInput()
	in.WebBasePath = " /xui "
	server, err := repo.AddServer(ctx, in)
	if err != nil {
		t.Fatalf("Failed to add server: %v", err)
	}

	if len(server.ID) != 8 {
		t.Errorf("Expected 8 character id, got %q", server.ID)
	}
	if server.WebBasePath != "/xui" {
		t.Errorf("Expected trimmed base path, got %q", server.WebBasePath)
	}
	if server.CreatedAt.IsZero() {
		t.Error("Expected creation timestamp to be set")
	}

	stored, err := repo.GetServer(ctx, server.ID)
	if err != nil {
		t.Fatalf("Failed to get server: %v", err)
	}
	if stored.Password != "p" {
		t.Errorf("Expected stored password, got %q", stored.Password)
	}
}

func TestAddServer_Validation(t *testing.T) {
	repo := setupServerRepo(t)
	ctx := context.Background()

	cases := map[string]func(*models.ServerInput){
		"missing name":     func(in *models.ServerInput) { in.Name = "" },
		"missing host":     func(in *models.ServerInput) { in.Host = "  " },
		"missing port":     func(in *models.ServerInput) { in.Port = 0 },
		"port too large":   func(in *models.ServerInput) { in.Port = 70000 },
		"missing username": func(in *models.ServerInput) { in.Username = "" },
		"missing password": func(in *models.ServerInput) { in.Password = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := repo.AddServer(ctx, in)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got %v", err)
			}
		})
	}

	count, _ := repo.Count(ctx)
	if count != 0 {
		t.Errorf("Expected no records after rejected inserts, got %d", count)
	}
}

func TestUpdateServer(t *testing.T) {
	repo := setupServerRepo(t)
	ctx := context.Background()

	server, err := repo.AddServer(ctx, validInput())
	if err != nil {
		t.Fatalf("Failed to add server: %v", err)
	}

	newName := "B"
	newPort := 2053
	emptyPassword := ""
	updated, err := repo.UpdateServer(ctx, server.ID, models.ServerPatch{
		Name:     &newName,
		Port:     &newPort,
		Password: &emptyPassword,
	})
	if err != nil {
		t.Fatalf("Failed to update server: %v", err)
	}

	if updated.Name != "B" || updated.Port != 2053 {
		t.Errorf("Update not applied: %+v", updated)
	}
	if updated.Password != "p" {
		t.Errorf("Expected empty password to keep stored value, got %q", updated.Password)
	}

	emptyHost := ""
	if _, err := repo.UpdateServer(ctx, server.ID, models.ServerPatch{Host: &emptyHost}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid for empty host, got %v", err)
	}

	if _, err := repo.UpdateServer(ctx, "missing", models.ServerPatch{Name: &newName}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteServer(t *testing.T) {
	repo := setupServerRepo(t)
	ctx := context.Background()

	server, err := repo.AddServer(ctx, validInput())
	if err != nil {
		t.Fatalf("Failed to add server: %v", err)
	}

	if err := repo.DeleteServer(ctx, server.ID); err != nil {
		t.Fatalf("Failed to delete server: %v", err)
	}

	if _, err := repo.GetServer(ctx, server.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again reports not found instead of failing
	if err := repo.DeleteServer(ctx, server.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestGetServers(t *testing.T) {
	repo := setupServerRepo(t)
	ctx := context.Background()

	servers, err := repo.GetServers(ctx)
	if err != nil {
		t.Fatalf("Failed to list servers: %v", err)
	}
	if len(servers) != 0 {
		t.Errorf("Expected 0 servers, got %d", len(servers))
	}

	// Same host and port twice is allowed
	for range 2 {
		if _, err := repo.AddServer(ctx, validInput()); err != nil {
			t.Fatalf("Failed to add server: %v", err)
		}
	}

	servers, err = repo.GetServers(ctx)
	if err != nil {
		t.Fatalf("Failed to list servers: %v", err)
	}
	if len(servers) != 2 {
		t.Errorf("Expected 2 servers, got %d", len(servers))
	}
}
