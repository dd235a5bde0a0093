package servers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/models"
	"github.com/tphan267/xui-hub/pkg/providers"
	"github.com/tphan267/xui-hub/pkg/storage/repositories"
)

// Service is the registry of remote panel endpoints
type Service struct {
	repo     *repositories.ServerRepository
	registry *providers.Registry
	logger   *logger.Logger

	mu        sync.RWMutex
	listeners []func(serverID string)
}

// NewService creates a new server registry service
func NewService() *Service {
	return &Service{}
}

// Name returns the service name
func (s *Service) Name() string {
	return "servers"
}

// Initialize wires the repository
func (s *Service) Initialize(ctx context.Context, registry *providers.Registry) error {
	s.registry = registry
	s.logger = registry.Logger().Named("servers")
	s.repo = registry.DB().Servers()

	count, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("%d servers registered", count)
	return nil
}

func (s *Service) IsRunnable() bool {
	return false
}

func (s *Service) Start(ctx context.Context) error {
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	return nil
}

// RegisterAPIRoutes registers the /servers routes
func (s *Service) RegisterAPIRoutes(router fiber.Router, middlewares ...fiber.Handler) error {
	s.RegisterRoutes(router.Group("/servers", middlewares...))
	return nil
}

// OnChange registers fn to be called after a server is updated or deleted
func (s *Service) OnChange(fn func(serverID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) notify(serverID string) {
	s.mu.RLock()
	listeners := append([]func(string){}, s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(serverID)
	}
}

// AddServer validates and stores a new endpoint record
func (s *Service) AddServer(ctx context.Context, in models.ServerInput) (*models.Server, error) {
	start := time.Now()
	server, err := s.repo.AddServer(ctx, in)
	s.track(ctx, "server_add", start, err, in.Name)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Added server %s (%s:%d)", server.ID, server.Host, server.Port)
	return server, nil
}

// UpdateServer applies a partial update
func (s *Service) UpdateServer(ctx context.Context, id string, patch models.ServerPatch) (*models.Server, error) {
	start := time.Now()
	server, err := s.repo.UpdateServer(ctx, id, patch)
	s.track(ctx, "server_update", start, err, id)
	if err != nil {
		return nil, err
	}

	s.notify(id)
	s.logger.Info("Updated server %s", id)
	return server, nil
}

// DeleteServer removes a record. Unknown ids yield repositories.ErrNotFound.
func (s *Service) DeleteServer(ctx context.Context, id string) error {
	start := time.Now()
	err := s.repo.DeleteServer(ctx, id)
	s.track(ctx, "server_delete", start, err, id)
	if err != nil {
		return err
	}

	s.notify(id)
	s.logger.Info("Deleted server %s", id)
	return nil
}

// GetServers returns a snapshot of all records in creation order
func (s *Service) GetServers(ctx context.Context) ([]*models.Server, error) {
	return s.repo.GetServers(ctx)
}

// GetServer returns a single record
func (s *Service) GetServer(ctx context.Context, id string) (*models.Server, error) {
	return s.repo.GetServer(ctx, id)
}

func (s *Service) track(ctx context.Context, event string, start time.Time, err error, subject string) {
	s.registry.Track(ctx, providers.Event{
		Type:      event,
		Success:   err == nil,
		Duration:  time.Since(start),
		Timestamp: start,
		Data:      map[string]any{"subject": subject},
	})
}

// Verify that Service implements both Service and ServerProvider interfaces
var _ providers.Service = (*Service)(nil)
var _ providers.ServerProvider = (*Service)(nil)
