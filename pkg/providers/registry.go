package providers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/tphan267/xui-hub/pkg/config"
	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/storage"
)

// Service is the base interface that all providers must implement
type Service interface {
	// Name returns unique service identifier (constant)
	Name() string

	// Initialize sets up the service with dependencies from registry
	Initialize(ctx context.Context, registry *Registry) error

	// IsRunnable indicates if service needs to run in background
	IsRunnable() bool

	// Start starts the service (only called if IsRunnable returns true)
	Start(ctx context.Context) error

	// Stop gracefully shuts down the service
	Stop(ctx context.Context) error

	// RegisterAPIRoutes registers HTTP routes for this service under router.
	// middlewares guard every route the service registers.
	RegisterAPIRoutes(router fiber.Router, middlewares ...fiber.Handler) error
}

// Registry manages service lifecycle and dependencies.
// Services are initialized in registration order and stopped in reverse.
type Registry struct {
	services map[string]Service
	order    []Service
	runnable []Service
	db       storage.Storage
	logger   *logger.Logger
	config   *config.Config
}

// NewRegistry creates a new service registry
func NewRegistry(db storage.Storage, log *logger.Logger, cfg *config.Config) *Registry {
	return &Registry{
		services: make(map[string]Service),
		order:    make([]Service, 0),
		runnable: make([]Service, 0),
		db:       db,
		logger:   log,
		config:   cfg,
	}
}

// MustRegister registers a service and panics on error (for convenience in main)
func (r *Registry) MustRegister(service Service) {
	if err := r.Register(service); err != nil {
		panic(fmt.Sprintf("Failed to register service %s: %v", service.Name(), err))
	}
}

// DB returns the database storage
func (r *Registry) DB() storage.Storage {
	return r.db
}

// Logger returns the logger
func (r *Registry) Logger() *logger.Logger {
	return r.logger
}

// Config returns the application configuration
func (r *Registry) Config() *config.Config {
	return r.config
}

// Register adds a service to the registry (before initialization)
func (r *Registry) Register(service Service) error {
	name := service.Name()
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}

	r.services[name] = service
	r.order = append(r.order, service)

	if service.IsRunnable() {
		r.runnable = append(r.runnable, service)
	}

	return nil
}

// InitializeAll initializes all services
func (r *Registry) InitializeAll(ctx context.Context) error {
	r.logger.Info("Initializing services...")

	for _, service := range r.order {
		r.logger.Debug("Initializing service: %s", service.Name())
		if err := service.Initialize(ctx, r); err != nil {
			return fmt.Errorf("failed to initialize service %s: %w", service.Name(), err)
		}
	}

	r.logger.Info("All %d services initialized successfully", len(r.order))
	return nil
}

// StartRunnable starts all background services
func (r *Registry) StartRunnable(ctx context.Context) error {
	if len(r.runnable) == 0 {
		r.logger.Debug("No runnable services to start")
		return nil
	}

	r.logger.Info("Starting %d runnable services...", len(r.runnable))

	for _, service := range r.runnable {
		r.logger.Info("Starting service: %s", service.Name())

		go func(s Service) {
			if err := s.Start(ctx); err != nil {
				r.logger.Error("Service %s stopped with error: %v", s.Name(), err)
			}
		}(service)
	}

	return nil
}

// Shutdown gracefully stops all services in reverse registration order
func (r *Registry) Shutdown(ctx context.Context) error {
	r.logger.Info("Shutting down services...")

	for i := len(r.order) - 1; i >= 0; i-- {
		service := r.order[i]
		r.logger.Debug("Stopping service: %s", service.Name())
		if err := service.Stop(ctx); err != nil {
			r.logger.Error("Error stopping service %s: %v", service.Name(), err)
		}
	}

	r.logger.Info("All services stopped")
	return nil
}

// Get retrieves an initialized service by name
func (r *Registry) Get(name string) (Service, error) {
	service, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("service %s not found", name)
	}
	return service, nil
}

// RegisterAllRoutes registers API routes for all services
func (r *Registry) RegisterAllRoutes(router fiber.Router, middlewares ...fiber.Handler) error {
	for _, service := range r.order {
		r.logger.Debug("Registering routes for service: %s", service.Name())
		if err := service.RegisterAPIRoutes(router, middlewares...); err != nil {
			return fmt.Errorf("failed to register routes for service %s: %w", service.Name(), err)
		}
	}

	r.logger.Debug("Routes registered for %d services", len(r.order))
	return nil
}

// GetAuth returns the auth service with type assertion
func (r *Registry) GetAuth() (AuthProvider, error) {
	return lookup[AuthProvider](r, "auth")
}

// GetAnalytics returns the analytics service with type assertion
func (r *Registry) GetAnalytics() (AnalyticsProvider, error) {
	return lookup[AnalyticsProvider](r, "analytics")
}

// GetServers returns the server registry service with type assertion
func (r *Registry) GetServers() (ServerProvider, error) {
	return lookup[ServerProvider](r, "servers")
}

// GetPanel returns the panel service with type assertion
func (r *Registry) GetPanel() (PanelProvider, error) {
	return lookup[PanelProvider](r, "panel")
}

// Track records an event if an analytics provider is registered
func (r *Registry) Track(ctx context.Context, event Event) {
	analytics, err := r.GetAnalytics()
	if err != nil {
		return
	}
	if err := analytics.Track(ctx, event); err != nil {
		r.logger.Debug("Failed to track %s event: %v", event.Type, err)
	}
}

func lookup[T any](r *Registry, name string) (T, error) {
	var zero T
	service, err := r.Get(name)
	if err != nil {
		return zero, err
	}
	provider, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("service %s does not implement %T", name, (*T)(nil))
	}
	return provider, nil
}
