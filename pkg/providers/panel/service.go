package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/models"
	"github.com/tphan267/xui-hub/pkg/providers"
	"github.com/tphan267/xui-hub/pkg/sharelink"
	"github.com/tphan267/xui-hub/pkg/storage/repositories"
	"github.com/tphan267/xui-hub/pkg/utils"
	"github.com/tphan267/xui-hub/pkg/xui"
)

// Service proxies operations to the remote panels of registered servers
type Service struct {
	client      *xui.Client
	servers     providers.ServerProvider
	registry    *providers.Registry
	logger      *logger.Logger
	concurrency int
}

// NewService creates a new panel service
func NewService() *Service {
	return &Service{}
}

// Name returns the service name
func (s *Service) Name() string {
	return "panel"
}

// Initialize builds the panel client from config. The servers service must be registered first.
func (s *Service) Initialize(ctx context.Context, registry *providers.Registry) error {
	s.registry = registry
	s.logger = registry.Logger().Named("panel")

	servers, err := registry.GetServers()
	if err != nil {
		return fmt.Errorf("panel requires the servers service: %w", err)
	}
	s.servers = servers

	opts := xui.Options{Logger: s.logger}
	if cfg := registry.Config(); cfg != nil {
		opts.Timeout = cfg.RemoteTimeout()
		opts.VerifyTLS = cfg.Remote.VerifyTLS
		opts.SessionCookies = cfg.Remote.SessionCookies
		opts.CacheTTL = cfg.SessionCacheDuration()
		opts.Paths = xui.Paths{
			Login:         cfg.Remote.Paths.Login,
			Status:        cfg.Remote.Paths.Status,
			ListInbounds:  cfg.Remote.Paths.ListInbounds,
			AddInbound:    cfg.Remote.Paths.AddInbound,
			UpdateInbound: cfg.Remote.Paths.UpdateInbound,
			DeleteInbound: cfg.Remote.Paths.DeleteInbound,
		}
		s.concurrency = cfg.Remote.FanoutConcurrency
	}

	s.client = xui.NewClient(opts)
	s.servers.OnChange(s.client.Invalidate)

	if opts.CacheTTL > 0 {
		s.logger.Info("Panel sessions are reused for %s", opts.CacheTTL)
	}
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

// RegisterAPIRoutes registers the /xui routes
func (s *Service) RegisterAPIRoutes(router fiber.Router, middlewares ...fiber.Handler) error {
	s.RegisterRoutes(router.Group("/xui", middlewares...))
	return nil
}

// Status returns the remote system status of one server
func (s *Service) Status(ctx context.Context, serverID string) (json.RawMessage, error) {
	return s.withServer(ctx, serverID, s.client.Status)
}

// Inbounds returns the remote inbound list of one server
func (s *Service) Inbounds(ctx context.Context, serverID string) (json.RawMessage, error) {
	return s.withServer(ctx, serverID, s.client.ListInbounds)
}

// AddInbound creates an inbound. The payload is forwarded unchanged.
func (s *Service) AddInbound(ctx context.Context, serverID string, payload []byte) (json.RawMessage, error) {
	if err := xui.ValidateInboundPayload(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrInvalid, err)
	}
	return s.withServer(ctx, serverID, func(ctx context.Context, server *models.Server) (json.RawMessage, error) {
		return s.client.AddInbound(ctx, server, payload)
	})
}

// UpdateInbound replaces an inbound. The payload is forwarded unchanged.
func (s *Service) UpdateInbound(ctx context.Context, serverID, inboundID string, payload []byte) (json.RawMessage, error) {
	if err := validateInboundID(inboundID); err != nil {
		return nil, err
	}
	if err := xui.ValidateInboundPayload(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrInvalid, err)
	}
	return s.withServer(ctx, serverID, func(ctx context.Context, server *models.Server) (json.RawMessage, error) {
		return s.client.UpdateInbound(ctx, server, inboundID, payload)
	})
}

// DeleteInbound removes an inbound
func (s *Service) DeleteInbound(ctx context.Context, serverID, inboundID string) (json.RawMessage, error) {
	if err := validateInboundID(inboundID); err != nil {
		return nil, err
	}
	return s.withServer(ctx, serverID, func(ctx context.Context, server *models.Server) (json.RawMessage, error) {
		return s.client.DeleteInbound(ctx, server, inboundID)
	})
}

// Links builds client share links for every inbound of one server.
// Links point at the registered host of the server.
func (s *Service) Links(ctx context.Context, serverID string) ([]sharelink.InboundLinks, error) {
	server, err := s.servers.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.ListInbounds(ctx, server)
	if err != nil {
		return nil, err
	}

	inbounds, err := xui.DecodeInbounds(raw)
	if err != nil {
		return nil, &xui.RemoteError{Endpoint: xui.BaseURL(server), Operation: xui.OpListInbounds, Err: err}
	}

	return sharelink.Build(server.Host, inbounds), nil
}

// AllStatus fetches the status of every registered server
func (s *Service) AllStatus(ctx context.Context) ([]xui.Result, error) {
	return s.fanOut(ctx, "fanout_status", s.client.Status)
}

// AllInbounds fetches the inbound list of every registered server
func (s *Service) AllInbounds(ctx context.Context) ([]xui.Result, error) {
	return s.fanOut(ctx, "fanout_inbounds", s.client.ListInbounds)
}

func (s *Service) fanOut(ctx context.Context, event string, call xui.Call) ([]xui.Result, error) {
	start := time.Now()

	snapshot, err := s.servers.GetServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read server registry: %w", err)
	}

	results := xui.RunAcrossAll(ctx, snapshot, s.concurrency, call)
	failed := xui.Failed(results)

	if failed > 0 {
		s.logger.Warn("%s: %d of %d servers failed", event, failed, len(results))
	} else {
		s.logger.Debug("%s: %d servers ok", event, len(results))
	}

	s.registry.Track(ctx, providers.Event{
		Type:      event,
		Success:   failed == 0,
		Duration:  time.Since(start),
		Timestamp: start,
		Data:      map[string]any{"servers": len(results), "failed": failed},
	})

	return results, nil
}

func (s *Service) withServer(ctx context.Context, serverID string, call xui.Call) (json.RawMessage, error) {
	server, err := s.servers.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	raw, err := call(ctx, server)
	if err != nil {
		s.logger.Debug("Server %s: %v", serverID, err)
	}
	return raw, err
}

func validateInboundID(id string) error {
	if utils.StringToInt(id) <= 0 {
		return fmt.Errorf("%w: invalid inbound id %q", repositories.ErrInvalid, id)
	}
	return nil
}

// Verify that Service implements both Service and PanelProvider interfaces
var _ providers.Service = (*Service)(nil)
var _ providers.PanelProvider = (*Service)(nil)
