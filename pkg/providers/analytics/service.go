package analytics

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/providers"
)

var (
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xuihub_events_total",
			Help: "Total number of tracked dashboard events",
		},
		[]string{"type", "outcome"},
	)

	EventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xuihub_event_duration_seconds",
			Help:    "Duration of tracked dashboard operations in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)
)

// Service implements analytics on top of the Prometheus default registry
type Service struct {
	logger *logger.Logger
}

// NewService creates a new analytics service
func NewService() *Service {
	return &Service{}
}

// Name returns the service name
func (s *Service) Name() string {
	return "analytics"
}

// Initialize sets up the service
func (s *Service) Initialize(ctx context.Context, registry *providers.Registry) error {
	s.logger = registry.Logger().Named("analytics")
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

// RegisterAPIRoutes exposes the Prometheus registry at /metrics
func (s *Service) RegisterAPIRoutes(router fiber.Router, middlewares ...fiber.Handler) error {
	metrics := router.Group("/metrics", middlewares...)
	metrics.Get("/", adaptor.HTTPHandler(promhttp.Handler()))
	return nil
}

// Track records an analytics event
func (s *Service) Track(ctx context.Context, event providers.Event) error {
	outcome := "success"
	if !event.Success {
		outcome = "failure"
	}
	EventsTotal.WithLabelValues(event.Type, outcome).Inc()

	if event.Duration > 0 {
		EventDuration.WithLabelValues(event.Type).Observe(event.Duration.Seconds())
	}

	if s.logger != nil {
		ts := event.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		s.logger.Debug("event=%s outcome=%s user=%s at=%s data=%v",
			event.Type, outcome, event.UserID, ts.Format(time.RFC3339), event.Data)
	}
	return nil
}

// Verify that Service implements both Service and AnalyticsProvider interfaces
var _ providers.Service = (*Service)(nil)
var _ providers.AnalyticsProvider = (*Service)(nil)
