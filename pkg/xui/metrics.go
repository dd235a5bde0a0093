package xui

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Op labels a panel call in logs, errors and metrics
type Op string

const (
	OpLogin         Op = "login"
	OpStatus        Op = "status"
	OpListInbounds  Op = "list_inbounds"
	OpAddInbound    Op = "add_inbound"
	OpUpdateInbound Op = "update_inbound"
	OpDeleteInbound Op = "delete_inbound"
)

var (
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xuihub_remote_requests_total",
			Help: "Total number of calls made to remote panels",
		},
		[]string{"operation", "outcome"},
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xuihub_remote_request_duration_seconds",
			Help:    "Remote panel call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	SessionCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xuihub_session_cache_hits_total",
			Help: "Total number of panel calls served with a cached session",
		},
	)
)

func observe(op Op, start time.Time, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case IsAuthError(err):
		outcome = "auth_error"
	default:
		outcome = "error"
	}
	RemoteRequestsTotal.WithLabelValues(string(op), outcome).Inc()
	RemoteRequestDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
}
