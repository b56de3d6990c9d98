package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Auth metrics
	TokenRefreshTotal       *prometheus.CounterVec
	CredentialExchangeTotal *prometheus.CounterVec
	AuthEventsTotal         *prometheus.CounterVec
}

// New creates a Metrics instance registered on reg.
// A nil reg registers on the default Prometheus registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "album"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		StorageOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operations_total",
				Help:      "Total number of object storage operations",
			},
			[]string{"op", "outcome"}, // outcome: success, service_error, transport_error
		),
		StorageOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operation_duration_seconds",
				Help:      "Object storage operation duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),

		TokenRefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "token_refresh_total",
				Help:      "Total number of token refresh attempts",
			},
			[]string{"outcome"}, // success, rejected, error
		),
		CredentialExchangeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "credential_exchange_total",
				Help:      "Total number of federated credential exchanges",
			},
			[]string{"outcome"},
		),
		AuthEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "events_total",
				Help:      "Total number of sign-in events",
			},
			[]string{"event"}, // login, login_failed, logout
		),
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCodeToString(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStorageOperation records one object storage call.
func (m *Metrics) RecordStorageOperation(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StorageOperationsTotal.WithLabelValues(op, outcome).Inc()
	m.StorageOperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordTokenRefresh records a token refresh outcome.
func (m *Metrics) RecordTokenRefresh(outcome string) {
	if m == nil {
		return
	}
	m.TokenRefreshTotal.WithLabelValues(outcome).Inc()
}

// RecordCredentialExchange records a credential exchange outcome.
func (m *Metrics) RecordCredentialExchange(outcome string) {
	if m == nil {
		return
	}
	m.CredentialExchangeTotal.WithLabelValues(outcome).Inc()
}

// RecordAuthEvent records a sign-in event.
func (m *Metrics) RecordAuthEvent(event string) {
	if m == nil {
		return
	}
	m.AuthEventsTotal.WithLabelValues(event).Inc()
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
