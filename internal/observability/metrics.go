package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	SessionEvents   *prometheus.CounterVec
	FlashFlashed    *prometheus.CounterVec
	FlashConsumed   *prometheus.CounterVec
	FlashDropped    *prometheus.CounterVec
	UpstreamErrors  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		FlashFlashed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flash_messages_flashed_total",
			Help:      "Flash messages stored, by category.",
		}, []string{"category"}),
		FlashConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flash_messages_consumed_total",
			Help:      "Flash messages marked consumed, by category.",
		}, []string{"category"}),
		FlashDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flash_messages_dropped_total",
			Help:      "Flash messages dropped without delivery, by reason.",
		}, []string{"reason"}),
		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Dashboard API errors by operation.",
		}, []string{"op"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request duration in milliseconds by method and route.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
	}
}

// Flashed, Consumed and Dropped satisfy the flash store's observer so the
// core stays free of metrics imports.
func (m *Metrics) Flashed(category string) {
	m.FlashFlashed.WithLabelValues(category).Inc()
}

func (m *Metrics) Consumed(category string) {
	m.FlashConsumed.WithLabelValues(category).Inc()
}

func (m *Metrics) Dropped(reason string) {
	m.FlashDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, route).Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
