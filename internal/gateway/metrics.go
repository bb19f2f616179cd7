package gateway

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the relays.
type Metrics struct {
	RelaysTotal    *prometheus.CounterVec
	RelayDuration  *prometheus.HistogramVec
	UpstreamStatus *prometheus.CounterVec
}

// NewMetrics registers the relay metrics once on the default registry.
//
// Metrics:
//   - resumegate_relays_total{endpoint,outcome}
//   - resumegate_relay_duration_seconds{endpoint}
//   - resumegate_upstream_responses_total{endpoint,class}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RelaysTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "resumegate_relays_total",
					Help: "Total relays by endpoint and outcome",
				},
				[]string{"endpoint", "outcome"},
			),
			RelayDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "resumegate_relay_duration_seconds",
					Help:    "Relay duration including upstream exchange",
					Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
				},
				[]string{"endpoint"},
			),
			UpstreamStatus: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "resumegate_upstream_responses_total",
					Help: "Upstream responses by status class (2xx, 3xx, 4xx, 5xx)",
				},
				[]string{"endpoint", "class"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observe(endpoint string, oc outcome, status int, elapsed time.Duration) {
	m.RelaysTotal.WithLabelValues(endpoint, string(oc)).Inc()
	m.RelayDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	if oc == outcomeSuccess || oc == outcomeUpstreamError {
		m.UpstreamStatus.WithLabelValues(endpoint, statusClass(status)).Inc()
	}
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
