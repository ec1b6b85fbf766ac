// Package metrics exposes Prometheus instrumentation for management-server
// API traffic. Registration is lazy so embedding applications that never
// scrape pay nothing beyond the singleton.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics instruments requests against the management server.
type APIMetrics struct {
	requestDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	fetchRetries    *prometheus.CounterVec
}

var (
	apiMetricsInstance *APIMetrics
	apiMetricsOnce     sync.Once
)

// Default returns the process-wide APIMetrics, registering it on first use.
func Default() *APIMetrics {
	apiMetricsOnce.Do(func() {
		apiMetricsInstance = newAPIMetrics()
		apiMetricsInstance.register(prometheus.DefaultRegisterer)
	})
	return apiMetricsInstance
}

func newAPIMetrics() *APIMetrics {
	return &APIMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cove",
				Subsystem: "sdk",
				Name:      "request_duration_seconds",
				Help:      "Duration of management-server requests.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cove",
				Subsystem: "sdk",
				Name:      "requests_total",
				Help:      "Total management-server requests partitioned by method and status.",
			},
			[]string{"method", "status"},
		),
		fetchRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cove",
				Subsystem: "sdk",
				Name:      "fetch_retries_total",
				Help:      "Listing fetch attempts that failed and were retried.",
			},
			[]string{"service"},
		),
	}
}

func (m *APIMetrics) register(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	reg.MustRegister(m.requestDuration, m.requests, m.fetchRetries)
}

// ObserveRequest records one completed request. A status of 0 means the
// request never produced an HTTP response.
func (m *APIMetrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// IncFetchRetry records one retried listing fetch.
func (m *APIMetrics) IncFetchRetry(service string) {
	if m == nil {
		return
	}
	m.fetchRetries.WithLabelValues(service).Inc()
}
