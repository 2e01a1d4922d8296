package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "issuetracker"

// Metrics groups the collectors exported at /metrics. Each server owns its
// registry so tests can build several servers in one process.
type Metrics struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	backend     *prometheus.HistogramVec
}

// NewMetrics registers the application collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_submissions_total",
			Help:      "Auth form submissions by mode and outcome.",
		}, []string{"mode", "outcome"}),
		backend: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "auth_backend_seconds",
			Help:      "Latency of calls to the authentication API.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "status"}),
	}
}

// ObserveSubmission counts one form submission.
func (m *Metrics) ObserveSubmission(mode, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(mode, outcome).Inc()
}

// ObserveBackend records the latency of one authentication API call. A zero
// status means the request never produced a response.
func (m *Metrics) ObserveBackend(endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.backend.WithLabelValues(endpoint, label).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
