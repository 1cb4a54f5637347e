package redislite

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "redislite"

// PrometheusMetrics is a MetricsCollector backed by Prometheus collectors
type PrometheusMetrics struct {
	registry *prometheus.Registry

	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	networkBytes    prometheus.Counter
	keys            prometheus.Gauge
	snapshotKeys    prometheus.Gauge
	snapshotSeconds prometheus.Gauge
}

// NewPrometheusMetrics creates a collector registered on its own registry
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_processed_total",
			Help:      "Commands processed, by command name",
		}, []string{"command"}),

		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent parsing, executing and replying to a command",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}, []string{"command"}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Errors, by type",
		}, []string{"type"}),

		networkBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "network_read_bytes_total",
			Help:      "Bytes read from client connections",
		}),

		keys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "keys",
			Help:      "Keys currently held in the store",
		}),

		snapshotKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "snapshot",
			Name:      "keys_loaded",
			Help:      "Keys loaded from the snapshot at startup",
		}),

		snapshotSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "snapshot",
			Name:      "load_duration_seconds",
			Help:      "Time spent loading the snapshot at startup",
		}),
	}

	m.registry.MustRegister(
		m.commandsTotal,
		m.commandDuration,
		m.errorsTotal,
		m.networkBytes,
		m.keys,
		m.snapshotKeys,
		m.snapshotSeconds,
		prometheus.NewGoCollector(),
	)

	return m
}

// Registry returns the registry holding the collectors
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PrometheusMetrics) RecordSnapshotLoad(keys int64, duration time.Duration) {
	m.snapshotKeys.Set(float64(keys))
	m.snapshotSeconds.Set(duration.Seconds())
}

func (m *PrometheusMetrics) RecordCommandProcessed(cmd string, duration time.Duration) {
	m.commandsTotal.WithLabelValues(cmd).Inc()
	m.commandDuration.WithLabelValues(cmd).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordNetworkBytes(bytes int64) {
	m.networkBytes.Add(float64(bytes))
}

func (m *PrometheusMetrics) RecordKeyCount(count int64) {
	m.keys.Set(float64(count))
}

func (m *PrometheusMetrics) RecordError(errorType string) {
	m.errorsTotal.WithLabelValues(errorType).Inc()
}
