package supervisor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	stateTransitions *prometheus.CounterVec
	state            *prometheus.GaugeVec

	probeAttempts     *prometheus.CounterVec
	readinessDuration *prometheus.HistogramVec
	readinessAttempts prometheus.Gauge

	processExits *prometheus.CounterVec
	failures     *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a collector with its own registry.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "psi_launcher"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supervisor_state_transitions_total",
			Help:      "Total number of supervisor state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	pmc.state = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "supervisor_state",
			Help:      "Current supervisor state (1 for the active state)",
		},
		[]string{"state"},
	)

	pmc.probeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_probe_attempts_total",
			Help:      "Total number of readiness probes",
		},
		[]string{"result"},
	)

	pmc.readinessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "readiness_wait_duration_seconds",
			Help:      "Time spent waiting for the backend to answer",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	pmc.readinessAttempts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "readiness_attempts_last",
			Help:      "Attempts used by the most recent readiness wait",
		},
	)

	pmc.processExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_exits_total",
			Help:      "Total number of backend process exits",
		},
		[]string{"expected"},
	)

	pmc.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supervisor_failures_total",
			Help:      "Total number of supervisor failures by kind",
		},
		[]string{"kind"},
	)

	pmc.registry.MustRegister(
		pmc.stateTransitions,
		pmc.state,
		pmc.probeAttempts,
		pmc.readinessDuration,
		pmc.readinessAttempts,
		pmc.processExits,
		pmc.failures,
	)

	for _, s := range AllStates {
		pmc.state.WithLabelValues(s.String()).Set(0)
	}
	pmc.state.WithLabelValues(StateIdle.String()).Set(1)

	return pmc
}

// StateTransition records a state transition
func (pmc *PrometheusMetricsCollector) StateTransition(from, to State) {
	pmc.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	pmc.state.WithLabelValues(from.String()).Set(0)
	pmc.state.WithLabelValues(to.String()).Set(1)
}

// ProbeAttempt records a readiness probe
func (pmc *PrometheusMetricsCollector) ProbeAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	pmc.probeAttempts.WithLabelValues(result).Inc()
}

// ReadinessConcluded records the end of a readiness wait
func (pmc *PrometheusMetricsCollector) ReadinessConcluded(outcome string, attempts int, elapsed time.Duration) {
	pmc.readinessDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	pmc.readinessAttempts.Set(float64(attempts))
}

// ProcessExited records a backend exit
func (pmc *PrometheusMetricsCollector) ProcessExited(expected bool) {
	label := "false"
	if expected {
		label = "true"
	}
	pmc.processExits.WithLabelValues(label).Inc()
}

// Failure records a failure
func (pmc *PrometheusMetricsCollector) Failure(kind lib.ErrorKind) {
	pmc.failures.WithLabelValues(string(kind)).Inc()
}

// Registry returns the collector's registry.
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (pmc *PrometheusMetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(pmc.registry, promhttp.HandlerOpts{})
}
