package supervisor

import (
	"time"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/readiness"
)

// MetricsCollector receives supervisor events.
type MetricsCollector interface {
	// StateTransition records a move between states.
	StateTransition(from, to State)

	// ProbeAttempt records one readiness probe.
	ProbeAttempt(success bool)

	// ReadinessConcluded records how a readiness wait ended.
	ReadinessConcluded(outcome string, attempts int, elapsed time.Duration)

	// ProcessExited records an owned process exit; expected is true when a stop was requested.
	ProcessExited(expected bool)

	// Failure records a failure by kind.
	Failure(kind lib.ErrorKind)
}

// noopMetricsCollector is a no-op implementation of MetricsCollector
type noopMetricsCollector struct{}

func (n *noopMetricsCollector) StateTransition(from, to State)                {}
func (n *noopMetricsCollector) ProbeAttempt(success bool)                     {}
func (n *noopMetricsCollector) ReadinessConcluded(string, int, time.Duration) {}
func (n *noopMetricsCollector) ProcessExited(expected bool)                   {}
func (n *noopMetricsCollector) Failure(kind lib.ErrorKind)                    {}

// NewNoopMetricsCollector creates a no-op metrics collector
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}

// ProbeObserver feeds readiness attempts into collector.
func ProbeObserver(collector MetricsCollector) readiness.Observer {
	return func(_ int, err error) {
		collector.ProbeAttempt(err == nil)
	}
}
