package supervisor

import (
	"log/slog"
	"time"
)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithResolver sets how the backend executable is located.
func WithResolver(resolver BackendResolver) Option {
	return func(s *Supervisor) {
		s.resolver = resolver
	}
}

// WithEnvironment sets how the backend environment is derived.
func WithEnvironment(builder EnvironmentBuilder) Option {
	return func(s *Supervisor) {
		s.environment = builder
	}
}

// WithPoller sets the readiness wait.
func WithPoller(poller ReadinessWaiter) Option {
	return func(s *Supervisor) {
		s.poller = poller
	}
}

// WithSpawner replaces the process spawner.
func WithSpawner(spawner Spawner) Option {
	return func(s *Supervisor) {
		s.spawner = spawner
	}
}

// WithNotifier sets who is told about backend failures.
func WithNotifier(notifier Notifier) Option {
	return func(s *Supervisor) {
		s.notifier = notifier
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Supervisor) {
		s.metrics = collector
	}
}

// WithLogger sets the supervisor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithStopGrace sets how long a stopped backend may take to exit before it is killed.
func WithStopGrace(grace time.Duration) Option {
	return func(s *Supervisor) {
		s.stopGrace = grace
	}
}

// WithArgs sets extra arguments for the backend executable.
func WithArgs(args ...string) Option {
	return func(s *Supervisor) {
		s.args = append([]string(nil), args...)
	}
}

// WithBaseEnvironment replaces os.Environ as the environment the derived
// variables are merged over.
func WithBaseEnvironment(fn func() []string) Option {
	return func(s *Supervisor) {
		s.baseEnv = fn
	}
}
