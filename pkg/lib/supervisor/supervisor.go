// Package supervisor owns the backend process: it prepares the environment,
// spawns the executable in production, waits for it to answer and stops it on
// shutdown. At most one process is owned at any time.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/environment"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/paths"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/readiness"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/relay"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/runner"
)

const (
	DefaultStopGrace = 5 * time.Second

	tailBytes = 4 << 10
)

var (
	// ErrStopRequested is the cancellation cause when Stop interrupts a start.
	ErrStopRequested = errors.New("stop requested")

	errExitedEarly = errors.New("backend exited before it was ready")
)

// BackendResolver locates the backend executable.
type BackendResolver interface {
	ResolveBackendExecutable(mode lib.EnvironmentMode) paths.Resolution
}

// EnvironmentBuilder derives the backend environment and prepares its data directory.
type EnvironmentBuilder interface {
	Build(mode lib.EnvironmentMode) (environment.BackendEnvironment, error)
}

// ReadinessWaiter blocks until the backend answers.
type ReadinessWaiter interface {
	AwaitReady(ctx context.Context) (readiness.Result, error)
}

// Handle is an owned process.
type Handle interface {
	PID() int
	Done() <-chan struct{}
	Status() lib.ProcessStatus
	Stop(ctx context.Context, grace time.Duration) error
	OutputContext(ctx context.Context) (stdout, stderr <-chan []byte)
	Tail(n int) (stdout, stderr []byte)
}

// Spawner starts a process.
type Spawner interface {
	Spawn(spec runner.Spec) (Handle, error)
}

// RunnerSpawner spawns through a runner.Runner.
type RunnerSpawner struct {
	Runner *runner.Runner
}

func (r RunnerSpawner) Spawn(spec runner.Spec) (Handle, error) {
	p, err := r.Runner.Start(spec)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Notifier surfaces backend failures to the user. Calls are made from their
// own goroutine and may be slow or fail silently.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// OutputTail is the most recent retained output of the owned process.
type OutputTail struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Status is a point-in-time view of the supervisor.
type Status struct {
	RunID          string     `json:"run_id,omitempty"`
	Mode           string     `json:"mode"`
	State          string     `json:"state"`
	Failure        string     `json:"failure,omitempty"`
	FailureKind    string     `json:"failure_kind,omitempty"`
	PID            int        `json:"pid,omitempty"`
	ExecutablePath string     `json:"executable_path,omitempty"`
	DataDir        string     `json:"data_dir,omitempty"`
	Attempts       int        `json:"attempts"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ReadyAt        *time.Time `json:"ready_at,omitempty"`
	ExitedAt       *time.Time `json:"exited_at,omitempty"`
	ExitCode       *int       `json:"exit_code,omitempty"`
	ExitSignal     string     `json:"exit_signal,omitempty"`
	Tail           OutputTail `json:"tail"`
}

// Supervisor runs the backend lifecycle state machine.
type Supervisor struct {
	mode        lib.EnvironmentMode
	resolver    BackendResolver
	environment EnvironmentBuilder
	poller      ReadinessWaiter
	spawner     Spawner
	notifier    Notifier
	metrics     MetricsCollector
	logger      *slog.Logger
	stopGrace   time.Duration
	args        []string
	baseEnv     func() []string

	mu            sync.Mutex
	state         State
	inFlight      bool
	stopRequested bool
	handle        Handle
	last          Handle // most recent handle, kept for output after exit
	cancelPoll    context.CancelCauseFunc
	failure       error
	status        Status
}

// New creates a Supervisor for mode. WithEnvironment and WithPoller are
// required, and so is WithResolver in production.
func New(mode lib.EnvironmentMode, opts ...Option) (*Supervisor, error) {
	s := &Supervisor{
		mode:      mode,
		spawner:   RunnerSpawner{Runner: runner.NewRunner()},
		notifier:  NotifierFunc(func(string) {}),
		metrics:   NewNoopMetricsCollector(),
		logger:    slog.New(slog.DiscardHandler),
		stopGrace: DefaultStopGrace,
		baseEnv:   os.Environ,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch {
	case s.environment == nil:
		return nil, errors.New("supervisor: environment builder is required")
	case s.poller == nil:
		return nil, errors.New("supervisor: readiness poller is required")
	case s.resolver == nil && mode == lib.ModeProduction:
		return nil, errors.New("supervisor: backend resolver is required in production")
	}
	s.logger = s.logger.With("component", "supervisor")
	return s, nil
}

// Mode returns the environment mode the supervisor was built for.
func (s *Supervisor) Mode() lib.EnvironmentMode { return s.mode }

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failure returns the error that moved the supervisor to Failed, or the
// unexpected exit that stopped it.
func (s *Supervisor) Failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// setStateLocked must be called with s.mu held.
func (s *Supervisor) setStateLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.status.State = to.String()
	s.metrics.StateTransition(from, to)
	s.logger.Info("supervisor state changed", "from", from.String(), "to", to.String(), "run_id", s.status.RunID)
}

// failLocked must be called with s.mu held. A failure observed after Stop is
// recorded but leaves the supervisor Stopped.
func (s *Supervisor) failLocked(err error) {
	kind := lib.KindOf(err)
	if kind == "" {
		kind = "UNKNOWN"
	}
	s.failure = err
	s.status.Failure = err.Error()
	s.status.FailureKind = string(kind)
	s.metrics.Failure(kind)
	if s.stopRequested && s.state == StateStopped {
		return
	}
	s.setStateLocked(StateFailed)
}

// Start runs the startup sequence and returns once readiness has concluded.
// The returned error is nil when the backend answered; otherwise it carries
// the failure kind. Only DIRECTORY_CREATION_FAILURE is meant to abort the
// application.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight || s.handle != nil {
		state := s.state
		s.mu.Unlock()
		return lib.NewError(lib.KindAlreadyRunning, "backend is already starting or running").
			WithContext("state", state.String())
	}
	s.inFlight = true
	s.stopRequested = false
	s.failure = nil
	now := time.Now()
	s.status = Status{RunID: lib.NewID(), Mode: s.mode.String(), State: s.state.String(), StartedAt: &now}
	runID := s.status.RunID
	s.setStateLocked(StateStarting)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	logger := s.logger.With("run_id", runID, "mode", s.mode.String())

	env, err := s.environment.Build(s.mode)
	if err != nil {
		logger.Error("backend environment unavailable", "error", err)
		s.mu.Lock()
		s.failLocked(err)
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.status.DataDir = env.DataDir
	s.mu.Unlock()
	logger.Info("backend environment ready", "data_dir", env.DataDir)

	var handle Handle
	if s.mode == lib.ModeProduction {
		handle, err = s.spawn(logger, env)
		if err != nil {
			return err
		}
	} else {
		logger.Info("development mode, expecting an externally started backend")
	}

	pollCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.mu.Lock()
	if s.stopRequested {
		// Stop arrived while the process was being spawned.
		s.mu.Unlock()
		if handle != nil {
			_ = handle.Stop(context.WithoutCancel(ctx), s.stopGrace)
		}
		return ErrStopRequested
	}
	s.handle = handle
	if handle != nil {
		s.last = handle
		s.status.PID = handle.PID()
	}
	s.cancelPoll = cancel
	s.setStateLocked(StateAwaitingReadiness)
	s.mu.Unlock()

	if handle != nil {
		go s.watch(handle, runID, cancel, logger)
	}

	res, err := s.poller.AwaitReady(pollCtx)
	s.metrics.ReadinessConcluded(res.Outcome.String(), res.Attempts, res.Elapsed)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPoll = nil
	s.status.Attempts = res.Attempts

	switch {
	case err == nil:
		if s.state != StateAwaitingReadiness {
			// the exit watcher or Stop got there first
			return s.outcomeLocked()
		}
		ready := time.Now()
		s.status.ReadyAt = &ready
		s.setStateLocked(StateReady)
		logger.Info("backend is ready", "attempts", res.Attempts, "elapsed", res.Elapsed)
		return nil

	case res.Outcome == readiness.Cancelled:
		cause := context.Cause(pollCtx)
		if errors.Is(cause, errExitedEarly) || errors.Is(cause, ErrStopRequested) {
			return s.outcomeLocked()
		}
		logger.Warn("readiness wait abandoned", "attempts", res.Attempts, "cause", cause)
		if s.state == StateAwaitingReadiness {
			s.failLocked(cause)
		}
		return cause

	default:
		logger.Warn("backend did not become ready, continuing without it",
			"attempts", res.Attempts,
			"elapsed", res.Elapsed,
			"last_error", res.LastErr,
		)
		if s.state == StateAwaitingReadiness {
			s.failLocked(err)
			return err
		}
		return s.outcomeLocked()
	}
}

// outcomeLocked reports how a start that was overtaken by another transition ended.
func (s *Supervisor) outcomeLocked() error {
	if s.state == StateStopped && s.stopRequested {
		return ErrStopRequested
	}
	if s.failure != nil {
		return s.failure
	}
	return ErrStopRequested
}

func (s *Supervisor) spawn(logger *slog.Logger, env environment.BackendEnvironment) (Handle, error) {
	res := s.resolver.ResolveBackendExecutable(s.mode)
	if !res.Found() {
		err := lib.NewError(lib.KindPathNotFound, "backend executable not found").
			WithContext("tried", res.Tried).
			WithContext("mode", s.mode.String())
		logger.Error("backend will not start", "error", err)
		s.mu.Lock()
		s.failLocked(err)
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.status.ExecutablePath = res.Path
	s.mu.Unlock()

	logger.Info("starting backend", "path", res.Path, "data_dir", env.DataDir)
	handle, err := s.spawner.Spawn(runner.Spec{
		Path: res.Path,
		Args: s.args,
		Env:  env.Merge(s.baseEnv()),
	})
	if err != nil {
		if lib.KindOf(err) != lib.KindSpawnFailure {
			err = lib.NewError(lib.KindSpawnFailure, "start backend").
				WithContext("path", res.Path).
				WithCause(err)
		}
		logger.Error("backend failed to start", "error", err)
		s.mu.Lock()
		s.failLocked(err)
		s.mu.Unlock()
		s.notify(fmt.Sprintf("The backend could not be started: %v", err))
		return nil, err
	}

	stdout, stderr := handle.OutputContext(context.Background())
	relay.New(logger).Attach(stdout, stderr)
	logger.Info("backend started", "pid", handle.PID())
	return handle, nil
}

// watch observes the exit of handle and applies the matching transition.
func (s *Supervisor) watch(handle Handle, runID string, cancelPoll context.CancelCauseFunc, logger *slog.Logger) {
	<-handle.Done()
	st := handle.Status()

	s.mu.Lock()
	if s.handle == handle {
		s.handle = nil
	}
	if s.status.RunID != runID {
		s.mu.Unlock()
		return
	}
	s.status.ExitCode = st.ExitCode
	s.status.ExitSignal = st.Signal
	s.status.ExitedAt = st.EndTime

	expected := s.stopRequested
	s.metrics.ProcessExited(expected)
	if expected {
		s.mu.Unlock()
		logger.Info("backend exited after stop", "pid", st.PID, "exit_code", st.ExitCode, "signal", st.Signal)
		return
	}

	err := lib.NewError(lib.KindUnexpectedExit, "backend exited unexpectedly").
		WithContext("pid", st.PID).
		WithContext("state", s.state.String())
	if st.ExitCode != nil {
		err = err.WithContext("exit_code", *st.ExitCode)
	}
	if st.Signal != "" {
		err = err.WithContext("signal", st.Signal)
	}

	if s.state == StateReady {
		s.failure = err
		s.status.Failure = err.Error()
		s.status.FailureKind = string(err.Kind)
		s.metrics.Failure(err.Kind)
		s.setStateLocked(StateStopped)
	} else {
		s.failLocked(err)
		cancelPoll(errExitedEarly)
	}
	s.mu.Unlock()

	logger.Error("backend exited unexpectedly", "error", err)
	s.notify(fmt.Sprintf("The backend stopped unexpectedly: %v", err))
}

func (s *Supervisor) notify(message string) {
	go s.notifier.Notify(message)
}

// Stop cancels a readiness wait in progress and terminates the owned process,
// waiting for it to exit. With nothing owned it returns nil without side effects.
//
// The process stays owned until it has exited. If ctx ends first, termination
// carries on in the background and Start keeps refusing until the exit.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	handle := s.handle
	if handle == nil && !s.state.active() {
		s.mu.Unlock()
		return nil
	}
	s.stopRequested = true
	if s.cancelPoll != nil {
		s.cancelPoll(ErrStopRequested)
	}
	s.setStateLocked(StateStopped)
	s.mu.Unlock()

	if handle == nil {
		return nil
	}

	s.logger.Info("stopping backend", "pid", handle.PID(), "grace", s.stopGrace)
	if err := handle.Stop(ctx, s.stopGrace); err != nil {
		s.logger.Warn("backend did not stop in time, terminating in the background", "pid", handle.PID(), "error", err)
		go func() {
			if err := handle.Stop(context.WithoutCancel(ctx), s.stopGrace); err != nil {
				s.logger.Error("backend could not be terminated", "pid", handle.PID(), "error", err)
			}
		}()
		return err
	}

	s.mu.Lock()
	if s.handle == handle {
		s.handle = nil
	}
	s.mu.Unlock()
	return nil
}

// Owned reports whether a live process is owned.
func (s *Supervisor) Owned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// Snapshot returns the current status.
func (s *Supervisor) Snapshot() Status {
	s.mu.Lock()
	st := s.status
	st.Mode = s.mode.String()
	st.State = s.state.String()
	last := s.last
	s.mu.Unlock()

	if last != nil {
		stdout, stderr := last.Tail(tailBytes)
		st.Tail = OutputTail{Stdout: string(stdout), Stderr: string(stderr)}
	}
	return st
}

// Output subscribes to the most recent process's output. ok is false when no
// process has been started.
func (s *Supervisor) Output(ctx context.Context) (stdout, stderr <-chan []byte, ok bool) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		return nil, nil, false
	}
	stdout, stderr = last.OutputContext(ctx)
	return stdout, stderr, true
}
