package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/environment"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/paths"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/readiness"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/runner"
)

const backendScript = `#!/bin/sh
trap 'echo terminated >> "$DATABASE_PATH/signals"; exit 0' TERM
echo "listening with $DATABASE_URL"
while :; do sleep 0.05; done
`

type fixture struct {
	root    string
	exe     string
	dataDir string
	probes  atomic.Int32
	notices chan string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	return &fixture{
		root:    root,
		exe:     filepath.Join(root, "res", "backend", "svc"),
		dataDir: filepath.Join(root, "res", "data"),
		notices: make(chan string, 8),
	}
}

func (f *fixture) installBackend(t *testing.T, script string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(f.exe), 0o755))
	require.NoError(t, os.WriteFile(f.exe, []byte(script), mode))
}

// readyAfter answers on attempt n; n <= 0 never answers.
func (f *fixture) readyAfter(n int) readiness.ProberFunc {
	return func(context.Context) error {
		if attempt := int(f.probes.Add(1)); n > 0 && attempt >= n {
			return nil
		}
		return errors.New("connection refused")
	}
}

func (f *fixture) supervisor(t *testing.T, mode lib.EnvironmentMode, prober readiness.Prober, policy readiness.Policy, opts ...Option) *Supervisor {
	t.Helper()
	resolver := paths.NewResolver(
		paths.Layout{ResourceRoot: filepath.Join(f.root, "res"), Platform: runtime.GOOS},
		paths.WithPlatformTable(paths.PlatformTable{
			runtime.GOOS: func(paths.Layout) []string { return []string{f.exe} },
		}),
	)
	base := []Option{
		WithResolver(resolver),
		WithEnvironment(environment.NewBuilder(environment.DataDirs{
			Development: filepath.Join(f.root, "dev", "data"),
			Production:  f.dataDir,
		})),
		WithPoller(readiness.NewPoller(prober, policy)),
		WithNotifier(NotifierFunc(func(msg string) { f.notices <- msg })),
		WithStopGrace(2 * time.Second),
		WithBaseEnvironment(func() []string { return []string{"PATH=" + os.Getenv("PATH")} }),
	}
	s, err := New(mode, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func fast(attempts int) readiness.Policy {
	return readiness.Policy{MaxAttempts: attempts, Interval: 10 * time.Millisecond, RequestTimeout: 50 * time.Millisecond}
}

func slow() readiness.Policy {
	return readiness.Policy{MaxAttempts: 30, Interval: time.Hour, RequestTimeout: 50 * time.Millisecond}
}

func (f *fixture) expectNotice(t *testing.T, contains string) {
	t.Helper()
	select {
	case msg := <-f.notices:
		assert.Contains(t, msg, contains)
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification containing %q", contains)
	}
}

func TestProduction_ReadyThenStop(t *testing.T) {
	f := newFixture(t)
	f.installBackend(t, backendScript, 0o755)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(3), fast(30))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateReady, s.State())
	assert.True(t, s.Owned())
	assert.EqualValues(t, 3, f.probes.Load())

	snap := s.Snapshot()
	assert.Equal(t, "ready", snap.State)
	assert.Equal(t, "production", snap.Mode)
	assert.Equal(t, f.exe, snap.ExecutablePath)
	assert.Equal(t, f.dataDir, snap.DataDir)
	assert.Equal(t, 3, snap.Attempts)
	assert.Positive(t, snap.PID)
	assert.NotEmpty(t, snap.RunID)
	assert.NotNil(t, snap.ReadyAt)

	require.Eventually(t, func() bool {
		return strings.Contains(s.Snapshot().Tail.Stdout, "listening with sqlite:///"+filepath.Join(f.dataDir, "psi_forecast.db"))
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StateStopped, s.State())
	assert.False(t, s.Owned())

	signals, err := os.ReadFile(filepath.Join(f.dataDir, "signals"))
	require.NoError(t, err)
	assert.Equal(t, "terminated\n", string(signals))

	// a stop after exit is a no-op
	require.NoError(t, s.Stop(context.Background()))
	select {
	case msg := <-f.notices:
		t.Fatalf("unexpected notification %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
	require.Eventually(t, func() bool { return s.Snapshot().ExitCode != nil }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, *s.Snapshot().ExitCode)
}

func TestProduction_BackendMissing(t *testing.T) {
	f := newFixture(t)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(1), fast(30))

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lib.ErrPathNotFound)
	assert.False(t, lib.IsFatal(err))
	assert.Contains(t, err.Error(), f.exe)

	assert.Equal(t, StateFailed, s.State())
	assert.False(t, s.Owned())
	assert.Zero(t, f.probes.Load())
	assert.Equal(t, string(lib.KindPathNotFound), s.Snapshot().FailureKind)

	// the data directory is still prepared
	_, statErr := os.Stat(f.dataDir)
	assert.NoError(t, statErr)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StateFailed, s.State())
}

func TestProduction_SpawnFailureNotifies(t *testing.T) {
	f := newFixture(t)
	f.installBackend(t, backendScript, 0o644)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(1), fast(30))

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, lib.ErrSpawnFailure)
	assert.NotErrorIs(t, err, lib.ErrPathNotFound)
	assert.Equal(t, StateFailed, s.State())
	assert.False(t, s.Owned())
	f.expectNotice(t, "could not be started")
}

func TestProduction_SpawnerErrorIsClassified(t *testing.T) {
	f := newFixture(t)
	f.installBackend(t, backendScript, 0o755)
	spawner := spawnerFunc(func(runner.Spec) (Handle, error) { return nil, errors.New("boom") })
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(1), fast(30), WithSpawner(spawner))

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, lib.ErrSpawnFailure)
	assert.Contains(t, err.Error(), "boom")
}

type spawnerFunc func(runner.Spec) (Handle, error)

func (f spawnerFunc) Spawn(spec runner.Spec) (Handle, error) { return f(spec) }

func TestProduction_HealthCheckTimeoutKeepsProcess(t *testing.T) {
	f := newFixture(t)
	f.installBackend(t, backendScript, 0o755)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(0), fast(3))

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, lib.ErrHealthCheckTimeout)
	assert.False(t, lib.IsFatal(err))
	assert.Equal(t, StateFailed, s.State())
	assert.EqualValues(t, 3, f.probes.Load())
	assert.True(t, s.Owned())

	err = s.Start(context.Background())
	assert.ErrorIs(t, err, lib.ErrAlreadyRunning)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Owned())
	assert.Equal(t, StateStopped, s.State())
}

func TestProduction_ExitBeforeReady(t *testing.T) {
	f := newFixture(t)
	f.installBackend(t, "#!/bin/sh\necho 'port in use' >&2\nexit 4\n", 0o755)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(0), slow())

	start := time.Now()
	err := s.Start(context.Background())
	assert.ErrorIs(t, err, lib.ErrUnexpectedExit)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateFailed, s.State())
	assert.False(t, s.Owned())

	snap := s.Snapshot()
	require.NotNil(t, snap.ExitCode)
	assert.Equal(t, 4, *snap.ExitCode)
	assert.Contains(t, snap.Failure, "exit_code=4")
	f.expectNotice(t, "stopped unexpectedly")

	require.Eventually(t, func() bool {
		return strings.Contains(s.Snapshot().Tail.Stderr, "port in use")
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
}

func TestProduction_ExitAfterReady(t *testing.T) {
	f := newFixture(t)
	f.installBackend(t, "#!/bin/sh\nsleep 0.3\nexit 1\n", 0o755)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(1), fast(30))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateReady, s.State())

	require.Eventually(t, func() bool { return s.State() == StateStopped }, 3*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, s.Failure(), lib.ErrUnexpectedExit)
	assert.False(t, s.Owned())
	f.expectNotice(t, "stopped unexpectedly")

	// nothing left to stop, and a new start is allowed
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StateStopped, s.State())
}

func TestProduction_RestartAfterStop(t *testing.T) {
	f := newFixture(t)
	f.installBackend(t, backendScript, 0o755)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(1), fast(30))

	require.NoError(t, s.Start(context.Background()))
	first := s.Snapshot()
	require.NoError(t, s.Stop(context.Background()))

	require.NoError(t, s.Start(context.Background()))
	second := s.Snapshot()
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.NotEqual(t, first.PID, second.PID)
	assert.Equal(t, StateReady, s.State())
}

func TestDevelopment_NoSpawn(t *testing.T) {
	f := newFixture(t)
	spawned := false
	spawner := spawnerFunc(func(runner.Spec) (Handle, error) {
		spawned = true
		return nil, errors.New("unexpected spawn")
	})
	s := f.supervisor(t, lib.ModeDevelopment, f.readyAfter(2), fast(30), WithSpawner(spawner))

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, spawned)
	assert.Equal(t, StateReady, s.State())
	assert.False(t, s.Owned())
	assert.Equal(t, filepath.Join(f.root, "dev", "data"), s.Snapshot().DataDir)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StateStopped, s.State())
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	f := newFixture(t)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(1), fast(30))

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StateIdle, s.State())
}

func TestStopDuringReadinessWait(t *testing.T) {
	f := newFixture(t)
	s := f.supervisor(t, lib.ModeDevelopment, f.readyAfter(0), slow())

	errc := make(chan error, 1)
	go func() { errc <- s.Start(context.Background()) }()
	require.Eventually(t, func() bool { return f.probes.Load() >= 1 }, time.Second, time.Millisecond)

	// a second start while the first is in flight is rejected
	assert.ErrorIs(t, s.Start(context.Background()), lib.ErrAlreadyRunning)

	require.NoError(t, s.Stop(context.Background()))

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrStopRequested)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
	assert.Equal(t, StateStopped, s.State())
	assert.EqualValues(t, 1, f.probes.Load())
}

func TestStopDuringReadinessWaitTerminatesProcess(t *testing.T) {
	f := newFixture(t)
	f.installBackend(t, backendScript, 0o755)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(0), slow())

	errc := make(chan error, 1)
	go func() { errc <- s.Start(context.Background()) }()
	require.Eventually(t, func() bool { return s.State() == StateAwaitingReadiness }, 2*time.Second, time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	assert.ErrorIs(t, <-errc, ErrStopRequested)
	assert.False(t, s.Owned())
	assert.Equal(t, StateStopped, s.State())
	assert.Empty(t, f.notices)
}

func TestStopWithEndedContextKeepsOwnershipUntilExit(t *testing.T) {
	f := newFixture(t)
	f.installBackend(t, "#!/bin/sh\ntrap '' TERM\nwhile :; do sleep 0.05; done\n", 0o755)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(1), fast(30), WithStopGrace(200*time.Millisecond))

	require.NoError(t, s.Start(context.Background()))
	pid := s.Snapshot().PID

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.Canceled)
	assert.Equal(t, StateStopped, s.State())
	assert.True(t, s.Owned(), "a process that ignored SIGTERM must stay owned")
	assert.ErrorIs(t, s.Start(context.Background()), lib.ErrAlreadyRunning)

	// termination escalates to SIGKILL in the background
	require.Eventually(t, func() bool { return !s.Owned() }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "SIGKILL", s.Snapshot().ExitSignal)
	assert.Empty(t, f.notices)

	require.NoError(t, s.Start(context.Background()))
	assert.NotEqual(t, pid, s.Snapshot().PID)
}

func TestDirectoryCreationFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(f.root, "res")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(1), fast(30))

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, lib.ErrDirectoryCreation)
	assert.True(t, lib.IsFatal(err))
	assert.Equal(t, StateFailed, s.State())
	assert.Zero(t, f.probes.Load())
}

func TestStartCancelledByCaller(t *testing.T) {
	f := newFixture(t)
	s := f.supervisor(t, lib.ModeDevelopment, f.readyAfter(0), slow())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for f.probes.Load() < 1 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	err := s.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, s.State())
}

func TestNewRequiresComponents(t *testing.T) {
	_, err := New(lib.ModeDevelopment)
	assert.Error(t, err)

	env := environment.NewBuilder(environment.DataDirs{Development: t.TempDir()})
	poller := readiness.NewPoller(readiness.ProberFunc(func(context.Context) error { return nil }), fast(1))

	_, err = New(lib.ModeProduction, WithEnvironment(env), WithPoller(poller))
	assert.Error(t, err)

	s, err := New(lib.ModeDevelopment, WithEnvironment(env), WithPoller(poller))
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())
}

func TestOutputBeforeStart(t *testing.T) {
	f := newFixture(t)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(1), fast(30))
	_, _, ok := s.Output(context.Background())
	assert.False(t, ok)
}

func TestOutputStreamsBacklog(t *testing.T) {
	f := newFixture(t)
	f.installBackend(t, "#!/bin/sh\necho one\necho two\n", 0o755)
	s := f.supervisor(t, lib.ModeProduction, f.readyAfter(0), slow())

	_ = s.Start(context.Background())
	stdout, stderr, ok := s.Output(context.Background())
	require.True(t, ok)

	var out strings.Builder
	for chunk := range stdout {
		out.Write(chunk)
	}
	for range stderr {
	}
	assert.Equal(t, "one\ntwo\n", out.String())
}
