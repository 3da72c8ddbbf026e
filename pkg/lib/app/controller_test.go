package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/environment"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/paths"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/readiness"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/supervisor"
)

type fakeWindow struct {
	mu        sync.Mutex
	events    []string
	content   Content
	created   chan struct{}
	createErr error
	notices   []string
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{created: make(chan struct{})}
}

func (w *fakeWindow) Create(content Content) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, "window.create")
	w.content = content
	close(w.created)
	return w.createErr
}

func (w *fakeWindow) Notify(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notices = append(w.notices, message)
}

func (w *fakeWindow) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, "window.destroy")
}

type fakeBackend struct {
	window   *fakeWindow
	startErr error
	stopErr  error
	release  chan struct{}
}

func (b *fakeBackend) Start(ctx context.Context) error {
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.window.mu.Lock()
	b.window.events = append(b.window.events, "backend.start")
	b.window.mu.Unlock()
	return b.startErr
}

func (b *fakeBackend) Stop(context.Context) error {
	b.window.mu.Lock()
	b.window.events = append(b.window.events, "backend.stop")
	b.window.mu.Unlock()
	return b.stopErr
}

type staticFrontend paths.Resolution

func (f staticFrontend) ResolveFrontend(lib.EnvironmentMode) paths.Resolution {
	return paths.Resolution(f)
}

var bundle = staticFrontend{Outcome: paths.Found, Path: "/res/app/index.html"}

func (w *fakeWindow) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.events...)
}

func runAsync(c *Controller, ctx context.Context) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	return errc
}

func TestRun_WindowWaitsForStartupBarrier(t *testing.T) {
	w := newFakeWindow()
	b := &fakeBackend{window: w, release: make(chan struct{})}
	c := NewController(lib.ModeProduction, b, bundle, w, nil)

	errc := runAsync(c, context.Background())

	select {
	case <-w.created:
		t.Fatal("window created before readiness concluded")
	case <-time.After(50 * time.Millisecond):
	}

	close(b.release)
	select {
	case <-w.created:
	case <-time.After(time.Second):
		t.Fatal("window not created")
	}

	c.Shutdown()
	c.Shutdown()
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"backend.start", "window.create", "backend.stop", "window.destroy"}, w.snapshot())
	assert.Equal(t, "/res/app/index.html", w.content.Location())
}

func TestRun_NonFatalFailureStillCreatesWindow(t *testing.T) {
	for _, kind := range []lib.ErrorKind{lib.KindPathNotFound, lib.KindSpawnFailure, lib.KindHealthCheckTimeout, lib.KindUnexpectedExit} {
		t.Run(string(kind), func(t *testing.T) {
			w := newFakeWindow()
			b := &fakeBackend{window: w, startErr: lib.NewError(kind, "failed")}
			c := NewController(lib.ModeProduction, b, bundle, w, nil)

			ctx, cancel := context.WithCancel(context.Background())
			errc := runAsync(c, ctx)
			<-w.created
			cancel()

			require.NoError(t, <-errc)
			assert.Equal(t, []string{"backend.start", "window.create", "backend.stop", "window.destroy"}, w.snapshot())
		})
	}
}

func TestRun_FatalFailureAborts(t *testing.T) {
	w := newFakeWindow()
	b := &fakeBackend{window: w, startErr: lib.NewError(lib.KindDirectoryCreation, "no data dir")}
	c := NewController(lib.ModeProduction, b, bundle, w, nil)

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, lib.ErrDirectoryCreation)
	assert.Equal(t, []string{"backend.start"}, w.snapshot())
}

func TestRun_ShutdownDuringStartupSkipsWindow(t *testing.T) {
	w := newFakeWindow()
	b := &fakeBackend{window: w, release: make(chan struct{})}
	c := NewController(lib.ModeDevelopment, b, bundle, w, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(c, ctx)
	cancel()

	require.NoError(t, <-errc)
	assert.Equal(t, []string{"backend.stop"}, w.snapshot())
}

func TestRun_ShutdownInterruptsStartup(t *testing.T) {
	w := newFakeWindow()
	b := &fakeBackend{window: w, release: make(chan struct{})}
	c := NewController(lib.ModeProduction, b, bundle, w, nil)

	errc := runAsync(c, context.Background())
	time.Sleep(20 * time.Millisecond)
	c.Shutdown()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run kept waiting on startup after Shutdown")
	}
	assert.Equal(t, []string{"backend.stop"}, w.snapshot())
}

// A development backend that never answers: Shutdown mid-poll ends the poll
// after the current attempt instead of running out the budget.
func TestRun_ShutdownStopsReadinessPolling(t *testing.T) {
	root := t.TempDir()
	var probes atomic.Int32
	poller := readiness.NewPoller(readiness.ProberFunc(func(context.Context) error {
		probes.Add(1)
		return errors.New("connection refused")
	}), readiness.Policy{MaxAttempts: 40, Interval: 50 * time.Millisecond, RequestTimeout: 20 * time.Millisecond})

	sup, err := supervisor.New(lib.ModeDevelopment,
		supervisor.WithEnvironment(environment.NewBuilder(environment.DataDirs{Development: filepath.Join(root, "data")})),
		supervisor.WithPoller(poller),
	)
	require.NoError(t, err)

	w := newFakeWindow()
	c := NewController(lib.ModeDevelopment, sup, bundle, w, nil)
	errc := runAsync(c, context.Background())

	require.Eventually(t, func() bool { return probes.Load() >= 2 }, time.Second, time.Millisecond)
	c.Shutdown()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Run did not return promptly after Shutdown")
	}
	seen := probes.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, seen, probes.Load(), "probing continued after shutdown")
	assert.Less(t, int(seen), 40)
	assert.Empty(t, w.snapshot())
	assert.NotEqual(t, supervisor.StateReady, sup.State())
}

func TestRun_WindowCreateErrorStopsBackend(t *testing.T) {
	w := newFakeWindow()
	w.createErr = errors.New("no display")
	b := &fakeBackend{window: w}
	c := NewController(lib.ModeProduction, b, bundle, w, nil)

	err := c.Run(context.Background())
	assert.EqualError(t, err, "no display")
	assert.Equal(t, []string{"backend.start", "window.create", "backend.stop"}, w.snapshot())
}

func TestRun_StopErrorIsReported(t *testing.T) {
	w := newFakeWindow()
	b := &fakeBackend{window: w, stopErr: errors.New("still running")}
	c := NewController(lib.ModeProduction, b, bundle, w, nil)

	errc := runAsync(c, context.Background())
	<-w.created
	c.Shutdown()
	assert.ErrorContains(t, <-errc, "still running")
}

// Production with no backend on disk: the supervisor fails, the window is
// still created and shutdown has nothing to stop.
func TestRun_MissingBackendScenario(t *testing.T) {
	root := t.TempDir()
	layout := paths.Layout{ResourceRoot: filepath.Join(root, "res"), ExecutableDir: filepath.Join(root, "bin"), Platform: "linux"}
	resolver := paths.NewResolver(layout)
	probes := 0
	poller := readiness.NewPoller(readiness.ProberFunc(func(context.Context) error {
		probes++
		return nil
	}), readiness.DefaultPolicy())

	sup, err := supervisor.New(lib.ModeProduction,
		supervisor.WithResolver(resolver),
		supervisor.WithEnvironment(environment.NewBuilder(environment.DataDirs{Production: filepath.Join(root, "res", "data")})),
		supervisor.WithPoller(poller),
	)
	require.NoError(t, err)

	w := newFakeWindow()
	c := NewController(lib.ModeProduction, sup, resolver, w, nil)
	errc := runAsync(c, context.Background())

	select {
	case <-w.created:
	case <-time.After(2 * time.Second):
		t.Fatal("window not created")
	}
	assert.Equal(t, supervisor.StateFailed, sup.State())
	assert.ErrorIs(t, sup.Failure(), lib.ErrPathNotFound)
	assert.False(t, sup.Owned())
	assert.Zero(t, probes)
	assert.Equal(t, paths.FoundRemote, w.content.Outcome)

	c.Shutdown()
	require.NoError(t, <-errc)
	assert.Equal(t, supervisor.StateFailed, sup.State())
}
