// Package app ties the supervisor to the window: the window is only created
// once the backend's readiness wait has concluded, and the backend is stopped
// when the application shuts down.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/paths"
)

// Content is what the window should load.
type Content struct {
	paths.Resolution
}

// Window is the surface the user sees.
type Window interface {
	// Create builds the window and loads content.
	Create(content Content) error
	// Notify shows an error message. It may be called from any goroutine.
	Notify(message string)
	// Destroy releases the window.
	Destroy()
}

// Backend is the part of the supervisor the controller drives.
type Backend interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// FrontendResolver locates the UI entry point.
type FrontendResolver interface {
	ResolveFrontend(mode lib.EnvironmentMode) paths.Resolution
}

// errShutdownRequested cancels a startup interrupted by Shutdown.
var errShutdownRequested = errors.New("shutdown requested")

// Controller runs the application lifecycle.
type Controller struct {
	mode     lib.EnvironmentMode
	backend  Backend
	frontend FrontendResolver
	window   Window
	logger   *slog.Logger

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// NewController creates a Controller.
func NewController(mode lib.EnvironmentMode, backend Backend, frontend FrontendResolver, window Window, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		mode:     mode,
		backend:  backend,
		frontend: frontend,
		window:   window,
		logger:   logger.With("component", "app"),
		shutdown: make(chan struct{}),
	}
}

// Shutdown asks Run to stop, interrupting a readiness wait in progress. It is
// safe to call more than once and from any goroutine.
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() { close(c.shutdown) })
}

// Run starts the backend, waits for its readiness to conclude, creates the
// window and then blocks until ctx ends or Shutdown is called. Backend
// failures leave the application running without it; only a fatal failure
// is returned before the window is created.
func (c *Controller) Run(ctx context.Context) error {
	startCtx, cancelStart := context.WithCancelCause(ctx)
	go func() {
		select {
		case <-c.shutdown:
			cancelStart(errShutdownRequested)
		case <-startCtx.Done():
		}
	}()
	startErr := c.backend.Start(startCtx)
	interrupted := startCtx.Err() != nil
	cancelStart(nil)

	switch {
	case startErr == nil:
	case lib.IsFatal(startErr):
		c.logger.Error("startup aborted", "error", startErr)
		return startErr
	case interrupted:
		c.logger.Info("startup interrupted", "cause", context.Cause(startCtx))
	default:
		c.logger.Warn("continuing without a ready backend",
			"kind", string(lib.KindOf(startErr)),
			"error", startErr,
			"mode", c.mode.String(),
		)
	}

	stopCtx := context.WithoutCancel(ctx)

	// shutdown during startup skips the window entirely
	select {
	case <-ctx.Done():
		return c.stop(stopCtx, nil)
	case <-c.shutdown:
		return c.stop(stopCtx, nil)
	default:
	}

	content := Content{Resolution: c.frontend.ResolveFrontend(c.mode)}
	c.logger.Info("creating window", "frontend", content.Location(), "outcome", content.Outcome.String())
	if err := c.window.Create(content); err != nil {
		c.logger.Error("window creation failed", "error", err)
		return c.stop(stopCtx, err)
	}

	select {
	case <-ctx.Done():
	case <-c.shutdown:
	}
	c.logger.Info("shutting down")
	err := c.stop(stopCtx, nil)
	c.window.Destroy()
	return err
}

func (c *Controller) stop(ctx context.Context, cause error) error {
	if err := c.backend.Stop(ctx); err != nil {
		c.logger.Warn("backend stop failed", "error", err)
		return errors.Join(cause, err)
	}
	return cause
}
