package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/app"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/config"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/diagnostics"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/environment"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/paths"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/readiness"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/supervisor"
)

const diagnosticsShutdownTimeout = 3 * time.Second

// launcher holds the wired application.
type launcher struct {
	cfg        *config.Config
	logger     *slog.Logger
	supervisor *supervisor.Supervisor
	window     *app.HeadlessWindow
	controller *app.Controller
	diag       *diagnostics.Server
}

func newLauncher(cfg *config.Config, logger *slog.Logger) (*launcher, error) {
	mode := cfg.EnvironmentMode()

	var metrics supervisor.MetricsCollector = supervisor.NewNoopMetricsCollector()
	var metricsHandler http.Handler
	if cfg.Diagnostics.Metrics {
		collector := supervisor.NewPrometheusMetricsCollector("")
		metrics = collector
		metricsHandler = collector.Handler()
	}

	resolver := paths.NewResolver(cfg.Layout(), paths.WithLogger(logger))
	builder := environment.NewBuilder(cfg.DataDirs(), environment.WithLogger(logger))
	poller := readiness.NewHTTPPoller(cfg.Backend.HealthURL, cfg.ReadinessPolicy(),
		readiness.WithLogger(logger),
		readiness.WithObserver(supervisor.ProbeObserver(metrics)),
	)
	window := app.NewHeadlessWindow(cfg.Paths.FrontendDevURL, logger)

	sup, err := supervisor.New(mode,
		supervisor.WithResolver(resolver),
		supervisor.WithEnvironment(builder),
		supervisor.WithPoller(poller),
		supervisor.WithNotifier(window),
		supervisor.WithMetrics(metrics),
		supervisor.WithLogger(logger),
		supervisor.WithStopGrace(cfg.StopGrace()),
		supervisor.WithArgs(cfg.Backend.Args...),
	)
	if err != nil {
		return nil, err
	}

	l := &launcher{
		cfg:        cfg,
		logger:     logger,
		supervisor: sup,
		window:     window,
		controller: app.NewController(mode, sup, resolver, window, logger),
	}

	if cfg.Diagnostics.Bind != "" {
		handler := diagnostics.NewHandler(diagnostics.Options{
			Backend:  sup,
			Host:     window,
			Shutdown: l.controller,
			Metrics:  metricsHandler,
			Logger:   logger,
		})
		diag, err := diagnostics.Listen(cfg.Diagnostics.Bind, handler, logger)
		if err != nil {
			logger.Warn("diagnostics disabled", "bind", cfg.Diagnostics.Bind, "error", err)
		} else {
			l.diag = diag
		}
	}
	return l, nil
}

// run blocks until the application shuts down. Only a fatal startup failure
// is returned; anything else has already been logged.
func (l *launcher) run(ctx context.Context) error {
	l.logger.Info("launcher starting",
		"mode", l.cfg.EnvironmentMode().String(),
		"resource_root", l.cfg.Paths.ResourceRoot,
		"health_url", l.cfg.Backend.HealthURL,
	)

	if l.diag != nil {
		go func() {
			if err := l.diag.Serve(); err != nil {
				l.logger.Warn("diagnostics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), diagnosticsShutdownTimeout)
			defer cancel()
			if err := l.diag.Shutdown(shutdownCtx); err != nil {
				l.logger.Warn("diagnostics shutdown failed", "error", err)
			}
		}()
	}

	err := l.controller.Run(ctx)
	switch {
	case err == nil:
		l.logger.Info("launcher stopped")
		return nil
	case lib.IsFatal(err):
		return err
	case errors.Is(err, context.Canceled):
		return nil
	default:
		l.logger.Warn("launcher stopped with errors", "error", err)
		return nil
	}
}
