// Package diagnostics serves the launcher's local HTTP control surface:
// status, backend output, metrics and lifecycle requests.
package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/app"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/supervisor"
)

// Backend is the supervisor as seen by the server.
type Backend interface {
	Snapshot() supervisor.Status
	Output(ctx context.Context) (stdout, stderr <-chan []byte, ok bool)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Host exposes what the window host has shown.
type Host interface {
	Loaded() string
	LastNotification() (app.Notification, bool)
}

// Shutdowner ends the application.
type Shutdowner interface {
	Shutdown()
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	supervisor.Status
	Frontend         string            `json:"frontend,omitempty"`
	LastNotification *app.Notification `json:"last_notification,omitempty"`
}

// ActionResponse is the body of POST /start, /stop and /shutdown.
type ActionResponse struct {
	State string `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// Options wires the handler. Only Backend is required.
type Options struct {
	Backend  Backend
	Host     Host
	Shutdown Shutdowner
	Metrics  http.Handler
	Logger   *slog.Logger
	// StartTimeout bounds POST /start, which waits for readiness.
	StartTimeout time.Duration
}

type server struct {
	Options
}

// NewHandler builds the router.
func NewHandler(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 2 * time.Minute
	}
	s := &server{Options: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.getStatus)
	r.Get("/logs", s.getLogs)
	r.Post("/start", s.postStart)
	r.Post("/stop", s.postStop)
	r.Post("/shutdown", s.postShutdown)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r
}

func (s *server) getStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{Status: s.Backend.Snapshot()}
	if s.Host != nil {
		resp.Frontend = s.Host.Loaded()
		if n, ok := s.Host.LastNotification(); ok {
			resp.LastNotification = &n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// getLogs writes the retained output tail, or with follow=true streams the
// most recent process's output until it exits or the client goes away.
// stream selects stdout or stderr; both are written by default.
func (s *server) getLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	stream := query.Get("stream")
	switch stream {
	case "", "stdout", "stderr":
	default:
		http.Error(w, fmt.Sprintf("unknown stream %q", stream), http.StatusBadRequest)
		return
	}
	follow, _ := strconv.ParseBool(query.Get("follow"))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !follow {
		tail := s.Backend.Snapshot().Tail
		if stream != "stderr" {
			_, _ = w.Write([]byte(tail.Stdout))
		}
		if stream != "stdout" {
			_, _ = w.Write([]byte(tail.Stderr))
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	stdout, stderr, ok := s.Backend.Output(r.Context())
	if !ok {
		http.Error(w, "no backend process has been started", http.StatusNotFound)
		return
	}
	if stream == "stderr" {
		stdout = nil
	}
	if stream == "stdout" {
		stderr = nil
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for stdout != nil || stderr != nil {
		var chunk []byte
		select {
		case <-r.Context().Done():
			return
		case c, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			chunk = c
		case c, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			chunk = c
		}
		if _, err := w.Write(chunk); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *server) postStart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.StartTimeout)
	defer cancel()
	err := s.Backend.Start(ctx)
	s.respond(w, "start", err)
}

func (s *server) postStop(w http.ResponseWriter, r *http.Request) {
	err := s.Backend.Stop(r.Context())
	s.respond(w, "stop", err)
}

func (s *server) postShutdown(w http.ResponseWriter, _ *http.Request) {
	if s.Shutdown == nil {
		http.Error(w, "shutdown not available", http.StatusNotImplemented)
		return
	}
	s.Logger.Info("shutdown requested over diagnostics")
	writeJSON(w, http.StatusAccepted, ActionResponse{State: s.Backend.Snapshot().State})
	s.Shutdown.Shutdown()
}

// respond reports a lifecycle request. Supervisor failures are part of the
// normal outcome and answer 200 with the error kind; only a rejected start
// is a conflict.
func (s *server) respond(w http.ResponseWriter, action string, err error) {
	resp := ActionResponse{State: s.Backend.Snapshot().State}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		resp.Kind = string(lib.KindOf(err))
		if errors.Is(err, lib.ErrAlreadyRunning) {
			status = http.StatusConflict
		}
		s.Logger.Warn("diagnostics request failed", "action", action, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server is the listening diagnostics endpoint.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds addr. Use port 0 for an ephemeral port.
func Listen(addr string, handler http.Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Server{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger.With("component", "diagnostics"),
	}, nil
}

// Addr is the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve blocks until Shutdown.
func (s *Server) Serve() error {
	s.logger.Info("diagnostics listening", "addr", s.Addr())
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones until ctx ends.
// Streaming log requests are cut off when ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return s.srv.Close()
	}
	return err
}
