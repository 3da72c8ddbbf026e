// Package readiness polls the backend's HTTP endpoint until it answers or the
// attempt budget runs out.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
)

// DefaultURL is where the packaged backend listens.
const DefaultURL = "http://127.0.0.1:8000/"

// Policy bounds a readiness wait.
type Policy struct {
	MaxAttempts    int
	Interval       time.Duration
	RequestTimeout time.Duration
}

// DefaultPolicy waits for roughly thirty seconds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    30,
		Interval:       time.Second,
		RequestTimeout: 500 * time.Millisecond,
	}
}

// Prober performs a single readiness check.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// HTTPProber treats any HTTP response as ready, whatever the status code.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// NewHTTPProber creates a prober for url.
func NewHTTPProber(url string) *HTTPProber {
	return &HTTPProber{URL: url, Client: &http.Client{}}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.Body.Close()
}

// Outcome is how a wait concluded.
type Outcome int

const (
	Ready Outcome = iota
	TimedOut
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed_out"
	default:
		return "cancelled"
	}
}

// Result summarises a wait.
type Result struct {
	Outcome  Outcome
	Attempts int
	Elapsed  time.Duration
	LastErr  error
}

// Observer is told about every attempt. err is nil for the successful one.
type Observer func(attempt int, err error)

// Poller runs the attempt loop.
type Poller struct {
	prober   Prober
	policy   Policy
	target   string
	observer Observer
	logger   *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithObserver registers an attempt observer.
func WithObserver(fn Observer) Option {
	return func(p *Poller) {
		p.observer = fn
	}
}

// WithLogger sets the poller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithTarget names the probed endpoint in logs and errors.
func WithTarget(target string) Option {
	return func(p *Poller) {
		p.target = target
	}
}

// NewPoller creates a Poller. A MaxAttempts below one is treated as one.
func NewPoller(prober Prober, policy Policy, opts ...Option) *Poller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	p := &Poller{
		prober: prober,
		policy: policy,
		logger: slog.New(slog.DiscardHandler),
	}
	if hp, ok := prober.(*HTTPProber); ok {
		p.target = hp.URL
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewHTTPPoller polls url under policy.
func NewHTTPPoller(url string, policy Policy, opts ...Option) *Poller {
	return NewPoller(NewHTTPProber(url), policy, opts...)
}

// Policy returns the poller's policy.
func (p *Poller) Policy() Policy { return p.policy }

// AwaitReady probes until an attempt succeeds, the budget is spent or ctx ends.
// The error is HEALTH_CHECK_TIMEOUT when the budget is spent and the context
// cause when ctx ends first.
func (p *Poller) AwaitReady(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	finish := func(outcome Outcome) Result {
		res.Outcome = outcome
		res.Elapsed = time.Since(start)
		return res
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return finish(Cancelled), context.Cause(ctx)
		}

		res.Attempts = attempt
		err := p.probe(ctx)
		if p.observer != nil {
			p.observer(attempt, err)
		}
		if err == nil {
			p.logger.Debug("readiness probe succeeded", "attempt", attempt, "target", p.target)
			res.LastErr = nil
			return finish(Ready), nil
		}
		if ctx.Err() != nil {
			return finish(Cancelled), context.Cause(ctx)
		}
		res.LastErr = err
		p.logger.Debug("readiness probe failed",
			"attempt", attempt,
			"max_attempts", p.policy.MaxAttempts,
			"target", p.target,
			"error", err,
		)

		if attempt == p.policy.MaxAttempts {
			break
		}

		if timer == nil {
			timer = time.NewTimer(p.policy.Interval)
		} else {
			timer.Reset(p.policy.Interval)
		}
		select {
		case <-ctx.Done():
			return finish(Cancelled), context.Cause(ctx)
		case <-timer.C:
		}
	}

	result := finish(TimedOut)
	return result, lib.NewError(lib.KindHealthCheckTimeout,
		fmt.Sprintf("backend not ready after %d attempts", result.Attempts)).
		WithContext("url", p.target).
		WithContext("attempts", result.Attempts).
		WithCause(result.LastErr)
}

func (p *Poller) probe(ctx context.Context) error {
	if p.policy.RequestTimeout <= 0 {
		return p.prober.Probe(ctx)
	}
	attemptCtx, cancel := context.WithTimeoutCause(ctx, p.policy.RequestTimeout,
		errors.New("readiness probe timed out"))
	defer cancel()
	return p.prober.Probe(attemptCtx)
}
