// Package runner starts and stops child processes and captures their output.
//
// Every process gets its own process group on unix so that stopping it also
// reaches any children it forked (packaged backends run behind a bootloader).
package runner

import (
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/output_storage"
)

// Spec describes a process to start.
type Spec struct {
	Path string
	Args []string
	// Env replaces the inherited environment when non-nil.
	Env []string
	Dir string
	// OutputLimit bounds retained bytes per stream; zero uses the storage default.
	OutputLimit int
}

// Runner starts processes with shared settings. It keeps no reference to
// them; the caller owns every *Process it gets back.
type Runner struct {
	logger    *slog.Logger
	waitDelay time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithWaitDelay bounds how long output is drained after a process exits while
// a descendant still holds its pipes.
func WithWaitDelay(d time.Duration) Option {
	return func(r *Runner) {
		r.waitDelay = d
	}
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:    slog.New(slog.DiscardHandler),
		waitDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process is a started child process.
type Process struct {
	id      string
	command lib.Command
	cmd     *exec.Cmd
	logger  *slog.Logger

	// status fields
	mu       sync.RWMutex
	state    lib.ProcessState
	exitCode *int
	signal   string
	start    time.Time
	end      *time.Time

	// output buffers (bounded replay)
	stdout *output_storage.OutputStorage
	stderr *output_storage.OutputStorage
	pid    int

	done     chan struct{}
	termOnce sync.Once
	killOnce sync.Once
}

// ID returns the identifier the runner assigned to the process.
func (p *Process) ID() string { return p.id }

// PID returns the operating system process id.
func (p *Process) PID() int { return p.pid }

// Command returns what was started.
func (p *Process) Command() lib.Command { return p.command }

// Done is closed once the process has exited and its status is final.
func (p *Process) Done() <-chan struct{} { return p.done }
