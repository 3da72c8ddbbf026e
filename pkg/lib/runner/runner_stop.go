package runner

import (
	"context"
	"errors"
	"syscall"
	"time"
)

// Stop terminates the process group: SIGTERM once, then SIGKILL if the process
// is still alive after grace. It returns when the process has exited or ctx
// ends. Stopping an exited process does nothing.
func (process *Process) Stop(ctx context.Context, grace time.Duration) error {
	select {
	case <-process.done:
		return nil
	default:
	}

	process.termOnce.Do(func() {
		process.logger.Debug("terminating process group", "pid", process.pid)
		process.signalGroup(syscall.SIGTERM)
	})

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-process.done:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
	}

	process.killOnce.Do(func() {
		process.logger.Debug("killing process group after grace period", "pid", process.pid, "grace", grace)
		process.signalGroup(syscall.SIGKILL)
	})

	select {
	case <-process.done:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

func (process *Process) signalGroup(sig syscall.Signal) {
	if err := signalGroup(process.cmd.Process, sig); err != nil && !errors.Is(err, errProcessGone) {
		process.logger.Warn("signal failed", "pid", process.pid, "signal", sig.String(), "error", err)
	}
}
