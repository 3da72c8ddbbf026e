package runner

import (
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/output_storage"
)

// Start starts a new process. Failures are SPAWN_FAILURE errors.
func (runner *Runner) Start(spec Spec) (*Process, error) {
	if strings.TrimSpace(spec.Path) == "" {
		return nil, lib.NewError(lib.KindSpawnFailure, "command is required")
	}
	processId := lib.NewID()

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.SysProcAttr = newSysProcAttr()
	cmd.WaitDelay = runner.waitDelay

	var storageOpts []output_storage.Option
	if spec.OutputLimit != 0 {
		storageOpts = append(storageOpts, output_storage.WithLimit(spec.OutputLimit))
	}
	stdout := output_storage.RunNewOutputStorage(storageOpts...)
	stderr := output_storage.RunNewOutputStorage(storageOpts...)

	// cmd.Stdin is left nil, so it will use /dev/null
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger := runner.logger.With("process_id", processId, "path", spec.Path)
	process := &Process{
		id:      processId,
		command: lib.Command{Command: spec.Path, Args: append([]string(nil), spec.Args...), Env: spec.Env},
		cmd:     cmd,
		logger:  logger,
		state:   lib.ProcessStateRunning,
		start:   time.Now(),
		stdout:  stdout,
		stderr:  stderr,
		done:    make(chan struct{}),
	}

	logger.Debug("starting process")
	if err := cmd.Start(); err != nil {
		stdout.Stop()
		stderr.Stop()
		logger.Debug("failed to start process", "error", err)
		return nil, lib.NewError(lib.KindSpawnFailure, "start process").
			WithContext("path", spec.Path).
			WithCause(err)
	}
	process.pid = cmd.Process.Pid
	logger.Debug("process started", "pid", process.pid)

	go process.wait()

	return process, nil
}

// wait records the final status. Output storages are stopped after Wait so
// subscribers see every byte the process wrote.
func (process *Process) wait() {
	err := process.cmd.Wait()

	process.stdout.Stop()
	process.stderr.Stop()

	process.mu.Lock()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		code := 0
		process.exitCode = &code
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		process.exitCode = &code
		process.signal = exitSignal(exitErr.ProcessState)
	case process.cmd.ProcessState != nil:
		// output was cut short by WaitDelay; the exit status is still known
		code := process.cmd.ProcessState.ExitCode()
		process.exitCode = &code
		process.signal = exitSignal(process.cmd.ProcessState)
	}
	now := time.Now()
	process.end = &now
	process.state = lib.ProcessStateStopped
	exitCode, signal := process.exitCode, process.signal
	process.mu.Unlock()

	attrs := []any{"pid", process.pid, "signal", signal}
	if exitCode != nil {
		attrs = append(attrs, "exit_code", *exitCode)
	}
	if err != nil && exitErr == nil {
		attrs = append(attrs, "error", err)
	}
	process.logger.Debug("process finished", attrs...)

	close(process.done)
}
