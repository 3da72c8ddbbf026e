package runner

import "github.com/Ahmadinit/complete-app-setup/pkg/lib"

// Status returns a copy of the process status.
func (process *Process) Status() lib.ProcessStatus {
	process.mu.RLock()
	defer process.mu.RUnlock()

	st := lib.ProcessStatus{
		PID:       process.pid,
		State:     process.state,
		Signal:    process.signal,
		StartTime: process.start,
	}
	if process.exitCode != nil {
		st.ExitCode = new(int)
		*st.ExitCode = *process.exitCode
	}
	if process.end != nil {
		t := *process.end
		st.EndTime = &t
	}
	return st
}
