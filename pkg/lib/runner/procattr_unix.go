//go:build unix

package runner

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

var errProcessGone = unix.ESRCH

func newSysProcAttr() *syscall.SysProcAttr {
	// New process group to manage children as a unit
	return &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals every member of the process's group (negative PID).
func signalGroup(p *os.Process, sig syscall.Signal) error {
	err := unix.Kill(-p.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		// group already empty; fall back to the leader in case it is a zombie awaiting Wait
		err = p.Signal(sig)
		if errors.Is(err, os.ErrProcessDone) {
			return errProcessGone
		}
	}
	return err
}

func exitSignal(state *os.ProcessState) string {
	if state == nil {
		return ""
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return unix.SignalName(ws.Signal())
}
