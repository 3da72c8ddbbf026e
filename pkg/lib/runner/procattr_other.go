//go:build !unix

package runner

import (
	"errors"
	"os"
	"syscall"
)

var errProcessGone = os.ErrProcessDone

func newSysProcAttr() *syscall.SysProcAttr {
	return nil
}

// signalGroup has no process groups to address here, so the process is killed directly.
func signalGroup(p *os.Process, _ syscall.Signal) error {
	err := p.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return errProcessGone
	}
	return err
}

func exitSignal(*os.ProcessState) string {
	return ""
}
