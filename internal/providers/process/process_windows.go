//go:build windows

package process

import (
	"errors"
	"syscall"
)

// ErrTerminateUnsupported is returned by Terminate on Windows, where there is
// no signal to request a graceful exit of an arbitrary process.
var ErrTerminateUnsupported = errors.New("graceful terminate is not supported on windows")

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

func terminate(*Handle) error {
	return ErrTerminateUnsupported
}

func kill(h *Handle) error {
	return h.proc.Kill()
}

// groupAlive is not tracked on windows; only the process itself counts.
func groupAlive(*Handle) bool {
	return false
}

func isNoSuchProcess(error) bool {
	return false
}
