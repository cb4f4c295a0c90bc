//go:build !windows

package process

import (
	"errors"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func terminate(h *Handle) error {
	return signal(h, syscall.SIGTERM)
}

func kill(h *Handle) error {
	return signal(h, syscall.SIGKILL)
}

func signal(h *Handle, sig syscall.Signal) error {
	if h.group {
		if err := syscall.Kill(-h.pid, sig); err == nil || !errors.Is(err, syscall.ESRCH) {
			return err
		}
	}
	return h.proc.Signal(sig)
}

// groupAlive reports whether any process is left in the group led by h.
func groupAlive(h *Handle) bool {
	err := syscall.Kill(-h.pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}
