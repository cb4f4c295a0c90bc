package process

import (
	"errors"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Handle is a started or adopted OS process.
type Handle struct {
	pid       int
	proc      *os.Process
	group     bool
	startedAt time.Time

	done     chan struct{}
	exited   atomic.Bool
	exitCode atomic.Int64
}

func newChildHandle(cmd *exec.Cmd) *Handle {
	h := &Handle{
		pid:       cmd.Process.Pid,
		proc:      cmd.Process,
		group:     true,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	h.exitCode.Store(-1)

	// Reap the child so it never lingers as a zombie that still looks alive.
	go func() {
		_ = cmd.Wait()
		if cmd.ProcessState != nil {
			h.exitCode.Store(int64(cmd.ProcessState.ExitCode()))
		}
		h.exited.Store(true)
		close(h.done)
	}()
	return h
}

// Adopt wraps a process started and reaped elsewhere. Liveness of an adopted
// process is observed by polling only; Done never fires.
func Adopt(proc *os.Process) *Handle {
	h := &Handle{
		pid:       proc.Pid,
		proc:      proc,
		startedAt: time.Now(),
	}
	h.exitCode.Store(-1)
	return h
}

// PID returns the process id.
func (h *Handle) PID() int {
	return h.pid
}

// StartedAt returns when the handle was created.
func (h *Handle) StartedAt() time.Time {
	return h.startedAt
}

// Done is closed once a child process has exited and been reaped.
// It is nil, and therefore never ready, for adopted processes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitCode returns the exit code, or -1 while running or when unknown.
func (h *Handle) ExitCode() int {
	return int(h.exitCode.Load())
}

// Alive reports whether the process is still running. A pid that vanished
// between checks counts as not alive.
func (h *Handle) Alive() bool {
	if h.exited.Load() {
		return false
	}
	p, err := process.NewProcess(int32(h.pid))
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	if err != nil || !running {
		return false
	}
	if status, err := p.Status(); err == nil {
		for _, s := range status {
			if s == process.Zombie {
				return false
			}
		}
	}
	return true
}

// Running reports whether the process is still running or, for a child
// started in its own process group, whether any member of that group is.
func (h *Handle) Running() bool {
	if h.Alive() {
		return true
	}
	return h.group && groupAlive(h)
}

// Wait blocks until the process and its group have exited or timeout
// elapses and reports whether they did.
func (h *Handle) Wait(timeout time.Duration, poll time.Duration) bool {
	if !h.Running() {
		return true
	}
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	done := h.done
	for {
		select {
		case <-done:
			if !h.Running() {
				return true
			}
			done = nil
		case <-ticker.C:
			if !h.Running() {
				return true
			}
		case <-timer.C:
			return !h.Running()
		}
	}
}

// Terminate asks the process (group) to exit.
func (h *Handle) Terminate() error {
	if !h.Running() {
		return nil
	}
	return ignoreGone(terminate(h))
}

// Kill unconditionally terminates the process (group). A group is signalled
// even after its leader was reaped. Killing a process that already exited
// succeeds.
func (h *Handle) Kill() error {
	if h.exited.Load() && !h.group {
		return nil
	}
	return ignoreGone(kill(h))
}

func ignoreGone(err error) error {
	if err == nil || errors.Is(err, os.ErrProcessDone) || isNoSuchProcess(err) {
		return nil
	}
	return err
}
