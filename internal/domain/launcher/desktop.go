package launcher

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/process"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
)

// Document types that are never started as programs.
var nonExecutableTypes = []string{
	"image/", "audio/", "video/", "font/",
	"application/pdf", "application/zip", "application/gzip", "application/x-tar",
	"application/vnd.", "application/msword", "application/rtf",
}

// Desktop starts native executables.
type Desktop struct {
	exec    *process.Executor
	windows *window.Manager
	logger  *zap.Logger
}

// NewDesktop creates the desktop launcher.
func NewDesktop(exec *process.Executor, windows *window.Manager, logger *zap.Logger) *Desktop {
	return &Desktop{exec: exec, windows: windows, logger: named(logger, "desktop")}
}

func (d *Desktop) Kind() catalog.Kind { return catalog.KindDesktop }

func (d *Desktop) Launch(ctx context.Context, req Request) (instance.Tracking, error) {
	def := req.Definition
	if err := checkExecutable(def.Target); err != nil {
		return instance.Tracking{}, Fail(def, ReasonNotExecutable, err.Error(), nil)
	}

	h, err := d.exec.Start(ctx, process.Spec{
		Path: def.Target,
		Args: def.Args,
		Dir:  def.WorkingDir,
		Env:  def.Env,
	})
	if err != nil {
		return instance.Tracking{}, fromStart(def, err)
	}

	d.logger.Info("Desktop application started",
		zap.String("instance_id", req.InstanceID.String()),
		zap.String("definition_id", def.ID),
		zap.Int("pid", h.PID()))
	return instance.Tracking{Process: h, TitlePattern: def.WindowTitle}, nil
}

// IsStillRunning counts the whole process group, so helpers left behind by
// a wrapper that exited keep the instance alive.
func (d *Desktop) IsStillRunning(_ context.Context, inst instance.Instance) bool {
	return inst.Tracking.Process != nil && inst.Tracking.Process.Running()
}

// RequestGracefulClose closes the main window, or sends SIGTERM when the
// process has no window.
func (d *Desktop) RequestGracefulClose(ctx context.Context, inst instance.Instance) bool {
	h := inst.Tracking.Process
	if h == nil || !h.Running() {
		return true
	}

	ref, err := d.windows.FindWindowFor(ctx, window.Query{PID: h.PID()})
	if err == nil && ref != nil {
		if err := d.windows.RequestClose(ctx, *ref); err == nil {
			return true
		}
	}
	if err := h.Terminate(); err != nil {
		d.logger.Debug("Terminate failed", zap.String("instance_id", inst.ID.String()), zap.Error(err))
		return false
	}
	return true
}

func (d *Desktop) ForceClose(_ context.Context, inst instance.Instance) bool {
	h := inst.Tracking.Process
	if h == nil {
		return true
	}
	if err := h.Kill(); err != nil {
		d.logger.Warn("Kill failed", zap.String("instance_id", inst.ID.String()), zap.Int("pid", h.PID()), zap.Error(err))
		return false
	}
	return true
}

func (d *Desktop) Release(instance.Instance) {}

// checkExecutable rejects targets whose content is clearly a document.
// Missing targets pass so the executor reports them precisely.
func checkExecutable(target string) error {
	path := target
	if !strings.ContainsAny(target, `/\`) {
		resolved, err := exec.LookPath(target)
		if err != nil {
			return nil
		}
		path = resolved
	}
	mt, err := mimetype.DetectFile(filepath.Clean(path))
	if err != nil {
		return nil
	}
	for m := mt; m != nil; m = m.Parent() {
		for _, prefix := range nonExecutableTypes {
			if strings.HasPrefix(m.String(), prefix) {
				return errors.New("target is a " + mt.String() + " document")
			}
		}
	}
	return nil
}

func named(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(name)
}
