package launcher

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/process"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
)

// Folder opens directories in the file manager and tracks the resulting
// window by the folder name.
type Folder struct {
	opener  Opener
	exec    *process.Executor
	tracker *windowTracker
	logger  *zap.Logger
}

// NewFolder creates the folder launcher.
func NewFolder(opener Opener, tracker TrackerOptions, exec *process.Executor, windows *window.Manager, logger *zap.Logger) *Folder {
	if opener.Command == "" {
		opener = DefaultOpener("")
	}
	logger = named(logger, "folder")
	return &Folder{
		opener:  opener,
		exec:    exec,
		tracker: newWindowTracker(windows, tracker, logger),
		logger:  logger,
	}
}

func (f *Folder) Kind() catalog.Kind { return catalog.KindFolder }

func (f *Folder) Launch(ctx context.Context, req Request) (instance.Tracking, error) {
	def := req.Definition
	info, err := os.Stat(def.Target)
	switch {
	case os.IsNotExist(err):
		return instance.Tracking{}, Fail(def, ReasonTargetNotFound, def.Target, err)
	case os.IsPermission(err):
		return instance.Tracking{}, Fail(def, ReasonPermissionDenied, def.Target, err)
	case err != nil:
		return instance.Tracking{}, Fail(def, ReasonSpawnFailed, def.Target, err)
	case !info.IsDir():
		return instance.Tracking{}, Fail(def, ReasonInvalidDefinition, def.Target+" is not a directory", nil)
	}

	if err := f.opener.open(ctx, f.exec, def, def.Target); err != nil {
		return instance.Tracking{}, err
	}
	f.tracker.start(req.InstanceID)

	pattern := titlePattern(def.WindowTitle, "", filepath.Base(filepath.Clean(def.Target)))
	f.logger.Info("Folder opened",
		zap.String("instance_id", req.InstanceID.String()),
		zap.String("path", def.Target))
	return instance.Tracking{TitlePattern: pattern}, nil
}

func (f *Folder) IsStillRunning(ctx context.Context, inst instance.Instance) bool {
	return f.tracker.alive(ctx, inst)
}

func (f *Folder) RequestGracefulClose(ctx context.Context, inst instance.Instance) bool {
	return f.tracker.requestClose(ctx, inst)
}

func (f *Folder) ForceClose(ctx context.Context, inst instance.Instance) bool {
	return f.tracker.forceClose(ctx, inst)
}

func (f *Folder) LastWindow(inst instance.Instance) *window.Ref {
	return f.tracker.lastWindow(inst)
}

func (f *Folder) Release(inst instance.Instance) {
	f.tracker.forget(inst.ID)
}
