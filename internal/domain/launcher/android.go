package launcher

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/android"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
)

// Android starts packaged applications through the Android subsystem bridge.
type Android struct {
	bridge  android.Bridge
	windows *window.Manager
	logger  *zap.Logger
}

// NewAndroid creates the android-package launcher.
func NewAndroid(bridge android.Bridge, windows *window.Manager, logger *zap.Logger) *Android {
	return &Android{bridge: bridge, windows: windows, logger: named(logger, "android")}
}

func (a *Android) Kind() catalog.Kind { return catalog.KindAndroid }

// Launch fails fast unless the subsystem is Available.
func (a *Android) Launch(ctx context.Context, req Request) (instance.Tracking, error) {
	def := req.Definition
	if status := a.bridge.Status(); status != android.StatusAvailable {
		return instance.Tracking{}, a.unavailable(def, status, nil)
	}

	if err := a.bridge.Start(ctx, def.Target, def.Activity); err != nil {
		var unavailable *android.UnavailableError
		switch {
		case errors.As(err, &unavailable):
			return instance.Tracking{}, a.unavailable(def, unavailable.Status, err)
		case errors.Is(err, android.ErrPackageNotFound):
			return instance.Tracking{}, Fail(def, ReasonTargetNotFound, def.Target, err)
		default:
			return instance.Tracking{}, Fail(def, ReasonSpawnFailed, def.Target, err)
		}
	}

	a.logger.Info("Android package started",
		zap.String("instance_id", req.InstanceID.String()),
		zap.String("package", def.Target))
	return instance.Tracking{
		Package:      def.Target,
		TitlePattern: titlePattern(def.WindowTitle, def.Name, ""),
	}, nil
}

func (a *Android) unavailable(def catalog.Definition, status android.Status, err error) *LaunchError {
	e := Fail(def, ReasonSubsystemUnavailable, "android subsystem is "+string(status), err)
	e.Status = status
	return e
}

// IsStillRunning asks the subsystem. A subsystem that went away takes its
// packages with it; other query failures are not taken as an exit.
func (a *Android) IsStillRunning(ctx context.Context, inst instance.Instance) bool {
	running, err := a.bridge.IsRunning(ctx, inst.Tracking.Package)
	if err != nil {
		return !errors.Is(err, android.ErrUnavailable)
	}
	return running
}

// RequestGracefulClose closes the package's window. Without a window there
// is no graceful path and the caller escalates to a force-stop.
func (a *Android) RequestGracefulClose(ctx context.Context, inst instance.Instance) bool {
	if !a.IsStillRunning(ctx, inst) {
		return true
	}
	if inst.Tracking.TitlePattern == "" {
		return false
	}
	ref, err := a.windows.FindWindowFor(ctx, window.Query{TitlePattern: inst.Tracking.TitlePattern})
	if err != nil || ref == nil {
		return false
	}
	return a.windows.RequestClose(ctx, *ref) == nil
}

func (a *Android) ForceClose(ctx context.Context, inst instance.Instance) bool {
	err := a.bridge.Stop(ctx, inst.Tracking.Package)
	if err != nil && !errors.Is(err, android.ErrUnavailable) {
		a.logger.Warn("Force-stop failed", zap.String("package", inst.Tracking.Package), zap.Error(err))
		return false
	}
	return true
}

func (a *Android) Release(instance.Instance) {}
