package process

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Spec describes a process to start.
type Spec struct {
	Path string
	Args []string
	Dir  string
	// Env entries are appended to the daemon's environment.
	Env []string
}

// Executor starts OS processes. It makes a single attempt and never retries.
type Executor struct {
	logger *zap.Logger
}

// NewExecutor creates an executor.
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger}
}

// Start launches spec.Path in its own process group and returns a handle.
// ctx only bounds the start itself; cancelling it later does not affect the
// running process.
func (e *Executor) Start(ctx context.Context, spec Spec) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StartError{Path: spec.Path, Class: ErrSpawnFailed, Err: err}
	}
	if strings.TrimSpace(spec.Path) == "" {
		return nil, &StartError{Path: spec.Path, Class: ErrTargetNotFound}
	}

	path, err := resolve(spec.Path)
	if err != nil {
		return nil, &StartError{Path: spec.Path, Class: classify(err), Err: err}
	}

	if spec.Dir != "" {
		info, err := os.Stat(spec.Dir)
		if err != nil {
			return nil, &StartError{Path: spec.Dir, Class: classify(err), Err: err}
		}
		if !info.IsDir() {
			return nil, &StartError{Path: spec.Dir, Class: ErrTargetNotFound, Err: errors.New("working directory is not a directory")}
		}
	}

	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Path: spec.Path, Class: classify(err), Err: err}
	}

	h := newChildHandle(cmd)
	e.logger.Debug("Process started",
		zap.String("path", path),
		zap.Int("pid", h.PID()),
		zap.Strings("args", spec.Args))
	return h, nil
}

// resolve turns a bare command name into a path via PATH and checks that an
// explicit path exists.
func resolve(path string) (string, error) {
	if !strings.ContainsRune(path, filepath.Separator) && !strings.ContainsRune(path, '/') {
		return exec.LookPath(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", &fs.PathError{Op: "exec", Path: path, Err: fs.ErrPermission}
	}
	return path, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, exec.ErrNotFound):
		return ErrTargetNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	default:
		return ErrSpawnFailed
	}
}
