package launcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// ErrBufferClosed is returned when editing a buffer that was closed.
var ErrBufferClosed = errors.New("buffer is closed")

// Buffer is an in-process plain-text editing surface.
type Buffer struct {
	mu        sync.Mutex
	path      string
	content   []byte
	dirty     bool
	closed    bool
	focusedAt time.Time
}

// Title is the file name, marked with * while there are unsaved changes.
func (b *Buffer) Title() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := "untitled"
	if b.path != "" {
		name = filepath.Base(b.path)
	}
	if b.dirty {
		name += "*"
	}
	return name
}

// RequestClose refuses while there are unsaved changes.
func (b *Buffer) RequestClose() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dirty {
		return false
	}
	b.closed = true
	return true
}

// Destroy closes the buffer and discards unsaved changes.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.dirty = false
	b.content = nil
}

func (b *Buffer) Focus() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focusedAt = time.Now()
}

// Content returns a copy of the text.
func (b *Buffer) Content() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.content...)
}

// Dirty reports unsaved changes.
func (b *Buffer) Dirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

// SetContent replaces the text.
func (b *Buffer) SetContent(content []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBufferClosed
	}
	b.content = append([]byte(nil), content...)
	b.dirty = true
	return nil
}

// Save writes the text to its file.
func (b *Buffer) Save() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBufferClosed
	}
	if b.path == "" {
		return errors.New("buffer has no file")
	}
	if err := os.WriteFile(b.path, b.content, 0o600); err != nil {
		return err
	}
	b.dirty = false
	return nil
}

// TextEditor opens files in in-process editing buffers.
type TextEditor struct {
	windows *window.Manager
	logger  *zap.Logger

	mu      sync.Mutex
	buffers map[string]*Buffer
}

// NewTextEditor creates the text-editor launcher.
func NewTextEditor(windows *window.Manager, logger *zap.Logger) *TextEditor {
	return &TextEditor{
		windows: windows,
		logger:  named(logger, "text-editor"),
		buffers: make(map[string]*Buffer),
	}
}

func (e *TextEditor) Kind() catalog.Kind { return catalog.KindTextEditor }

// Launch opens def.Target, or an empty untitled buffer when there is no
// target. A missing file in an existing directory opens as a new file.
func (e *TextEditor) Launch(_ context.Context, req Request) (instance.Tracking, error) {
	def := req.Definition
	buf := &Buffer{path: def.Target}

	if def.Target != "" {
		data, err := os.ReadFile(def.Target)
		switch {
		case err == nil:
			buf.content = data
		case errors.Is(err, fs.ErrNotExist):
			if _, derr := os.Stat(filepath.Dir(def.Target)); derr != nil {
				return instance.Tracking{}, Fail(def, ReasonTargetNotFound, def.Target, err)
			}
		case errors.Is(err, fs.ErrPermission):
			return instance.Tracking{}, Fail(def, ReasonPermissionDenied, def.Target, err)
		default:
			return instance.Tracking{}, Fail(def, ReasonSpawnFailed, def.Target, err)
		}
	}

	surfaceID := id.NewSurfaceID().String()
	e.mu.Lock()
	e.buffers[surfaceID] = buf
	e.mu.Unlock()
	e.windows.RegisterSurface(surfaceID, buf)

	e.logger.Info("Editor buffer opened",
		zap.String("instance_id", req.InstanceID.String()),
		zap.String("surface_id", surfaceID),
		zap.String("path", def.Target))
	return instance.Tracking{Surface: surfaceID}, nil
}

// Buffer returns the buffer behind an editor instance.
func (e *TextEditor) Buffer(inst instance.Instance) (*Buffer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.buffers[inst.Tracking.Surface]
	return b, ok
}

func (e *TextEditor) surfaceRef(inst instance.Instance) window.Ref {
	return window.Ref{ID: inst.Tracking.Surface, Source: window.SourceSurface}
}

func (e *TextEditor) IsStillRunning(ctx context.Context, inst instance.Instance) bool {
	ref, err := e.windows.FindWindowFor(ctx, window.Query{SurfaceID: inst.Tracking.Surface})
	return err == nil && ref != nil
}

// RequestGracefulClose reports false when the buffer refuses because of
// unsaved changes.
func (e *TextEditor) RequestGracefulClose(ctx context.Context, inst instance.Instance) bool {
	return e.windows.RequestClose(ctx, e.surfaceRef(inst)) == nil
}

func (e *TextEditor) ForceClose(ctx context.Context, inst instance.Instance) bool {
	return e.windows.ForceClose(ctx, e.surfaceRef(inst)) == nil
}

func (e *TextEditor) Release(inst instance.Instance) {
	e.windows.UnregisterSurface(inst.Tracking.Surface)
	e.mu.Lock()
	delete(e.buffers, inst.Tracking.Surface)
	e.mu.Unlock()
}
