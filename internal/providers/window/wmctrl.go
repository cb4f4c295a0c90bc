package window

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// WmctrlBackend drives an EWMH window manager through wmctrl and xkill.
type WmctrlBackend struct {
	path   string
	run    Runner
	logger *zap.Logger
}

// NewWmctrlBackend creates a backend using the wmctrl binary at path.
func NewWmctrlBackend(path string, run Runner, logger *zap.Logger) *WmctrlBackend {
	if path == "" {
		path = "wmctrl"
	}
	if run == nil {
		run = execRunner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WmctrlBackend{path: path, run: run, logger: logger}
}

func (b *WmctrlBackend) Name() string { return "wmctrl" }

// List parses `wmctrl -lpx`.
func (b *WmctrlBackend) List(ctx context.Context) ([]Ref, error) {
	out, err := b.run(ctx, b.path, "-lpx")
	if err != nil {
		return nil, err
	}
	return parseWmctrl(out), nil
}

func (b *WmctrlBackend) Activate(ctx context.Context, ref Ref) error {
	_, err := b.run(ctx, b.path, "-ia", ref.ID)
	return err
}

func (b *WmctrlBackend) Close(ctx context.Context, ref Ref) error {
	_, err := b.run(ctx, b.path, "-ic", ref.ID)
	return err
}

// Kill asks the X server to disconnect the window's client, falling back to
// killing the owning pid.
func (b *WmctrlBackend) Kill(ctx context.Context, ref Ref) error {
	_, err := b.run(ctx, "xkill", "-id", ref.ID)
	if err == nil {
		return nil
	}
	if ref.PID <= 0 {
		return err
	}
	b.logger.Debug("xkill failed, killing window owner", zap.String("window", ref.ID), zap.Int("pid", ref.PID), zap.Error(err))
	proc, ferr := os.FindProcess(ref.PID)
	if ferr != nil {
		return ferr
	}
	return proc.Kill()
}

// parseWmctrl parses lines of the form
//
//	0x03c00003  0 12345  gnome-terminal-server.Gnome-terminal  host  Title words
func parseWmctrl(out []byte) []Ref {
	var refs []Ref
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		rest := scanner.Text()
		fields := make([]string, 0, 5)
		for len(fields) < 5 {
			rest = strings.TrimLeft(rest, " \t")
			if rest == "" {
				break
			}
			end := strings.IndexAny(rest, " \t")
			if end < 0 {
				fields = append(fields, rest)
				rest = ""
				break
			}
			fields = append(fields, rest[:end])
			rest = rest[end:]
		}
		if len(fields) < 5 {
			continue
		}
		// Desktop -1 marks sticky panels and docks.
		if fields[1] == "-1" {
			continue
		}
		pid, _ := strconv.Atoi(fields[2])
		refs = append(refs, Ref{
			ID:     fields[0],
			PID:    pid,
			Class:  fields[3],
			Title:  strings.TrimSpace(rest),
			Source: SourceOS,
		})
	}
	return refs
}

// NoopBackend is used when no window system is reachable.
type NoopBackend struct{}

func (NoopBackend) Name() string                        { return "none" }
func (NoopBackend) List(context.Context) ([]Ref, error) { return nil, nil }
func (NoopBackend) Activate(context.Context, Ref) error { return ErrNoBackend }
func (NoopBackend) Close(context.Context, Ref) error    { return ErrNoBackend }
func (NoopBackend) Kill(context.Context, Ref) error     { return ErrNoBackend }

// NewBackend selects a backend by name: "wmctrl", "none" or "auto", which
// picks wmctrl when an X display and the binary are available.
func NewBackend(name, wmctrlPath string, logger *zap.Logger) (Backend, error) {
	switch name {
	case "none":
		return NoopBackend{}, nil
	case "wmctrl":
		return NewWmctrlBackend(wmctrlPath, nil, logger), nil
	case "auto", "":
		if os.Getenv("DISPLAY") == "" {
			return NoopBackend{}, nil
		}
		if _, err := exec.LookPath(wmctrlPath); err != nil {
			return NoopBackend{}, nil
		}
		return NewWmctrlBackend(wmctrlPath, nil, logger), nil
	default:
		return nil, fmt.Errorf("unknown window backend %q", name)
	}
}
