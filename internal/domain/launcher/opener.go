package launcher

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/process"
)

// Opener hands a URL or path to the desktop's default handler.
type Opener struct {
	Command string
	Args    []string
	// Wait is how long to wait for the opener to exit to catch failures.
	Wait time.Duration
}

// DefaultOpener returns the platform opener, or the command line in override.
func DefaultOpener(override string) Opener {
	if fields := strings.Fields(override); len(fields) > 0 {
		return Opener{Command: fields[0], Args: fields[1:], Wait: 2 * time.Second}
	}
	switch runtime.GOOS {
	case "windows":
		return Opener{Command: "explorer.exe", Wait: 2 * time.Second}
	case "darwin":
		return Opener{Command: "open", Wait: 2 * time.Second}
	default:
		return Opener{Command: "xdg-open", Wait: 2 * time.Second}
	}
}

// open runs the opener for target. A non-zero exit within Wait is a spawn
// failure; an opener still running after Wait is left alone.
func (o Opener) open(ctx context.Context, exec *process.Executor, def catalog.Definition, target string) error {
	args := append(append([]string(nil), o.Args...), target)
	h, err := exec.Start(ctx, process.Spec{Path: o.Command, Args: args})
	if err != nil {
		return fromStart(def, err)
	}

	timer := time.NewTimer(o.Wait)
	defer timer.Stop()
	select {
	case <-h.Done():
		if code := h.ExitCode(); code != 0 {
			return Fail(def, ReasonSpawnFailed, o.Command+" exited with code "+strconv.Itoa(code), nil)
		}
	case <-timer.C:
	case <-ctx.Done():
	}
	return nil
}
