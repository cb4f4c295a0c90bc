package window

import (
	"context"
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Source tells where a window reference came from.
type Source string

const (
	SourceOS      Source = "os"
	SourceSurface Source = "surface"
)

// Errors returned by the window manager.
var (
	ErrNoBackend    = errors.New("no window backend available")
	ErrCloseRefused = errors.New("window refused to close")
	ErrUnknownRef   = errors.New("unknown window")
)

// Ref identifies a top-level window or an in-process surface.
type Ref struct {
	ID     string `json:"id"`
	PID    int    `json:"pid,omitempty"`
	Title  string `json:"title"`
	Class  string `json:"class,omitempty"`
	Source Source `json:"source"`
}

// Query describes how a launcher recognizes its window. SurfaceID wins over
// everything else; otherwise PID is tried first and the patterns second.
type Query struct {
	PID          int
	TitlePattern string
	ClassPattern string
	SurfaceID    string
}

// Empty reports whether the query cannot match anything.
func (q Query) Empty() bool {
	return q.PID <= 0 && q.TitlePattern == "" && q.ClassPattern == "" && q.SurfaceID == ""
}

// Validate checks the glob patterns.
func (q Query) Validate() error {
	for _, p := range []string{q.TitlePattern, q.ClassPattern} {
		if p != "" && !doublestar.ValidatePattern(normalize(p)) {
			return doublestar.ErrBadPattern
		}
	}
	return nil
}

// Backend enumerates and manipulates OS windows.
type Backend interface {
	Name() string
	List(ctx context.Context) ([]Ref, error)
	Activate(ctx context.Context, ref Ref) error
	Close(ctx context.Context, ref Ref) error
	Kill(ctx context.Context, ref Ref) error
}

// Surface is UI hosted inside the daemon, such as an editor buffer.
type Surface interface {
	Title() string
	// RequestClose asks the surface to close and reports whether it agreed.
	RequestClose() bool
	// Destroy closes the surface unconditionally.
	Destroy()
	Focus()
}

// Match reports whether title matches the glob pattern, case-insensitively.
// Slashes in titles are ordinary characters.
func Match(pattern, title string) bool {
	if pattern == "" {
		return true
	}
	ok, err := doublestar.Match(normalize(pattern), normalize(title))
	return err == nil && ok
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "/", "\x1f")
}

func (q Query) matchesPatterns(ref Ref) bool {
	if q.TitlePattern == "" && q.ClassPattern == "" {
		return false
	}
	return Match(q.TitlePattern, ref.Title) && Match(q.ClassPattern, ref.Class)
}
