package launcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/process"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// BrowserHost is a dedicated browser process showing one application.
type BrowserHost interface {
	Process() *os.Process
	Title(ctx context.Context) (string, error)
	// Close asks the browser to shut down and waits for it.
	Close(ctx context.Context) error
	// Kill tears the host down unconditionally. It is safe to call twice.
	Kill()
}

// HostOptions describe a browser host to start.
type HostOptions struct {
	ExecPath   string
	ProfileDir string
	URL        string
	Timeout    time.Duration
}

// HostFactory starts browser hosts.
type HostFactory func(ctx context.Context, opts HostOptions) (BrowserHost, error)

// EmbeddedOptions configures the embedded-browser launcher.
type EmbeddedOptions struct {
	ExecPath string
	// ProfileRoot holds one directory per owner, with one profile per instance
	// below it so concurrent views of the same user do not fight over locks.
	ProfileRoot   string
	LaunchTimeout time.Duration
	Factory       HostFactory
}

type hostEntry struct {
	host    BrowserHost
	profile string
}

// EmbeddedBrowser runs web applications in a dedicated Chromium host that the
// daemon owns and can tear down.
type EmbeddedBrowser struct {
	opts    EmbeddedOptions
	windows *window.Manager
	logger  *zap.Logger

	mu    sync.Mutex
	hosts map[id.InstanceID]*hostEntry
}

// NewEmbeddedBrowser creates the embedded-browser launcher.
func NewEmbeddedBrowser(opts EmbeddedOptions, windows *window.Manager, logger *zap.Logger) *EmbeddedBrowser {
	if opts.ProfileRoot == "" {
		opts.ProfileRoot = filepath.Join(os.TempDir(), "launcherd-profiles")
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = 30 * time.Second
	}
	if opts.Factory == nil {
		opts.Factory = startChromeHost
	}
	return &EmbeddedBrowser{
		opts:    opts,
		windows: windows,
		logger:  named(logger, "embedded-browser"),
		hosts:   make(map[id.InstanceID]*hostEntry),
	}
}

func (b *EmbeddedBrowser) Kind() catalog.Kind { return catalog.KindEmbeddedBrowser }

func (b *EmbeddedBrowser) Launch(ctx context.Context, req Request) (instance.Tracking, error) {
	def := req.Definition
	profile := filepath.Join(b.opts.ProfileRoot, safeName(req.Owner), req.InstanceID.String())
	if err := os.MkdirAll(profile, 0o700); err != nil {
		return instance.Tracking{}, Fail(def, ReasonPermissionDenied, "profile directory", err)
	}

	host, err := b.opts.Factory(ctx, HostOptions{
		ExecPath:   b.opts.ExecPath,
		ProfileDir: profile,
		URL:        def.Target,
		Timeout:    b.opts.LaunchTimeout,
	})
	if err != nil {
		_ = os.RemoveAll(profile)
		return instance.Tracking{}, Fail(def, ReasonSpawnFailed, "browser host", err)
	}

	proc := host.Process()
	if proc == nil {
		host.Kill()
		_ = os.RemoveAll(profile)
		return instance.Tracking{}, Fail(def, ReasonSpawnFailed, "browser host has no process", nil)
	}

	b.mu.Lock()
	b.hosts[req.InstanceID] = &hostEntry{host: host, profile: profile}
	b.mu.Unlock()

	pageTitle, _ := host.Title(ctx)
	b.logger.Info("Embedded browser started",
		zap.String("instance_id", req.InstanceID.String()),
		zap.String("url", def.Target),
		zap.Int("pid", proc.Pid))
	return instance.Tracking{
		Process:      process.Adopt(proc),
		TitlePattern: titlePattern(def.WindowTitle, pageTitle, ""),
	}, nil
}

func (b *EmbeddedBrowser) entry(instanceID id.InstanceID) (*hostEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.hosts[instanceID]
	return e, ok
}

func (b *EmbeddedBrowser) IsStillRunning(_ context.Context, inst instance.Instance) bool {
	return inst.Tracking.Process != nil && inst.Tracking.Process.Alive()
}

// RequestGracefulClose closes the browser over the DevTools protocol without
// waiting for it to finish.
func (b *EmbeddedBrowser) RequestGracefulClose(ctx context.Context, inst instance.Instance) bool {
	e, ok := b.entry(inst.ID)
	if !ok || !b.IsStillRunning(ctx, inst) {
		return true
	}
	go func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), b.opts.LaunchTimeout)
		defer cancel()
		if err := e.host.Close(closeCtx); err != nil {
			b.logger.Debug("Browser close failed", zap.String("instance_id", inst.ID.String()), zap.Error(err))
		}
	}()
	return true
}

func (b *EmbeddedBrowser) ForceClose(_ context.Context, inst instance.Instance) bool {
	if e, ok := b.entry(inst.ID); ok {
		e.host.Kill()
	}
	if h := inst.Tracking.Process; h != nil {
		if err := h.Kill(); err != nil {
			b.logger.Warn("Kill failed", zap.String("instance_id", inst.ID.String()), zap.Error(err))
			return false
		}
	}
	return true
}

// Release tears down the host and deletes the instance profile so nothing of
// the session survives on disk.
func (b *EmbeddedBrowser) Release(inst instance.Instance) {
	b.mu.Lock()
	e, ok := b.hosts[inst.ID]
	delete(b.hosts, inst.ID)
	b.mu.Unlock()
	if !ok {
		return
	}
	e.host.Kill()
	if err := os.RemoveAll(e.profile); err != nil {
		b.logger.Warn("Failed to remove browser profile", zap.String("profile", e.profile), zap.Error(err))
	}
}

func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// chromeHost is a Chromium instance driven by chromedp.
type chromeHost struct {
	browserCtx  context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	once        sync.Once
}

func startChromeHost(ctx context.Context, opts HostOptions) (BrowserHost, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("app", opts.URL),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.UserDataDir(opts.ProfileDir),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The host outlives the launch request, so it hangs off Background.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)
	h := &chromeHost{browserCtx: browserCtx, cancelCtx: cancelCtx, cancelAlloc: cancelAlloc}

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()
	select {
	case err := <-started:
		if err != nil {
			h.Kill()
			return nil, fmt.Errorf("start chromium: %w", err)
		}
	case <-timer.C:
		h.Kill()
		return nil, fmt.Errorf("start chromium: timed out after %s", opts.Timeout)
	case <-ctx.Done():
		h.Kill()
		return nil, ctx.Err()
	}

	navCtx, cancel := context.WithTimeout(browserCtx, opts.Timeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(opts.URL)); err != nil {
		h.Kill()
		return nil, fmt.Errorf("navigate %s: %w", opts.URL, err)
	}
	return h, nil
}

func (h *chromeHost) Process() *os.Process {
	c := chromedp.FromContext(h.browserCtx)
	if c == nil || c.Browser == nil {
		return nil
	}
	return c.Browser.Process()
}

func (h *chromeHost) Title(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(h.browserCtx, 2*time.Second)
	defer cancel()
	var title string
	err := chromedp.Run(ctx, chromedp.Title(&title))
	return title, err
}

func (h *chromeHost) Close(context.Context) error {
	return chromedp.Cancel(h.browserCtx)
}

func (h *chromeHost) Kill() {
	h.once.Do(func() {
		h.cancelCtx()
		h.cancelAlloc()
	})
}
