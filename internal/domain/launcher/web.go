package launcher

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/process"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
)

// WebOptions configures the external-browser launcher.
type WebOptions struct {
	Opener Opener
	// Preflight fetches the page before opening it to fail fast on
	// unreachable hosts and to learn the page title for window matching.
	Preflight        bool
	PreflightTimeout time.Duration
	Tracker          TrackerOptions
}

// Web opens URLs in the user's browser. There is no process to own, so the
// instance lives as long as its browser window.
type Web struct {
	opts    WebOptions
	exec    *process.Executor
	client  *resty.Client
	tracker *windowTracker
	logger  *zap.Logger
}

// NewWeb creates the web launcher.
func NewWeb(opts WebOptions, exec *process.Executor, windows *window.Manager, logger *zap.Logger) *Web {
	if opts.PreflightTimeout <= 0 {
		opts.PreflightTimeout = 5 * time.Second
	}
	if opts.Opener.Command == "" {
		opts.Opener = DefaultOpener("")
	}
	logger = named(logger, "web")

	client := resty.New().
		SetTimeout(opts.PreflightTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "launcherd-preflight/1.0")

	return &Web{
		opts:    opts,
		exec:    exec,
		client:  client,
		tracker: newWindowTracker(windows, opts.Tracker, logger),
		logger:  logger,
	}
}

func (w *Web) Kind() catalog.Kind { return catalog.KindWeb }

func (w *Web) Launch(ctx context.Context, req Request) (instance.Tracking, error) {
	def := req.Definition
	u, err := url.Parse(def.Target)
	if err != nil || u.Host == "" {
		return instance.Tracking{}, Fail(def, ReasonInvalidDefinition, "target is not a url", err)
	}

	var pageTitle string
	if w.opts.Preflight {
		pageTitle, err = w.preflight(ctx, def.Target)
		if err != nil {
			return instance.Tracking{}, Fail(def, ReasonUnreachable, u.Host, err)
		}
	}

	if err := w.opts.Opener.open(ctx, w.exec, def, def.Target); err != nil {
		return instance.Tracking{}, err
	}
	w.tracker.start(req.InstanceID)

	pattern := titlePattern(def.WindowTitle, pageTitle, u.Hostname())
	w.logger.Info("Web application opened",
		zap.String("instance_id", req.InstanceID.String()),
		zap.String("url", def.Target),
		zap.String("title_pattern", pattern))
	return instance.Tracking{TitlePattern: pattern}, nil
}

// preflight checks that the URL answers and returns its <title>.
func (w *Web) preflight(ctx context.Context, target string) (string, error) {
	resp, err := w.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(target)
	if err != nil {
		return "", err
	}
	body := resp.RawBody()
	defer body.Close()

	if !strings.Contains(resp.Header().Get("Content-Type"), "html") {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(doc.Find("head title").First().Text()), nil
}

func (w *Web) IsStillRunning(ctx context.Context, inst instance.Instance) bool {
	return w.tracker.alive(ctx, inst)
}

func (w *Web) RequestGracefulClose(ctx context.Context, inst instance.Instance) bool {
	return w.tracker.requestClose(ctx, inst)
}

func (w *Web) ForceClose(ctx context.Context, inst instance.Instance) bool {
	return w.tracker.forceClose(ctx, inst)
}

func (w *Web) LastWindow(inst instance.Instance) *window.Ref {
	return w.tracker.lastWindow(inst)
}

func (w *Web) Release(inst instance.Instance) {
	w.tracker.forget(inst.ID)
}

// titlePattern picks the most specific window title glob available.
func titlePattern(configured, pageTitle, fallback string) string {
	switch {
	case configured != "":
		return configured
	case pageTitle != "":
		return "*" + escapeGlob(pageTitle) + "*"
	case fallback != "":
		return "*" + escapeGlob(fallback) + "*"
	}
	return ""
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`)
	return r.Replace(s)
}
