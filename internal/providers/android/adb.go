package android

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/resilience"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/scheduling"
)

// ReadinessJob is the scheduler job name used by Attach.
const ReadinessJob scheduling.JobName = "android-readiness"

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Options configures an ADBBridge.
type Options struct {
	Enabled        bool
	ADBPath        string
	Serial         string
	CommandTimeout time.Duration
	Breaker        resilience.Settings
}

// ADBBridge talks to the Android subsystem over adb. Every adb invocation
// goes through a circuit breaker so a wedged subsystem fails launches fast.
type ADBBridge struct {
	opts    Options
	run     Runner
	breaker *resilience.Breaker
	logger  *zap.Logger
	notify  notifier

	mu     sync.RWMutex
	status Status
}

// NewADBBridge creates a bridge. A disabled bridge stays Disabled and never
// runs adb.
func NewADBBridge(opts Options, run Runner, logger *zap.Logger) *ADBBridge {
	if opts.ADBPath == "" {
		opts.ADBPath = "adb"
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 10 * time.Second
	}
	if run == nil {
		run = execRunner
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &ADBBridge{opts: opts, run: run, logger: logger, status: StatusInitializing}
	if !opts.Enabled {
		b.status = StatusDisabled
	}

	settings := opts.Breaker
	onChange := settings.OnStateChange
	settings.OnStateChange = func(name string, from, to resilience.State) {
		logger.Warn("Android bridge breaker changed state",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		if onChange != nil {
			onChange(name, from, to)
		}
	}
	b.breaker = resilience.New("adb", settings)
	return b
}

// Status returns the last observed readiness.
func (b *ADBBridge) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Subscribe implements Bridge.
func (b *ADBBridge) Subscribe() (<-chan Status, func()) {
	return b.notify.subscribe()
}

// Attach polls readiness on the scheduler every interval.
func (b *ADBBridge) Attach(s *scheduling.Scheduler, interval time.Duration) error {
	if !b.opts.Enabled {
		return nil
	}
	return s.Every(ReadinessJob, interval, func(ctx context.Context) error {
		_, err := b.Refresh(ctx)
		return err
	})
}

// Refresh probes the subsystem and updates the status.
func (b *ADBBridge) Refresh(ctx context.Context) (Status, error) {
	if !b.opts.Enabled {
		return StatusDisabled, nil
	}
	status, err := b.probe(ctx)
	b.setStatus(status)
	return status, err
}

func (b *ADBBridge) probe(ctx context.Context) (Status, error) {
	if strings.Contains(b.opts.Serial, ":") {
		out, err := b.adb(ctx, "connect", b.opts.Serial)
		if err != nil {
			return StatusError, err
		}
		if strings.Contains(string(out), "cannot connect") || strings.Contains(string(out), "failed") {
			return StatusError, fmt.Errorf("adb connect %s: %s", b.opts.Serial, strings.TrimSpace(string(out)))
		}
	}

	out, err := b.device(ctx, "get-state")
	if err != nil {
		return StatusError, err
	}
	switch strings.TrimSpace(string(out)) {
	case "device":
	case "offline", "bootloader", "recovery", "unauthorized":
		return StatusInitializing, nil
	default:
		return StatusError, fmt.Errorf("unexpected device state %q", strings.TrimSpace(string(out)))
	}

	out, err = b.device(ctx, "shell", "getprop", "sys.boot_completed")
	if err != nil {
		return StatusError, err
	}
	if strings.TrimSpace(string(out)) != "1" {
		return StatusInitializing, nil
	}

	out, err = b.device(ctx, "shell", "dumpsys", "power")
	if err != nil {
		return StatusError, err
	}
	if suspended(string(out)) {
		return StatusSuspended, nil
	}
	return StatusAvailable, nil
}

func suspended(dumpsys string) bool {
	for _, line := range strings.Split(dumpsys, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "mWakefulness="); ok {
			return v == "Asleep" || v == "Dozing"
		}
	}
	return false
}

func (b *ADBBridge) setStatus(s Status) {
	b.mu.Lock()
	prev := b.status
	b.status = s
	b.mu.Unlock()

	if prev == s {
		return
	}
	b.logger.Info("Android subsystem status changed",
		zap.String("from", string(prev)),
		zap.String("to", string(s)))
	b.notify.publish(s)
}

// Start launches pkg, optionally at a specific activity.
func (b *ADBBridge) Start(ctx context.Context, pkg, activity string) error {
	if status := b.Status(); status != StatusAvailable {
		return &UnavailableError{Status: status}
	}

	var (
		out []byte
		err error
	)
	if activity != "" {
		component := pkg + "/" + activity
		out, err = b.device(ctx, "shell", "am", "start", "-n", component)
	} else {
		out, err = b.device(ctx, "shell", "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	}
	if err != nil {
		return b.commandFailed(err)
	}

	text := string(out)
	switch {
	case strings.Contains(text, "No activities found"),
		strings.Contains(text, "does not exist"),
		strings.Contains(text, "Unable to resolve Intent"):
		return fmt.Errorf("%w: %s", ErrPackageNotFound, pkg)
	case strings.Contains(text, "Error:"), strings.Contains(text, "monkey aborted"):
		return fmt.Errorf("start %s: %s", pkg, strings.TrimSpace(text))
	}
	return nil
}

// Stop force-stops pkg.
func (b *ADBBridge) Stop(ctx context.Context, pkg string) error {
	if b.Status() == StatusDisabled {
		return &UnavailableError{Status: StatusDisabled}
	}
	if _, err := b.device(ctx, "shell", "am", "force-stop", pkg); err != nil {
		return b.commandFailed(err)
	}
	return nil
}

// IsRunning reports whether pkg has a live process.
func (b *ADBBridge) IsRunning(ctx context.Context, pkg string) (bool, error) {
	if b.Status() == StatusDisabled {
		return false, &UnavailableError{Status: StatusDisabled}
	}
	// adb joins the arguments into one remote shell command line.
	out, err := b.device(ctx, "shell", "pidof", pkg, "||", "true")
	if err != nil {
		return false, b.commandFailed(err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}

func (b *ADBBridge) commandFailed(err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		b.setStatus(StatusError)
		return &UnavailableError{Status: StatusError}
	}
	return err
}

func (b *ADBBridge) device(ctx context.Context, args ...string) ([]byte, error) {
	if b.opts.Serial != "" {
		args = append([]string{"-s", b.opts.Serial}, args...)
	}
	return b.adb(ctx, args...)
}

func (b *ADBBridge) adb(ctx context.Context, args ...string) ([]byte, error) {
	return resilience.Call(b.breaker, func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, b.opts.CommandTimeout)
		defer cancel()
		out, err := b.run(ctx, b.opts.ADBPath, args...)
		if err != nil {
			return out, fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
		}
		return out, nil
	})
}
