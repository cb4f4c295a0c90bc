package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/events"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/launcher"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/monitor"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/monitoring"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/scheduling"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// ErrNoWindow is returned by Focus for an instance without a visible window.
var ErrNoWindow = errors.New("instance has no window")

// Options configures a Service.
type Options struct {
	Launchers *launcher.Set
	// Registry defaults to an empty instance.Manager.
	Registry *instance.Manager
	// Windows defaults to a manager without an OS backend.
	Windows *window.Manager
	// Scheduler runs the monitor tick. Without one, Tick must be driven
	// by the caller.
	Scheduler       *scheduling.Scheduler
	MonitorInterval time.Duration
	GracefulTimeout time.Duration
	FinalTimeout    time.Duration
	// ConfirmPoll is how often a close waits re-check liveness.
	ConfirmPoll time.Duration
	Publisher   events.Publisher
	Metrics     *monitoring.Metrics
	Logger      *zap.Logger
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// Service orchestrates launching, monitoring and closing of application
// instances.
type Service struct {
	opts      Options
	launchers *launcher.Set
	registry  *instance.Manager
	windows   *window.Manager
	monitor   *monitor.Monitor
	publisher events.Publisher
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	gate   *gate
	closes singleflight.Group
}

// New creates a lifecycle service.
func New(opts Options) *Service {
	if opts.GracefulTimeout <= 0 {
		opts.GracefulTimeout = 5 * time.Second
	}
	if opts.FinalTimeout <= 0 {
		opts.FinalTimeout = 3 * time.Second
	}
	if opts.ConfirmPoll <= 0 {
		opts.ConfirmPoll = 100 * time.Millisecond
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("lifecycle")

	s := &Service{
		opts:      opts,
		launchers: opts.Launchers,
		registry:  opts.Registry,
		windows:   opts.Windows,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    logger,
		gate:      newGate(),
	}
	if s.launchers == nil {
		s.launchers = launcher.NewSet()
	}
	if s.registry == nil {
		s.registry = instance.NewManager()
	}
	if s.windows == nil {
		s.windows = window.NewManager(nil, logger)
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	s.monitor = monitor.New(monitor.Options{
		Interval:  opts.MonitorInterval,
		OnExit:    s.handleExit,
		Scheduler: opts.Scheduler,
		Metrics:   opts.Metrics,
		Logger:    logger.Named("monitor"),
	})
	return s
}

// Start schedules monitoring.
func (s *Service) Start() error {
	return s.monitor.Start()
}

// Stop unschedules monitoring. Instances are left running.
func (s *Service) Stop() error {
	return s.monitor.Stop()
}

// Tick runs one monitor pass.
func (s *Service) Tick(ctx context.Context) bool {
	return s.monitor.Tick(ctx)
}

// Registry exposes the instance registry for read access.
func (s *Service) Registry() *instance.Manager {
	return s.registry
}

// Launch starts def for owner. A failed launch returns a LaunchResult
// describing the failure together with a *launcher.LaunchError, and leaves
// nothing registered.
func (s *Service) Launch(ctx context.Context, def catalog.Definition, owner string) (LaunchResult, error) {
	start := time.Now()
	result := LaunchResult{DefinitionID: def.ID, Kind: def.Kind}

	fail := func(err *launcher.LaunchError) (LaunchResult, error) {
		result.Reason = err.Reason
		result.Error = err.Error()
		result.Duration = time.Since(start)
		s.recordLaunch(def, string(err.Reason), result.Duration)
		s.logger.Warn("Launch failed",
			zap.String("definition_id", def.ID),
			zap.String("kind", string(def.Kind)),
			zap.String("owner", owner),
			zap.String("reason", string(err.Reason)),
			zap.Error(err))

		e := events.New(events.TypeLaunchFailed)
		e.Owner = owner
		e.DefinitionID = def.ID
		e.Kind = string(def.Kind)
		e.Detail = err.Error()
		e.Data = map[string]any{"reason": string(err.Reason)}
		if err.Status != "" {
			e.Data["subsystem_status"] = string(err.Status)
		}
		s.publisher.Publish(e)
		return result, err
	}

	if err := def.Validate(); err != nil {
		return fail(launcher.Fail(def, launcher.ReasonInvalidDefinition, "", err))
	}
	l, ok := s.launchers.For(def.Kind)
	if !ok {
		return fail(launcher.Fail(def, launcher.ReasonUnsupportedKind, "no launcher for "+string(def.Kind), nil))
	}

	req := launcher.Request{InstanceID: id.NewInstanceID(), Definition: def, Owner: owner}
	admitted, refused := s.gate.enter(def, owner, req.InstanceID)
	if refused != nil {
		return fail(refused)
	}
	defer admitted.leave()

	tracking, err := l.Launch(ctx, req)
	if err != nil {
		var launchErr *launcher.LaunchError
		if !errors.As(err, &launchErr) {
			launchErr = launcher.Fail(def, launcher.ReasonSpawnFailed, "", err)
		}
		return fail(launchErr)
	}

	now := time.Now()
	inst := instance.Instance{
		ID:         req.InstanceID,
		Definition: def,
		Owner:      owner,
		Kind:       def.Kind,
		Tracking:   tracking,
		State:      instance.StateLaunching,
		LaunchedAt: now,
		LastSeenAt: now,
	}
	if _, err := s.registry.Register(inst); err != nil {
		// Ids are generated here, so a duplicate is a bug, not an environment failure.
		l.ForceClose(context.WithoutCancel(ctx), inst)
		l.Release(inst)
		return LaunchResult{}, fmt.Errorf("register instance: %w", err)
	}
	if _, err := s.registry.UpdateState(inst.ID, instance.StateRunning); err != nil {
		return LaunchResult{}, fmt.Errorf("start instance: %w", err)
	}
	inst.State = instance.StateRunning

	var done <-chan struct{}
	if tracking.Process != nil {
		done = tracking.Process.Done()
	}
	s.monitor.Arm(inst.ID, s.probe(l, inst.ID), done)
	s.updateActive()

	// A session that started ending while this launch was in flight must not
	// gain an instance, even if the seal has been lifted since: close it
	// before reporting the refusal.
	if refused := s.gate.check(def, admitted); refused != nil {
		s.logger.Info("Session ended during launch, closing instance", zap.String("instance_id", inst.ID.String()))
		s.closeOne(ctx, inst.ID, s.opts.GracefulTimeout, s.opts.FinalTimeout)
		result.InstanceID = inst.ID
		return fail(refused)
	}

	summary := inst.Summary()
	result.Success = true
	result.InstanceID = inst.ID
	result.Instance = &summary
	result.Duration = time.Since(start)
	s.recordLaunch(def, monitoring.OutcomeSuccess, result.Duration)

	s.logger.Info("Application launched",
		zap.String("instance_id", inst.ID.String()),
		zap.String("definition_id", def.ID),
		zap.String("kind", string(def.Kind)),
		zap.String("owner", owner),
		zap.Int("pid", inst.PID()),
		zap.Duration("duration", result.Duration))
	s.publish(events.TypeLaunchSucceeded, inst, "")
	return result, nil
}

// probe checks a running instance through its launcher. Instances that are
// closing are left to the close sequence.
func (s *Service) probe(l launcher.Launcher, instanceID id.InstanceID) monitor.Probe {
	return func(ctx context.Context) (bool, monitor.ExitReason) {
		inst, err := s.registry.Get(instanceID)
		if err != nil {
			return false, monitor.ReasonVanished
		}
		if inst.State != instance.StateRunning {
			return true, ""
		}
		if !l.IsStillRunning(ctx, inst) {
			return false, exitReason(inst.Kind)
		}
		s.registry.Touch(instanceID, time.Now())
		if wr, ok := l.(launcher.WindowReporter); ok {
			if ref := wr.LastWindow(inst); ref != nil {
				s.registry.SetWindow(instanceID, ref)
			}
		}
		return true, ""
	}
}

func exitReason(kind catalog.Kind) monitor.ExitReason {
	switch kind {
	case catalog.KindDesktop, catalog.KindEmbeddedBrowser:
		return monitor.ReasonExited
	case catalog.KindAndroid:
		return monitor.ReasonSubsystemStopped
	default:
		return monitor.ReasonWindowClosed
	}
}

// handleExit turns an exit no close was requested for into a crash.
func (s *Service) handleExit(ev monitor.Event) {
	inst, err := s.registry.Get(ev.InstanceID)
	if err != nil || inst.State != instance.StateRunning {
		return
	}
	changed, err := s.registry.UpdateState(ev.InstanceID, instance.StateCrashed)
	if err != nil || !changed {
		// A close sequence won the race and owns the instance now.
		return
	}

	if l, ok := s.launchers.For(inst.Kind); ok {
		l.Release(inst)
	}
	if _, err := s.registry.Remove(ev.InstanceID); err != nil {
		s.logger.Error("Failed to remove crashed instance", zap.String("instance_id", ev.InstanceID.String()), zap.Error(err))
	}
	s.updateActive()
	if s.metrics != nil {
		s.metrics.RecordCrash(string(inst.Kind), string(ev.Reason))
	}

	s.logger.Warn("Instance exited without a close request",
		zap.String("instance_id", inst.ID.String()),
		zap.String("definition_id", inst.Definition.ID),
		zap.String("owner", inst.Owner),
		zap.String("reason", string(ev.Reason)))
	s.publish(events.TypeInstanceCrashed, inst, string(ev.Reason))
}

// Instances lists the registered instances of user, or all of them when
// user is empty.
func (s *Service) Instances(user string) []instance.Summary {
	var list []instance.Instance
	if user == "" {
		list = s.registry.List()
	} else {
		list = s.registry.GetByUser(user)
	}
	out := make([]instance.Summary, 0, len(list))
	for _, inst := range list {
		out = append(out, inst.Summary())
	}
	return out
}

// Instance returns one instance.
func (s *Service) Instance(instanceID id.InstanceID) (instance.Instance, error) {
	return s.registry.Get(instanceID)
}

// Focus brings the instance's window to the front.
func (s *Service) Focus(ctx context.Context, instanceID id.InstanceID) error {
	inst, err := s.registry.Get(instanceID)
	if err != nil {
		return err
	}

	ref := inst.Tracking.Window
	if ref == nil {
		if ref, err = s.windows.FindWindowFor(ctx, inst.Tracking.Query()); err != nil {
			return err
		}
	}
	if ref == nil {
		return fmt.Errorf("%w: %s", ErrNoWindow, instanceID)
	}
	return s.windows.BringToFront(ctx, *ref)
}

func (s *Service) publish(t events.Type, inst instance.Instance, detail string) {
	e := events.New(t)
	e.InstanceID = inst.ID.String()
	e.Owner = inst.Owner
	e.DefinitionID = inst.Definition.ID
	e.Kind = string(inst.Kind)
	e.Detail = detail
	s.publisher.Publish(e)
}

func (s *Service) recordLaunch(def catalog.Definition, outcome string, took time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordLaunch(string(def.Kind), outcome, took)
	}
}

func (s *Service) updateActive() {
	if s.metrics != nil {
		s.metrics.SetInstancesActive(s.registry.Count())
	}
}
