package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/monitoring"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/scheduling"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// JobName is the scheduler job used for monitor ticks.
const JobName scheduling.JobName = "instance-monitor"

// ExitReason says how an exit was observed.
type ExitReason string

const (
	ReasonExited           ExitReason = "exited"
	ReasonWindowClosed     ExitReason = "window-closed"
	ReasonSubsystemStopped ExitReason = "subsystem-stopped"
	ReasonVanished         ExitReason = "vanished"
)

// Event reports that an armed instance is gone.
type Event struct {
	InstanceID id.InstanceID
	Reason     ExitReason
	At         time.Time
}

// Probe checks one instance. It returns false with a reason once the
// instance is gone.
type Probe func(ctx context.Context) (alive bool, reason ExitReason)

// Options configures a Monitor.
type Options struct {
	Interval time.Duration
	// ProbeTimeout bounds a single probe; zero uses Interval.
	ProbeTimeout time.Duration
	// Parallelism bounds concurrent probes in one tick.
	Parallelism int
	OnExit      func(Event)
	Scheduler   *scheduling.Scheduler
	Metrics     *monitoring.Metrics
	Logger      *zap.Logger
}

type watch struct {
	probe Probe
	stop  chan struct{}
}

// Monitor probes armed instances on a recurring tick and reports each exit
// at most once.
type Monitor struct {
	opts    Options
	logger  *zap.Logger
	ticking atomic.Bool

	mu      sync.Mutex
	watches map[id.InstanceID]*watch
}

// New creates a monitor.
func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = opts.Interval
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 8
	}
	if opts.OnExit == nil {
		opts.OnExit = func(Event) {}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		opts:    opts,
		logger:  logger,
		watches: make(map[id.InstanceID]*watch),
	}
}

// Start schedules the tick.
func (m *Monitor) Start() error {
	if m.opts.Scheduler == nil {
		return nil
	}
	return m.opts.Scheduler.Every(JobName, m.opts.Interval, func(ctx context.Context) error {
		m.Tick(ctx)
		return nil
	})
}

// Stop unschedules the tick. Armed watches stay armed.
func (m *Monitor) Stop() error {
	if m.opts.Scheduler == nil {
		return nil
	}
	return m.opts.Scheduler.Remove(JobName)
}

// Arm starts watching an instance. When done is non-nil its closing
// triggers an immediate probe, and the exit is reported as ReasonExited
// without waiting for a tick unless the probe still finds the instance
// alive (a process group that outlived its leader).
func (m *Monitor) Arm(instanceID id.InstanceID, probe Probe, done <-chan struct{}) {
	w := &watch{probe: probe, stop: make(chan struct{})}

	m.mu.Lock()
	if old, ok := m.watches[instanceID]; ok {
		close(old.stop)
	}
	m.watches[instanceID] = w
	m.mu.Unlock()

	if done != nil {
		go func() {
			select {
			case <-done:
				ctx, cancel := context.WithTimeout(context.Background(), m.opts.ProbeTimeout)
				alive, _ := w.probe(ctx)
				cancel()
				if !alive {
					m.report(instanceID, w, ReasonExited)
				}
			case <-w.stop:
			}
		}()
	}
}

// Disarm stops watching an instance. Unknown ids are ignored.
func (m *Monitor) Disarm(instanceID id.InstanceID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.watches[instanceID]; ok {
		delete(m.watches, instanceID)
		close(w.stop)
	}
}

// Armed returns the number of watched instances.
func (m *Monitor) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches)
}

// Tick probes every armed instance once. A tick that starts while another is
// still running returns immediately and reports false.
func (m *Monitor) Tick(ctx context.Context) bool {
	if !m.ticking.CompareAndSwap(false, true) {
		if m.opts.Metrics != nil {
			m.opts.Metrics.IncMonitorTickSkipped()
		}
		m.logger.Debug("Monitor tick skipped, previous tick still running")
		return false
	}
	defer m.ticking.Store(false)
	start := time.Now()

	m.mu.Lock()
	snapshot := make(map[id.InstanceID]*watch, len(m.watches))
	for k, w := range m.watches {
		snapshot[k] = w
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Parallelism)
	for instanceID, w := range snapshot {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, m.opts.ProbeTimeout)
			defer cancel()
			alive, reason := w.probe(pctx)
			if !alive {
				if reason == "" {
					reason = ReasonVanished
				}
				m.report(instanceID, w, reason)
			}
			return nil
		})
	}
	_ = g.Wait()

	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordMonitorTick(time.Since(start))
	}
	return true
}

// report delivers an exit unless the watch was disarmed or already reported.
func (m *Monitor) report(instanceID id.InstanceID, w *watch, reason ExitReason) {
	m.mu.Lock()
	current, ok := m.watches[instanceID]
	if !ok || current != w {
		m.mu.Unlock()
		return
	}
	delete(m.watches, instanceID)
	close(w.stop)
	m.mu.Unlock()

	m.logger.Debug("Instance exit detected",
		zap.String("instance_id", instanceID.String()),
		zap.String("reason", string(reason)))
	m.opts.OnExit(Event{InstanceID: instanceID, Reason: reason, At: time.Now()})
}
