package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Lifecycle metrics
	LaunchesTotal    *prometheus.CounterVec
	LaunchDuration   *prometheus.HistogramVec
	InstancesActive  prometheus.Gauge
	CrashesTotal     *prometheus.CounterVec
	ClosesTotal      *prometheus.CounterVec
	CloseDuration    *prometheus.HistogramVec
	ShutdownDuration *prometheus.HistogramVec
	ShutdownFailures *prometheus.CounterVec

	// Monitor metrics
	MonitorTicks        prometheus.Counter
	MonitorTickSkipped  prometheus.Counter
	MonitorTickDuration prometheus.Histogram

	// Subsystem metrics
	AndroidStatus *prometheus.GaugeVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	ActiveInstances int64   `json:"active_instances"`
	Launches        int64   `json:"launches"`
	LaunchFailures  int64   `json:"launch_failures"`
	Crashes         int64   `json:"crashes"`
	ForcedCloses    int64   `json:"forced_closes"`
	TotalDuration   float64 `json:"-"`
	RequestCount    int64   `json:"-"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector registered on reg. A nil reg uses
// the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launcher_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launcher_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launcher_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Lifecycle metrics
		LaunchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_launches_total",
				Help: "Total number of launch attempts",
			},
			[]string{"kind", "outcome"},
		),
		LaunchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launcher_launch_duration_seconds",
				Help:    "Launch duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		InstancesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "launcher_instances_active",
				Help: "Number of registered application instances",
			},
		),
		CrashesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_crashes_total",
				Help: "Total number of instances that exited without a close request",
			},
			[]string{"kind", "reason"},
		),
		ClosesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_closes_total",
				Help: "Total number of close sequences",
			},
			[]string{"kind", "method", "outcome"},
		),
		CloseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launcher_close_duration_seconds",
				Help:    "Close sequence duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"kind", "method"},
		),
		ShutdownDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launcher_shutdown_duration_seconds",
				Help:    "Bulk shutdown duration in seconds",
				Buckets: []float64{.05, .1, .5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"scope"},
		),
		ShutdownFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_shutdown_failures_total",
				Help: "Instances a bulk shutdown could not confirm closed",
			},
			[]string{"scope"},
		),

		// Monitor metrics
		MonitorTicks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "launcher_monitor_ticks_total",
				Help: "Total number of monitor ticks run",
			},
		),
		MonitorTickSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "launcher_monitor_ticks_skipped_total",
				Help: "Monitor ticks skipped because the previous tick was still running",
			},
		),
		MonitorTickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "launcher_monitor_tick_duration_seconds",
				Help:    "Monitor tick duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),

		// Subsystem metrics
		AndroidStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "launcher_android_status",
				Help: "Android subsystem status, 1 for the current status",
			},
			[]string{"status"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "launcher_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "launcher_uptime_seconds",
			Help: "Daemon uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordLaunch records a launch attempt. outcome is "success" or a failure reason.
func (m *Metrics) RecordLaunch(kind, outcome string, duration time.Duration) {
	m.LaunchesTotal.WithLabelValues(kind, outcome).Inc()
	m.LaunchDuration.WithLabelValues(kind).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Launches++
	if outcome != OutcomeSuccess {
		m.snapshot.LaunchFailures++
	}
	m.mu.Unlock()
}

// RecordCrash records an instance that exited on its own.
func (m *Metrics) RecordCrash(kind, reason string) {
	m.CrashesTotal.WithLabelValues(kind, reason).Inc()
	m.mu.Lock()
	m.snapshot.Crashes++
	m.mu.Unlock()
}

// RecordClose records a finished close sequence.
func (m *Metrics) RecordClose(kind, method, outcome string, duration time.Duration) {
	m.ClosesTotal.WithLabelValues(kind, method, outcome).Inc()
	m.CloseDuration.WithLabelValues(kind, method).Observe(duration.Seconds())
	if method == "forced" {
		m.mu.Lock()
		m.snapshot.ForcedCloses++
		m.mu.Unlock()
	}
}

// RecordShutdown records a bulk shutdown. scope is "all" or "user".
func (m *Metrics) RecordShutdown(scope string, failed int, duration time.Duration) {
	m.ShutdownDuration.WithLabelValues(scope).Observe(duration.Seconds())
	if failed > 0 {
		m.ShutdownFailures.WithLabelValues(scope).Add(float64(failed))
	}
}

// RecordMonitorTick records a completed monitor tick.
func (m *Metrics) RecordMonitorTick(duration time.Duration) {
	m.MonitorTicks.Inc()
	m.MonitorTickDuration.Observe(duration.Seconds())
}

// IncMonitorTickSkipped counts a tick dropped because another was in progress.
func (m *Metrics) IncMonitorTickSkipped() {
	m.MonitorTickSkipped.Inc()
}

// SetInstancesActive sets the number of registered instances
func (m *Metrics) SetInstancesActive(count int) {
	m.InstancesActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveInstances = int64(count)
	m.mu.Unlock()
}

// SetAndroidStatus marks status as the current Android subsystem status.
func (m *Metrics) SetAndroidStatus(status string, known []string) {
	for _, s := range known {
		m.AndroidStatus.WithLabelValues(s).Set(0)
	}
	m.AndroidStatus.WithLabelValues(status).Set(1)
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns the current values for the JSON API.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}

// AverageRequestDuration returns the mean HTTP request duration.
func (m *Metrics) AverageRequestDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot.RequestCount == 0 {
		return 0
	}
	return time.Duration(m.snapshot.TotalDuration / float64(m.snapshot.RequestCount) * float64(time.Second))
}
