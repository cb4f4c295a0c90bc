package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/events"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/scheduling"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/android"
)

const (
	auditPruneJob    scheduling.JobName = "audit-prune"
	catalogReloadJob scheduling.JobName = "catalog-reload"

	auditPruneInterval = time.Hour
)

func (s *Server) scheduleJobs() error {
	if s.audit != nil && s.config.Audit.Retention > 0 {
		retention := s.config.Audit.Retention
		err := s.scheduler.Every(auditPruneJob, auditPruneInterval, func(ctx context.Context) error {
			n, err := s.audit.Prune(ctx, retention)
			if err == nil && n > 0 {
				s.logger.Info("Pruned audit log", zap.Int64("events", n))
			}
			return err
		})
		if err != nil {
			return err
		}
	}

	if interval := s.config.Catalog.ReloadInterval; interval > 0 {
		if err := s.scheduler.Every(catalogReloadJob, interval, s.catalog.Reload); err != nil {
			return err
		}
	}
	return nil
}

// forwardAndroidStatus republishes subsystem status changes as events and
// metrics. The returned func stops forwarding.
func (s *Server) forwardAndroidStatus() func() {
	statuses, cancel := s.android.Subscribe()
	s.recordAndroidStatus(s.android.Status())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for status := range statuses {
			s.recordAndroidStatus(status)

			e := events.New(events.TypeAndroidStatus)
			e.Detail = string(status)
			e.Data = map[string]any{"status": string(status)}
			s.bus.Publish(e)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *Server) recordAndroidStatus(status android.Status) {
	known := make([]string, len(android.Statuses))
	for i, st := range android.Statuses {
		known[i] = string(st)
	}
	s.metrics.SetAndroidStatus(string(status), known)
}
