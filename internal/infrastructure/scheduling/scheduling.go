package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobName represents the name of a periodic job.
type JobName string

// JobFunc is the body of a periodic job.
type JobFunc func(context.Context) error

// ErrInvalidInterval is returned when a job interval is not positive.
var ErrInvalidInterval = errors.New("job interval must be positive")

// Scheduler runs recurring background jobs. A run that is still in progress
// when the next one is due causes that next run to be skipped, never queued.
type Scheduler struct {
	mu        sync.Mutex
	jobs      map[JobName]uuid.UUID
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(logger *zap.Logger) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		jobs:      map[JobName]uuid.UUID{},
		scheduler: scheduler,
		logger:    logger,
	}, nil
}

// Every registers a job running at a fixed interval. Registering an existing
// name replaces its schedule and body.
func (s *Scheduler) Every(name JobName, interval time.Duration, jobFunc JobFunc) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	definition := gocron.DurationJob(interval)
	task := gocron.NewTask(s.wrapJob(name, jobFunc))
	singleton := gocron.WithSingletonMode(gocron.LimitModeReschedule)

	if id, ok := s.jobs[name]; ok {
		_, err := s.scheduler.Update(id, definition, task, singleton, gocron.WithName(string(name)))
		return err
	}

	job, err := s.scheduler.NewJob(definition, task, singleton, gocron.WithName(string(name)))
	if err != nil {
		return err
	}
	s.jobs[name] = job.ID()
	return nil
}

// Remove unregisters a job. Unknown names are ignored.
func (s *Scheduler) Remove(name JobName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.jobs[name]
	if !ok {
		return nil
	}
	delete(s.jobs, name)
	return s.scheduler.RemoveJob(id)
}

// Start starts the scheduler and its registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) wrapJob(name JobName, jobFunc JobFunc) func(context.Context) {
	return func(ctx context.Context) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := jobFunc(ctx); err != nil {
			s.logger.Warn("Periodic job failed", zap.String("job", string(name)), zap.Error(err))
		}
	}
}
