package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/graphql-crm/internal/clock"
	"github.com/rl1809/graphql-crm/internal/port"
)

const enqueueTimeout = 5 * time.Second

// Scheduler turns cron ticks into queued tasks. Ticks for the same job in
// the same minute collapse into one task.
type Scheduler struct {
	cron   *cron.Cron
	queue  port.TaskQueue
	clock  clock.Clock
	logger logrus.FieldLogger
}

func NewScheduler(queue port.TaskQueue, clk clock.Clock, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		queue:  queue,
		clock:  clk,
		logger: logger,
	}
}

// Add schedules job on a standard five-field cron spec.
func (s *Scheduler) Add(spec, job string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
		defer cancel()
		s.Tick(ctx, job)
	})
	if err != nil {
		return errors.Wrapf(err, "schedule %s at %q", job, spec)
	}
	s.logger.WithFields(logrus.Fields{"job": job, "spec": spec}).Info("job scheduled")
	return nil
}

// Tick enqueues job at most once per minute slot.
func (s *Scheduler) Tick(ctx context.Context, job string) (bool, error) {
	now := s.clock.Now()
	return s.enqueue(ctx, job, job+":"+now.Truncate(time.Minute).Format("200601021504"))
}

// Submit enqueues job unconditionally.
func (s *Scheduler) Submit(ctx context.Context, job string) (bool, error) {
	return s.enqueue(ctx, job, "")
}

func (s *Scheduler) enqueue(ctx context.Context, job, dedupeKey string) (bool, error) {
	task := port.Task{
		ID:         uuid.NewString(),
		Job:        job,
		EnqueuedAt: s.clock.Now(),
	}
	log := s.logger.WithFields(logrus.Fields{"job": job, "task_id": task.ID})

	queued, err := s.queue.Enqueue(ctx, task, dedupeKey)
	if err != nil {
		log.WithError(err).Error("enqueue failed")
		return false, errors.Wrapf(err, "enqueue %s", job)
	}
	if !queued {
		log.Debug("duplicate tick skipped")
		return false, nil
	}
	log.Info("task enqueued")
	return true, nil
}

// Run starts the cron loop and blocks until ctx is cancelled and running
// enqueue callbacks return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}
