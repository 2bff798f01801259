package worker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/graphql-crm/internal/jobs"
	"github.com/rl1809/graphql-crm/internal/port"
)

var ErrUnknownJob = errors.New("unknown job")

// Pool runs queued tasks on a fixed number of goroutines.
type Pool struct {
	queue       port.TaskQueue
	registry    *jobs.Registry
	size        int
	taskTimeout time.Duration
	pollTimeout time.Duration
	logger      logrus.FieldLogger
}

func NewPool(queue port.TaskQueue, registry *jobs.Registry, size int, taskTimeout, pollTimeout time.Duration, logger logrus.FieldLogger) *Pool {
	return &Pool{
		queue:       queue,
		registry:    registry,
		size:        size,
		taskTimeout: taskTimeout,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Run blocks until ctx is cancelled and every in-flight task has finished.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.workerLoop(ctx, id)
		}(i)
	}
	p.logger.WithField("workers", p.size).Info("started workers")

	wg.Wait()
	p.logger.Info("workers stopped")
	return nil
}

func (p *Pool) workerLoop(ctx context.Context, id int) {
	log := p.logger.WithField("worker", id)

	for ctx.Err() == nil {
		task, err := p.queue.Dequeue(ctx, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.pollTimeout):
			}
			continue
		}
		if task == nil {
			continue
		}

		// A task already taken off the queue finishes even during shutdown.
		p.Execute(context.WithoutCancel(ctx), log, *task)
	}
}

// Execute runs one task under the task timeout. Failures are logged; the
// task is not retried.
func (p *Pool) Execute(ctx context.Context, log logrus.FieldLogger, task port.Task) error {
	log = log.WithFields(logrus.Fields{
		"task_id": task.ID,
		"job":     task.Job,
	})

	job, ok := p.registry.Get(task.Job)
	if !ok {
		log.Error("unknown job")
		return ErrUnknownJob
	}

	ctx, cancel := context.WithTimeout(ctx, p.taskTimeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.WithError(err).WithField("duration", time.Since(start)).Error("task failed")
		return err
	}
	log.WithFields(logrus.Fields{
		"duration": time.Since(start),
		"queued":   start.Sub(task.EnqueuedAt),
	}).Info("task done")
	return nil
}
