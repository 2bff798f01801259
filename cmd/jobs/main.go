package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/rl1809/graphql-crm/internal/adapter/storage"
	"github.com/rl1809/graphql-crm/internal/clock"
	"github.com/rl1809/graphql-crm/internal/config"
	"github.com/rl1809/graphql-crm/internal/jobs"
	"github.com/rl1809/graphql-crm/internal/worker"
)

// env bundles what every subcommand needs.
type env struct {
	cfg      config.Config
	logger   *logrus.Logger
	clock    clock.Clock
	registry *jobs.Registry
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("failed to build logger: %v", err)
	}

	clk := clock.NewSystem()
	e := &env{
		cfg:      cfg,
		logger:   logger,
		clock:    clk,
		registry: jobs.NewDefaultRegistry(cfg, clk),
	}

	app := &cli.App{
		Name:  "crm-jobs",
		Usage: "schedule and run CRM background jobs",
		Commands: []*cli.Command{
			{
				Name:   "scheduler",
				Usage:  "enqueue jobs on their cron schedules",
				Action: e.runScheduler,
			},
			{
				Name:   "worker",
				Usage:  "run queued jobs",
				Action: e.runWorker,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "concurrency", Aliases: []string{"c"}, Value: cfg.WorkerCount, Usage: "number of workers"},
				},
			},
			{
				Name:      "run",
				Usage:     "run one job in this process",
				ArgsUsage: "<job>",
				Action:    e.runJob,
			},
			{
				Name:      "enqueue",
				Usage:     "push one job onto the queue",
				ArgsUsage: "<job>",
				Action:    e.enqueueJob,
			},
			{
				Name:   "list",
				Usage:  "list job names and schedules",
				Action: e.listJobs,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.WithError(err).Fatal("command failed")
	}
}

func (e *env) schedules() map[string]string {
	return map[string]string{
		jobs.NameHeartbeat: e.cfg.Schedule.Heartbeat,
		jobs.NameLowStock:  e.cfg.Schedule.LowStock,
		jobs.NameReport:    e.cfg.Schedule.Report,
		jobs.NameReminders: e.cfg.Schedule.Reminders,
	}
}

func (e *env) redisQueue(ctx context.Context) (*storage.RedisAdapter, func() error, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: e.cfg.RedisAddr,
		DB:   e.cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, errors.Wrap(err, "connect redis")
	}
	return storage.NewRedisAdapter(rdb, e.cfg.QueueName, e.cfg.DedupeTTL), rdb.Close, nil
}

func (e *env) jobArg(c *cli.Context) (string, error) {
	name := c.Args().First()
	if _, ok := e.registry.Get(name); !ok {
		return "", errors.Wrapf(worker.ErrUnknownJob, "%q (see list)", name)
	}
	return name, nil
}

func (e *env) runScheduler(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue, closeQueue, err := e.redisQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	s := worker.NewScheduler(queue, e.clock, e.logger)
	for name, spec := range e.schedules() {
		if err := s.Add(spec, name); err != nil {
			return err
		}
	}
	return s.Run(ctx)
}

func (e *env) runWorker(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue, closeQueue, err := e.redisQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	size := c.Int("concurrency")
	if size <= 0 {
		return errors.Errorf("concurrency must be positive, got %d", size)
	}

	if n, err := queue.Len(ctx); err == nil {
		e.logger.WithField("pending", n).Info("queue backlog")
	}

	pool := worker.NewPool(queue, e.registry, size, e.cfg.TaskTimeout, e.cfg.PollTimeout, e.logger)
	return pool.Run(ctx)
}

func (e *env) runJob(c *cli.Context) error {
	name, err := e.jobArg(c)
	if err != nil {
		return err
	}
	job, _ := e.registry.Get(name)

	ctx, cancel := context.WithTimeout(c.Context, e.cfg.TaskTimeout)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		return errors.Wrapf(err, "run %s", name)
	}
	e.logger.WithField("job", name).Info("job finished")
	return nil
}

func (e *env) enqueueJob(c *cli.Context) error {
	name, err := e.jobArg(c)
	if err != nil {
		return err
	}

	queue, closeQueue, err := e.redisQueue(c.Context)
	if err != nil {
		return err
	}
	defer closeQueue()

	_, err = worker.NewScheduler(queue, e.clock, e.logger).Submit(c.Context, name)
	return err
}

func (e *env) listJobs(c *cli.Context) error {
	schedules := e.schedules()
	for _, name := range e.registry.Names() {
		spec, ok := schedules[name]
		if !ok {
			spec = "manual"
		}
		fmt.Fprintf(c.App.Writer, "%-10s %s\n", name, spec)
	}
	return nil
}
