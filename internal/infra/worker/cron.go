package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job struct {
	Name     string
	Schedule string
	// Timeout bounds a single run; zero means no limit beyond the Cron's context.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Cron runs Jobs on their schedules in a fixed timezone. A run that is still
// going when its next tick fires causes that tick to be skipped.
type Cron struct {
	c       *cron.Cron
	logger  *slog.Logger
	metrics *JobMetrics
	jobs    []Job

	// base is set by Run before the scheduler starts.
	base context.Context
}

// NewCron builds a scheduler for the IANA timezone name. metrics may be nil.
func NewCron(timezone string, logger *slog.Logger, metrics *JobMetrics) (*Cron, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Cron{
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:  logger,
		metrics: metrics,
		base:    context.Background(),
	}, nil
}

// Add registers job. It must be called before Run.
func (c *Cron) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %q has no Run func", job.Name)
	}
	if _, err := c.c.AddFunc(job.Schedule, func() { _ = c.RunOnce(c.base, job) }); err != nil {
		return fmt.Errorf("schedule job %q: %w", job.Name, err)
	}
	c.jobs = append(c.jobs, job)
	return nil
}

// Jobs returns the registered jobs in registration order.
func (c *Cron) Jobs() []Job {
	return append([]Job(nil), c.jobs...)
}

// Run starts the scheduler and blocks until ctx is done, then waits for any
// running job to return.
func (c *Cron) Run(ctx context.Context) error {
	c.base = ctx
	c.c.Start()
	c.logger.Info("cron started", slog.Int("jobs", len(c.jobs)))

	<-ctx.Done()
	<-c.c.Stop().Done()
	c.logger.Info("cron stopped")
	return nil
}

// RunOnce executes job immediately with metrics and panic recovery.
func (c *Cron) RunOnce(ctx context.Context, job Job) (err error) {
	start := time.Now()
	c.metrics.RecordJobRun(job.Name, "started")
	c.logger.Info("job started", slog.String("job", job.Name))

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %q panicked: %v", job.Name, rec)
			c.logger.Error("job panicked",
				slog.String("job", job.Name),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
		}

		elapsed := time.Since(start)
		c.metrics.RecordJobDuration(job.Name, elapsed.Seconds())
		if err != nil {
			c.metrics.RecordJobRun(job.Name, "failure")
			c.logger.Error("job failed",
				slog.String("job", job.Name),
				slog.Duration("duration", elapsed),
				slog.Any("error", err))
			return
		}
		c.metrics.RecordJobRun(job.Name, "success")
		c.metrics.RecordLastSuccess(job.Name)
		c.logger.Info("job completed",
			slog.String("job", job.Name),
			slog.Duration("duration", elapsed))
	}()

	return job.Run(ctx)
}
