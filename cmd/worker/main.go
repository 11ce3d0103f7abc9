// Command worker consumes fetch-media-request jobs, runs the reconciliation
// sweep on a cron schedule and serves health and metrics endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"reel-relay/internal/app"
	"reel-relay/internal/config"
	"reel-relay/internal/handler/http/respond"
	"reel-relay/internal/infra/queue"
	"reel-relay/internal/infra/worker"
	"reel-relay/internal/resilience/circuitbreaker"
	adminUC "reel-relay/internal/usecase/admin"
	"reel-relay/internal/usecase/ingest"
	"reel-relay/internal/usecase/process"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, app.Options{Role: config.RoleWorker})
	if err != nil {
		slog.Error("worker bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	err = run(ctx, a)
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	a.Close(closeCtx)
	cancel()
	if err != nil {
		// 機密情報をマスクしてログ出力
		a.Logger.Error("worker stopped with error", slog.String("error", respond.SanitizeError(err)))
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App) error {
	cfg := a.Config
	logger := a.Logger

	classifier, err := process.ClassifierByName(cfg.Pipeline.Classifier)
	if err != nil {
		return err
	}

	ig := a.NewInstagramClient()
	sender := a.NewTelegramSender()

	q, err := a.OpenQueue(ctx)
	if err != nil {
		return err
	}

	proc := &process.Service{
		Requests: a.Requests,
		Media:    a.Media,
		Failures: a.Failures,
		Lookup:   ig,
		Sender:   sender,
		Config: process.Config{
			MaxAttempts:     cfg.Pipeline.MaxAttempts,
			BackoffBase:     cfg.Pipeline.BackoffBase,
			BackoffMax:      cfg.Pipeline.BackoffMax,
			GroupInviteLink: cfg.Telegram.GroupInviteLink,
		},
		Classifier: classifier,
	}
	reconciler := &adminUC.Reconciler{
		Requests:   a.Requests,
		Queue:      &ingest.Service{Requests: a.Requests, Banned: a.Banned, Queue: q},
		StaleAfter: cfg.Worker.ReconcileStaleAfter,
	}

	jobMetrics := worker.NewJobMetrics(nil)
	crons, err := worker.NewCron(cfg.Worker.Timezone, logger, jobMetrics)
	if err != nil {
		return err
	}
	reconcileJob := worker.Job{
		Name:     "reconcile",
		Schedule: cfg.Worker.ReconcileSchedule,
		Timeout:  5 * time.Minute,
		Run: func(ctx context.Context) error {
			res, err := reconciler.Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("reconcile completed",
				slog.Int("scanned", res.Scanned),
				slog.Int("enqueued", res.Enqueued),
				slog.Int("collapsed", res.Collapsed),
				slog.Int("failed", res.Failed))
			return nil
		},
	}
	if err := crons.Add(reconcileJob); err != nil {
		return err
	}
	if err := crons.Add(worker.Job{
		Name:     "config-refresh",
		Schedule: "@every 1m",
		Timeout:  10 * time.Second,
		Run: func(ctx context.Context) error {
			_, err := a.Runtime.Reload(ctx)
			return err
		},
	}); err != nil {
		return err
	}

	health := worker.NewHealthServer(":"+cfg.Worker.HealthPort, logger)
	health.AddCheck("database", a.DB.PingContext)
	health.AddCheck("queue", q.Ping)

	breakers := []*circuitbreaker.CircuitBreaker{ig.Breaker(), sender.Breaker()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreClosed(health.Start(gctx)) })
	g.Go(func() error { return ignoreClosed(serveMetrics(gctx, logger, ":"+cfg.Worker.MetricsPort, breakers)) })
	g.Go(func() error { return crons.Run(gctx) })
	g.Go(func() error {
		// 起動直後に一度掃除して、停止中に取り残された依頼を拾う
		_ = crons.RunOnce(gctx, reconcileJob)
		return ignoreCanceled(q.Work(gctx, queue.JobFetchMediaRequest, fetchHandler(proc)))
	})

	health.SetReady(true)
	logger.Info("worker started",
		slog.String("queue", q.Name),
		slog.String("reconcile_schedule", cfg.Worker.ReconcileSchedule),
		slog.String("timezone", cfg.Worker.Timezone))

	err = g.Wait()
	health.SetReady(false)
	logger.Info("worker stopped")
	return err
}

// fetchHandler decodes one job and processes its request. Malformed payloads
// are completed without processing; redelivering them cannot help.
func fetchHandler(proc *process.Service) queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		var payload queue.FetchMediaRequestPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.RequestID == "" {
			slog.Error("dropping malformed job",
				slog.String("job_id", job.ID),
				slog.String("payload", string(job.Payload)))
			return nil
		}
		if err := proc.Process(ctx, payload.RequestID); err != nil {
			return fmt.Errorf("process %s: %w", payload.RequestID, err)
		}
		return nil
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
