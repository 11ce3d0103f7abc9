// Command api serves the relay's HTTP surface: link submission, request
// status, the Meta webhook, operator endpoints and health/metrics. Webhook
// notifications are delivered to Telegram in-process through the event bus.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"reel-relay/internal/app"
	"reel-relay/internal/config"
	"reel-relay/internal/domain/entity"
	hhttp "reel-relay/internal/handler/http"
	"reel-relay/internal/infra/eventbus"
	"reel-relay/internal/infra/worker"
	"reel-relay/internal/observability/metrics"
	"reel-relay/internal/resilience/circuitbreaker"
	adminUC "reel-relay/internal/usecase/admin"
	"reel-relay/internal/usecase/deliver"
	"reel-relay/internal/usecase/ingest"
	webhookUC "reel-relay/internal/usecase/webhook"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, app.Options{Role: config.RoleAPI})
	if err != nil {
		slog.Error("api bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(ctx, a); err != nil {
		a.Logger.Error("api stopped with error", slog.Any("error", err))
		closeApp(a)
		os.Exit(1)
	}
	closeApp(a)
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Close(ctx)
}

func getVersion() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}

func run(ctx context.Context, a *app.App) error {
	cfg := a.Config
	logger := a.Logger

	ig := a.NewInstagramClient()
	sender := a.NewTelegramSender()

	q, err := a.OpenQueue(ctx)
	if err != nil {
		return err
	}

	bus := eventbus.New(cfg.Events.BusCapacity, eventbus.WithMetrics(eventbus.NewMetrics(prometheus.DefaultRegisterer)))
	deliverSvc := &deliver.Service{
		Posts:           a.Posts,
		Sender:          sender,
		Config:          a.Runtime,
		GroupInviteLink: cfg.Telegram.GroupInviteLink,
	}
	deliverSvc.Attach(bus)

	if len(cfg.Events.KafkaBrokers) > 0 {
		fwd, err := eventbus.NewKafkaForwarder(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			return err
		}
		defer func() {
			if err := fwd.Close(); err != nil {
				logger.Error("kafka forwarder close failed", slog.Any("error", err))
			}
		}()
		fwd.Attach(bus, entity.EventReelReceived)
		logger.Info("kafka forwarding enabled",
			slog.Any("brokers", cfg.Events.KafkaBrokers),
			slog.String("topic", cfg.Events.KafkaTopic))
	}

	ingestSvc := &ingest.Service{Requests: a.Requests, Banned: a.Banned, Queue: q}
	webhookSvc := &webhookUC.Service{Lookup: ig, Media: a.Media, Events: bus}
	adminSvc := &adminUC.Service{
		Requests:  a.Requests,
		Posts:     a.Posts,
		Failures:  a.Failures,
		Banned:    a.Banned,
		BotConfig: a.BotConfig,
		Config:    a.Runtime,
	}
	reconciler := &adminUC.Reconciler{
		Requests:   a.Requests,
		Queue:      ingestSvc,
		StaleAfter: cfg.Worker.ReconcileStaleAfter,
	}

	// 他プロセスからの bot_config 更新を定期的に取り込む
	crons, err := worker.NewCron(cfg.Worker.Timezone, logger, worker.NewJobMetrics(nil))
	if err != nil {
		return err
	}
	if err := crons.Add(worker.Job{
		Name:     "config-refresh",
		Schedule: cfg.Server.ConfigRefreshSchedule,
		Timeout:  10 * time.Second,
		Run: func(ctx context.Context) error {
			_, err := a.Runtime.Reload(ctx)
			return err
		},
	}); err != nil {
		return err
	}
	if err := crons.Add(worker.Job{
		Name:     "db-stats",
		Schedule: "@every 15s",
		Run: func(context.Context) error {
			metrics.UpdateDBStats(a.DB.Stats())
			return nil
		},
	}); err != nil {
		return err
	}

	trusted, err := hhttp.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	handler := hhttp.NewRouter(hhttp.RouterDeps{
		Logger:          logger,
		DB:              a.DB,
		Version:         getVersion(),
		JWTSecret:       []byte(cfg.Server.JWTSecret),
		SubmitLimiter:   hhttp.NewRateLimiter(cfg.Server.SubmitRatePerMinute, cfg.Server.SubmitBurst).TrustProxies(trusted),
		Checks:          map[string]hhttp.Checker{"queue": q.Ping},
		Breakers:        []*circuitbreaker.CircuitBreaker{ig.Breaker(), sender.Breaker()},
		MetaVerifyToken: cfg.Meta.VerifyToken,
		MetaAppSecret:   cfg.Meta.AppSecret,
		Webhook:         webhookSvc,
		Submitter:       ingestSvc,
		Requests:        a.Requests,
		Admin:           adminSvc,
		Reconciler:      reconciler,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Webhook 処理は Graph API と Telegram 呼び出しを待つ
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	// The bus outlives ctx so that events accepted before shutdown are drained.
	busDone := make(chan error, 1)
	go func() { busDone <- bus.Run(context.WithoutCancel(ctx)) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", slog.String("addr", srv.Addr), slog.String("version", getVersion()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return crons.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	bus.Close()
	select {
	case <-busDone:
	case <-time.After(shutdownTimeout):
		logger.Warn("event bus did not drain in time")
	}
	logger.Info("server stopped")
	return err
}
