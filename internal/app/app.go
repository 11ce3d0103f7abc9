// Package app wires the pieces shared by the api, worker and relayctl
// binaries: configuration, logging, tracing, the database with its
// repositories, the runtime config store and the rate-paced outbound clients.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"reel-relay/internal/config"
	pgRepo "reel-relay/internal/infra/adapter/persistence/postgres"
	"reel-relay/internal/infra/db"
	"reel-relay/internal/infra/instagram"
	"reel-relay/internal/infra/notifier"
	"reel-relay/internal/infra/queue"
	"reel-relay/internal/infra/scheduler"
	"reel-relay/internal/observability/logging"
	"reel-relay/internal/observability/tracing"
	pkgconfig "reel-relay/internal/pkg/config"
	"reel-relay/internal/repository"
	"reel-relay/internal/runtimeconfig"
)

// Options selects what Bootstrap validates and where logs go.
type Options struct {
	Role config.Role
	// LogOutput defaults to os.Stdout.
	LogOutput io.Writer
	// TextLogs forces the text handler regardless of LOG_FORMAT.
	TextLogs bool
	// Registerer receives every metric created here; nil means the default registry.
	Registerer prometheus.Registerer
	// SkipMigrate leaves the schema alone.
	SkipMigrate bool
}

// App holds the shared dependencies of one process.
type App struct {
	Config *config.RelayConfig
	Logger *slog.Logger
	DB     *sql.DB

	Requests  repository.MediaRequestRepository
	Media     repository.MediaRepository
	Posts     repository.OutboundPostRepository
	Failures  repository.ProcessingFailureRepository
	Banned    repository.BannedUserRepository
	BotConfig repository.BotConfigRepository

	Runtime *runtimeconfig.Store

	reg          prometheus.Registerer
	schedOnce    sync.Once
	schedMetrics *scheduler.Metrics
	closers      []func(context.Context) error
}

// Bootstrap loads .env and the configuration, validates it for opts.Role,
// sets the default logger, opens and migrates the database and performs the
// first runtime config load. On error everything opened so far is closed.
func Bootstrap(ctx context.Context, opts Options) (*App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logOpts := logging.OptionsFromEnv()
	if opts.TextLogs {
		logOpts.Text = true
	}
	logger, logCloser := logging.New(logOpts, out)
	slog.SetDefault(logger)

	a := &App{Config: cfg, Logger: logger, reg: opts.Registerer}
	if a.reg == nil {
		a.reg = prometheus.DefaultRegisterer
	}
	a.onClose(func(context.Context) error { return logCloser.Close() })

	cfgMetrics := pkgconfig.NewMetrics(a.reg, string(opts.Role))
	cfgMetrics.ObserveLoad(cfg.Fallbacks)
	for _, w := range cfg.Warnings {
		logger.Warn("configuration fallback applied", slog.String("warning", w))
	}
	if err := cfg.Validate(opts.Role); err != nil {
		cfgMetrics.RecordValidationError(string(opts.Role))
		a.Close(ctx)
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Observability.TracingEnabled {
		a.onClose(tracing.InitProvider(cfg.Observability.SampleRatio))
		logger.Info("tracing enabled", slog.Float64("sample_ratio", cfg.Observability.SampleRatio))
	}

	database, err := db.Open(ctx, cfg.Server.DatabaseURL, db.PoolConfigFromEnv())
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.DB = database
	a.onClose(func(context.Context) error { return database.Close() })

	if !opts.SkipMigrate {
		if err := db.MigrateUp(ctx, database); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	a.Requests = pgRepo.NewMediaRequestRepo(database)
	a.Media = pgRepo.NewMediaRepo(database)
	a.Posts = pgRepo.NewOutboundPostRepo(database)
	a.Failures = pgRepo.NewProcessingFailureRepo(database)
	a.Banned = pgRepo.NewBannedUserRepo(database)
	a.BotConfig = pgRepo.NewBotConfigRepo(database)

	a.Runtime = runtimeconfig.NewStore(a.BotConfig, cfg.Telegram.TargetChatID)
	if snap, err := a.Runtime.Reload(ctx); err != nil {
		// 起動は止めない。既定値で動き、次の再読込で回復する
		logger.Warn("initial runtime config load failed", slog.Any("error", err))
	} else {
		logger.Info("runtime config loaded",
			slog.Bool("target_chat_configured", snap.TargetChatID != ""),
			slog.Bool("from_store", snap.FromStore))
	}

	return a, nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) schedulerMetrics() *scheduler.Metrics {
	a.schedOnce.Do(func() { a.schedMetrics = scheduler.NewMetrics(a.reg) })
	return a.schedMetrics
}

func (a *App) newScheduler(name string, interval time.Duration) *scheduler.Scheduler {
	s := scheduler.New(name, interval, scheduler.WithMetrics(a.schedulerMetrics()))
	a.onClose(s.Stop)
	return s
}

// NewInstagramClient builds the Graph API client on its own min-interval scheduler.
func (a *App) NewInstagramClient() *instagram.Client {
	m := a.Config.Meta
	return instagram.NewClient(instagram.Config{
		BaseURL:     m.BaseURL,
		Version:     m.Version,
		AccessToken: m.AccessToken,
		Timeout:     m.Timeout,
	}, a.newScheduler("meta-graph-api", m.MinInterval))
}

// NewTelegramSender builds the Bot API sender on its own min-interval scheduler.
func (a *App) NewTelegramSender() *notifier.TelegramSender {
	t := a.Config.Telegram
	return notifier.NewTelegramSender(notifier.TelegramConfig{
		BotToken: t.BotToken,
		BaseURL:  t.BaseURL,
		Timeout:  t.Timeout,
	}, a.newScheduler("telegram-bot-api", t.SendMinInterval))
}

// OpenQueue opens the configured job queue backend.
func (a *App) OpenQueue(ctx context.Context) (*queue.Backend, error) {
	q := a.Config.Queue
	b, err := queue.Open(ctx, q.Backend, a.DB, q.RedisAddr, queue.Options{
		PollInterval:      q.PollInterval,
		VisibilityTimeout: q.VisibilityTimeout,
		MaxDeliveries:     q.MaxDeliveries,
	}, queue.NewMetrics(a.reg))
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	a.onClose(func(context.Context) error { return b.Close() })
	a.Logger.Info("queue opened", slog.String("backend", b.Name))
	return b, nil
}

// Close releases everything in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil && a.Logger != nil {
		a.Logger.Error("shutdown cleanup failed", slog.Any("error", err))
	}
}
