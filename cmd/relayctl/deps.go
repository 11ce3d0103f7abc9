package main

import (
	"context"
	"os"
	"time"

	"reel-relay/internal/app"
	"reel-relay/internal/config"
	"reel-relay/internal/domain/entity"
	"reel-relay/internal/runtimeconfig"
	adminUC "reel-relay/internal/usecase/admin"
	"reel-relay/internal/usecase/ingest"
)

// Submitter is satisfied by *ingest.Service.
type Submitter interface {
	Submit(ctx context.Context, rawURL string, meta ingest.Meta) (ingest.Result, error)
}

// Admin is satisfied by *admin.Service.
type Admin interface {
	Stats(ctx context.Context) (adminUC.Stats, error)
	SetTargetChat(ctx context.Context, chatID string) (*runtimeconfig.Snapshot, error)
	Ban(ctx context.Context, userID, bannedBy, reason string) error
	Unban(ctx context.Context, userID string) error
	RecentFailures(ctx context.Context, limit int) ([]*entity.ProcessingFailure, error)
	MarkDead(ctx context.Context, postID, reason string) error
}

// Reconciler is satisfied by *admin.Reconciler.
type Reconciler interface {
	Run(ctx context.Context) (adminUC.ReconcileResult, error)
}

type deps struct {
	Ingest     Submitter
	Admin      Admin
	Reconciler Reconciler
	Close      func()
}

// cliEnv lets tests replace the database-backed wiring.
type cliEnv struct {
	open func(ctx context.Context) (*deps, error)
	// tokenSettings returns the JWT secret and default TTL.
	tokenSettings func() ([]byte, time.Duration, error)
	operator      string
}

func defaultEnv() cliEnv {
	operator := os.Getenv("USER")
	if operator == "" {
		operator = "relayctl"
	}
	return cliEnv{open: openDeps, tokenSettings: loadTokenSettings, operator: operator}
}

func openDeps(ctx context.Context) (*deps, error) {
	a, err := app.Bootstrap(ctx, app.Options{Role: config.RoleCLI, LogOutput: os.Stderr, TextLogs: true})
	if err != nil {
		return nil, err
	}
	q, err := a.OpenQueue(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	ing := &ingest.Service{Requests: a.Requests, Banned: a.Banned, Queue: q}
	return &deps{
		Ingest: ing,
		Admin: &adminUC.Service{
			Requests:  a.Requests,
			Posts:     a.Posts,
			Failures:  a.Failures,
			Banned:    a.Banned,
			BotConfig: a.BotConfig,
			Config:    a.Runtime,
		},
		Reconciler: &adminUC.Reconciler{
			Requests:   a.Requests,
			Queue:      ing,
			StaleAfter: a.Config.Worker.ReconcileStaleAfter,
		},
		Close: func() { a.Close(context.WithoutCancel(ctx)) },
	}, nil
}

func loadTokenSettings() ([]byte, time.Duration, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, 0, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, 0, err
	}
	return []byte(cfg.Server.JWTSecret), cfg.Server.AdminTokenTTL, nil
}
