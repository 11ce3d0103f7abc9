// Package admin exposes operator endpoints under /v1/admin. Authorization
// is enforced by auth.Authz in front of the mux.
package admin

import (
	"context"
	"net/http"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/runtimeconfig"
	adminUC "reel-relay/internal/usecase/admin"
)

// Service is satisfied by *admin.Service.
type Service interface {
	Stats(ctx context.Context) (adminUC.Stats, error)
	SetTargetChat(ctx context.Context, chatID string) (*runtimeconfig.Snapshot, error)
	ReloadConfig(ctx context.Context) (*runtimeconfig.Snapshot, error)
	Ban(ctx context.Context, userID, bannedBy, reason string) error
	Unban(ctx context.Context, userID string) error
	RecentFailures(ctx context.Context, limit int) ([]*entity.ProcessingFailure, error)
	MarkDead(ctx context.Context, postID, reason string) error
}

// Reconciler is satisfied by *admin.Reconciler.
type Reconciler interface {
	Run(ctx context.Context) (adminUC.ReconcileResult, error)
}

// Register mounts the admin routes. rec may be nil, in which case the
// reconcile endpoint is not mounted.
func Register(mux *http.ServeMux, svc Service, rec Reconciler) {
	h := handlers{svc: svc, rec: rec}
	mux.HandleFunc("GET /v1/admin/stats", h.stats)
	mux.HandleFunc("PUT /v1/admin/target-chat", h.setTargetChat)
	mux.HandleFunc("POST /v1/admin/config/reload", h.reloadConfig)
	mux.HandleFunc("POST /v1/admin/bans", h.ban)
	mux.HandleFunc("DELETE /v1/admin/bans/{userId}", h.unban)
	mux.HandleFunc("GET /v1/admin/failures", h.failures)
	mux.HandleFunc("POST /v1/admin/outbound-posts/{id}/dead", h.markDead)
	if rec != nil {
		mux.HandleFunc("POST /v1/admin/reconcile", h.reconcile)
	}
}
