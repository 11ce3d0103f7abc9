package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/runtimeconfig"
	"reel-relay/internal/usecase/admin"
)

/*────────────────────  インメモリスタブ  ────────────────────*/

type stubRequests struct {
	created, failed int64
	countErr        error
	since           []time.Time

	stale      []*entity.MediaRequest
	staleErr   error
	staleArgs  []entity.MediaRequestStatus
	staleLimit int
	staleAt    time.Time

	mu sync.Mutex
}

func (s *stubRequests) Get(context.Context, string) (*entity.MediaRequest, error) { return nil, nil }
func (s *stubRequests) FindByIdempotencyKey(context.Context, string) (*entity.MediaRequest, error) {
	return nil, nil
}
func (s *stubRequests) CreateIfAbsent(_ context.Context, r *entity.MediaRequest) (*entity.MediaRequest, bool, error) {
	return r, true, nil
}
func (s *stubRequests) MarkFetching(context.Context, string) error       { return nil }
func (s *stubRequests) MarkReady(context.Context, string, *string) error { return nil }
func (s *stubRequests) MarkPosted(context.Context, string) error         { return nil }
func (s *stubRequests) MarkFailed(context.Context, string, string) error { return nil }
func (s *stubRequests) ListStale(_ context.Context, st []entity.MediaRequestStatus, before time.Time, limit int) ([]*entity.MediaRequest, error) {
	s.staleArgs, s.staleAt, s.staleLimit = st, before, limit
	return s.stale, s.staleErr
}
func (s *stubRequests) CountCreatedSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	s.since = append(s.since, since)
	s.mu.Unlock()
	return s.created, nil
}
func (s *stubRequests) CountFailedSince(context.Context, time.Time) (int64, error) {
	return s.failed, s.countErr
}

type stubPosts struct {
	pending int64
	dead    map[string]string
	deadErr error
}

func (s *stubPosts) CreatePending(_ context.Context, p *entity.OutboundPost) (*entity.OutboundPost, error) {
	return p, nil
}
func (s *stubPosts) MarkSent(context.Context, string, string) error   { return nil }
func (s *stubPosts) MarkFailed(context.Context, string, string) error { return nil }
func (s *stubPosts) MarkDead(_ context.Context, id, reason string) error {
	if s.deadErr != nil {
		return s.deadErr
	}
	if s.dead == nil {
		s.dead = map[string]string{}
	}
	s.dead[id] = reason
	return nil
}
func (s *stubPosts) CountPending(context.Context) (int64, error) { return s.pending, nil }

type stubFailures struct {
	limits []int
}

func (s *stubFailures) Record(context.Context, *entity.ProcessingFailure) error { return nil }
func (s *stubFailures) ListRecent(_ context.Context, limit int) ([]*entity.ProcessingFailure, error) {
	s.limits = append(s.limits, limit)
	return []*entity.ProcessingFailure{{ID: "f1", JobName: "fetch-media-request"}}, nil
}

type stubBanned struct {
	banned map[string]*entity.BannedUser
}

func (s *stubBanned) Ban(_ context.Context, u *entity.BannedUser) error {
	if s.banned == nil {
		s.banned = map[string]*entity.BannedUser{}
	}
	s.banned[u.UserID] = u
	return nil
}
func (s *stubBanned) Unban(_ context.Context, id string) error {
	delete(s.banned, id)
	return nil
}
func (s *stubBanned) IsBanned(_ context.Context, id string) (bool, error) {
	_, ok := s.banned[id]
	return ok, nil
}

type stubBotConfig struct {
	values map[string]json.RawMessage
	setErr error
}

func (s *stubBotConfig) GetValue(_ context.Context, key string) (json.RawMessage, error) {
	return s.values[key], nil
}
func (s *stubBotConfig) SetValue(_ context.Context, key string, v json.RawMessage) error {
	if s.setErr != nil {
		return s.setErr
	}
	if s.values == nil {
		s.values = map[string]json.RawMessage{}
	}
	s.values[key] = v
	return nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

/*────────────────────  テストケース  ────────────────────*/

func TestStats(t *testing.T) {
	// Arrange
	reqs := &stubRequests{created: 12, failed: 2}
	svc := &admin.Service{
		Requests: reqs,
		Posts:    &stubPosts{pending: 5},
		Now:      func() time.Time { return fixedNow },
	}

	// Act
	st, err := svc.Stats(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, admin.Stats{Requests24h: 12, Failed24h: 2, QueueSize: 5}, st)
	require.Len(t, reqs.since, 1)
	assert.Equal(t, fixedNow.Add(-24*time.Hour), reqs.since[0])
}

func TestStats_Error(t *testing.T) {
	svc := &admin.Service{
		Requests: &stubRequests{countErr: errors.New("db down")},
		Posts:    &stubPosts{},
	}

	_, err := svc.Stats(context.Background())

	assert.ErrorContains(t, err, "count failed requests")
}

func TestSetTargetChat_ReloadsSnapshot(t *testing.T) {
	// Arrange
	cfg := &stubBotConfig{}
	store := runtimeconfig.NewStore(cfg, "-100default")
	svc := &admin.Service{BotConfig: cfg, Config: store}

	// Act
	snap, err := svc.SetTargetChat(context.Background(), "  -100555 ")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "-100555", snap.TargetChatID)
	assert.True(t, snap.FromStore)
	assert.Equal(t, "-100555", store.Current().TargetChatID)
	assert.JSONEq(t, `{"chatId":"-100555"}`, string(cfg.values[runtimeconfig.KeyTargetChatID]))
}

func TestSetTargetChat_Validation(t *testing.T) {
	cfg := &stubBotConfig{}
	svc := &admin.Service{BotConfig: cfg, Config: runtimeconfig.NewStore(cfg, "")}

	_, err := svc.SetTargetChat(context.Background(), "   ")

	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "chatId", verr.Field)
	assert.Empty(t, cfg.values)
}

func TestSetTargetChat_StoreErrorKeepsSnapshot(t *testing.T) {
	cfg := &stubBotConfig{setErr: errors.New("write failed")}
	store := runtimeconfig.NewStore(cfg, "-100default")
	svc := &admin.Service{BotConfig: cfg, Config: store}

	_, err := svc.SetTargetChat(context.Background(), "-100555")

	require.Error(t, err)
	assert.Equal(t, "-100default", store.Current().TargetChatID)
}

func TestReloadConfig_NoStore(t *testing.T) {
	_, err := (&admin.Service{}).ReloadConfig(context.Background())
	assert.Error(t, err)
}

func TestBanUnban(t *testing.T) {
	banned := &stubBanned{}
	svc := &admin.Service{Banned: banned}
	ctx := context.Background()

	require.NoError(t, svc.Ban(ctx, "42", "ops", " spam "))
	u := banned.banned["42"]
	require.NotNil(t, u)
	assert.Equal(t, "spam", *u.Reason)
	assert.Equal(t, "ops", *u.BannedBy)

	require.NoError(t, svc.Ban(ctx, "43", "", ""))
	assert.Nil(t, banned.banned["43"].Reason)
	assert.Nil(t, banned.banned["43"].BannedBy)

	require.NoError(t, svc.Unban(ctx, "42"))
	ok, _ := banned.IsBanned(ctx, "42")
	assert.False(t, ok)

	var verr *entity.ValidationError
	assert.ErrorAs(t, svc.Ban(ctx, "", "", ""), &verr)
	assert.ErrorAs(t, svc.Unban(ctx, " "), &verr)
}

func TestRecentFailures_ClampsLimit(t *testing.T) {
	failures := &stubFailures{}
	svc := &admin.Service{Failures: failures}

	for _, limit := range []int{0, -3, 5, 1000} {
		got, err := svc.RecentFailures(context.Background(), limit)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}

	assert.Equal(t, []int{admin.DefaultFailureLimit, admin.DefaultFailureLimit, 5, admin.MaxFailureLimit}, failures.limits)
}

func TestMarkDead(t *testing.T) {
	posts := &stubPosts{}
	svc := &admin.Service{Posts: posts}

	require.NoError(t, svc.MarkDead(context.Background(), "p1", ""))
	assert.Equal(t, "marked dead by operator", posts.dead["p1"])

	require.NoError(t, svc.MarkDead(context.Background(), "p2", "chat deleted"))
	assert.Equal(t, "chat deleted", posts.dead["p2"])
}

func TestMarkDead_Conflict(t *testing.T) {
	svc := &admin.Service{Posts: &stubPosts{deadErr: entity.ErrConflict}}

	err := svc.MarkDead(context.Background(), "p1", "x")

	assert.ErrorIs(t, err, admin.ErrPostNotFound)
}
