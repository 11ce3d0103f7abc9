package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/handler/http/auth"
	"reel-relay/internal/runtimeconfig"
	adminUC "reel-relay/internal/usecase/admin"
	"reel-relay/internal/usecase/ingest"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeIngest struct {
	url  string
	meta ingest.Meta
}

func (f *fakeIngest) Submit(_ context.Context, rawURL string, meta ingest.Meta) (ingest.Result, error) {
	f.url, f.meta = rawURL, meta
	return ingest.Result{RequestID: "r1"}, nil
}

type fakeAdmin struct {
	calls    []string
	failures []*entity.ProcessingFailure
	err      error
}

func (f *fakeAdmin) record(s string) error {
	f.calls = append(f.calls, s)
	return f.err
}

func (f *fakeAdmin) Stats(context.Context) (adminUC.Stats, error) {
	return adminUC.Stats{Requests24h: 7}, f.record("stats")
}

func (f *fakeAdmin) SetTargetChat(_ context.Context, chatID string) (*runtimeconfig.Snapshot, error) {
	return &runtimeconfig.Snapshot{TargetChatID: chatID}, f.record("set-target " + chatID)
}

func (f *fakeAdmin) Ban(_ context.Context, userID, bannedBy, reason string) error {
	return f.record("ban " + userID + " " + bannedBy + " " + reason)
}

func (f *fakeAdmin) Unban(_ context.Context, userID string) error {
	return f.record("unban " + userID)
}

func (f *fakeAdmin) RecentFailures(_ context.Context, limit int) ([]*entity.ProcessingFailure, error) {
	return f.failures, f.record("failures")
}

func (f *fakeAdmin) MarkDead(_ context.Context, postID, reason string) error {
	return f.record("mark-dead " + postID + " " + reason)
}

type fakeReconciler struct{}

func (fakeReconciler) Run(context.Context) (adminUC.ReconcileResult, error) {
	return adminUC.ReconcileResult{Scanned: 2, Enqueued: 1, Collapsed: 1}, nil
}

func testEnv(ing *fakeIngest, adm *fakeAdmin) (cliEnv, *bool) {
	closed := false
	return cliEnv{
		open: func(context.Context) (*deps, error) {
			return &deps{Ingest: ing, Admin: adm, Reconciler: fakeReconciler{}, Close: func() { closed = true }}, nil
		},
		tokenSettings: func() ([]byte, time.Duration, error) { return []byte(testSecret), time.Hour, nil },
		operator:      "alice",
	}, &closed
}

func execute(t *testing.T, env cliEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(env)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIngestCmd(t *testing.T) {
	ing := &fakeIngest{}
	env, closed := testEnv(ing, &fakeAdmin{})

	out, err := execute(t, env, "ingest", "https://www.instagram.com/reel/ABC/", "--chat-id", "-100", "--message-id", "9")
	require.NoError(t, err)

	assert.JSONEq(t, `{"requestId":"r1","alreadyExists":false}`, out)
	assert.Equal(t, "https://www.instagram.com/reel/ABC/", ing.url)
	require.NotNil(t, ing.meta.ChatID)
	assert.Equal(t, "-100", *ing.meta.ChatID)
	require.NotNil(t, ing.meta.MessageID)
	assert.Equal(t, int64(9), *ing.meta.MessageID)
	assert.Nil(t, ing.meta.SubmitterID)
	assert.True(t, *closed)
}

func TestAdminCmds(t *testing.T) {
	adm := &fakeAdmin{}
	env, _ := testEnv(&fakeIngest{}, adm)

	for _, args := range [][]string{
		{"stats"},
		{"set-target", "-1001"},
		{"ban", "42", "--reason", "spam"},
		{"unban", "42"},
		{"failures"},
		{"mark-dead", "p1", "--reason", "gone"},
	} {
		_, err := execute(t, env, args...)
		require.NoError(t, err, args)
	}

	assert.Equal(t, []string{
		"stats",
		"set-target -1001",
		"ban 42 alice spam",
		"unban 42",
		"failures",
		"mark-dead p1 gone",
	}, adm.calls)
}

func TestFailuresCmd_Output(t *testing.T) {
	adm := &fakeAdmin{failures: []*entity.ProcessingFailure{{
		ID:          "f1",
		JobName:     "fetch-media-request",
		ErrorReason: "graph api 500",
		RetryCount:  3,
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}}
	env, _ := testEnv(&fakeIngest{}, adm)

	out, err := execute(t, env, "failures", "--limit", "5")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T12:00:00Z\tf1\tfetch-media-request\tretries=3\tgraph api 500\n", out)
}

func TestAdminCmd_Error(t *testing.T) {
	env, closed := testEnv(&fakeIngest{}, &fakeAdmin{err: errors.New("db down")})

	_, err := execute(t, env, "unban", "42")
	assert.EqualError(t, err, "db down")
	assert.True(t, *closed)
}

func TestReconcileCmd(t *testing.T) {
	env, _ := testEnv(&fakeIngest{}, &fakeAdmin{})

	out, err := execute(t, env, "reconcile")
	require.NoError(t, err)
	assert.JSONEq(t, `{"scanned":2,"enqueued":1,"collapsed":1,"failed":0}`, out)
}

func TestTokenCmd(t *testing.T) {
	env, _ := testEnv(&fakeIngest{}, &fakeAdmin{})

	out, err := execute(t, env, "token", "--subject", "ops", "--role", auth.RoleViewer)
	require.NoError(t, err)

	claims, err := auth.Parse(strings.TrimSpace(out), []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, auth.RoleViewer, claims.Role)
}

func TestTokenCmd_Rejects(t *testing.T) {
	env, _ := testEnv(&fakeIngest{}, &fakeAdmin{})

	_, err := execute(t, env, "token")
	assert.ErrorContains(t, err, "--subject")

	_, err = execute(t, env, "token", "--subject", "ops", "--role", "root")
	assert.ErrorContains(t, err, "invalid role")

	env.tokenSettings = func() ([]byte, time.Duration, error) { return []byte("short"), time.Hour, nil }
	_, err = execute(t, env, "token", "--subject", "ops")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestArgsValidated(t *testing.T) {
	env, _ := testEnv(&fakeIngest{}, &fakeAdmin{})
	_, err := execute(t, env, "ban")
	assert.Error(t, err)
}
