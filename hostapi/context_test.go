package hostapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/message"
	"github.com/stacknerd/msghub/msgarchive"
	"github.com/stacknerd/msghub/msgstorage"
	"github.com/stacknerd/msghub/stats"
	"github.com/stacknerd/msghub/storage"
	"github.com/stacknerd/msghub/store"
)

// Compile-time checks that *store.Store satisfies the capability-scoped
// interfaces notify/ingest/engage hosts are handed.
var (
	_ StoreReader = (*store.Store)(nil)
	_ StoreWriter = (*store.Store)(nil)
)

func newTestDeps(t *testing.T) (Deps, *store.Store) {
	t.Helper()
	ctx := context.Background()
	now := clockTime()
	c := clock.NewMock(now)

	backend := storage.NewNativeFS(t.TempDir())
	require.NoError(t, backend.Init(ctx))

	ms := msgstorage.New(backend, "messages.json", 0, c, nil)
	require.NoError(t, ms.Init(ctx))
	ar := msgarchive.New(msgarchive.Config{BaseDir: "archive", FlushIntervalMs: 0}, backend, nil, c, nil)
	require.NoError(t, ar.Init(ctx))

	statsBackend := storage.NewNativeFS(t.TempDir())
	require.NoError(t, statsBackend.Init(ctx))
	statsMs := msgstorage.New(statsBackend, "stats-rollup.json", 0, c, nil)
	require.NoError(t, statsMs.Init(ctx))
	tracker := stats.New(statsMs, c, nil, stats.Config{})
	require.NoError(t, tracker.Init(ctx))

	factory := message.NewFactory(nil)
	s := store.New(factory, ms, ar, nil, tracker, c, nil, store.Config{})
	require.NoError(t, s.Init(ctx))

	return Deps{Store: s, Stats: tracker, Factory: factory, Clock: c}, s
}

func TestIngestContextCanCreateAndAddMessages(t *testing.T) {
	deps, s := newTestDeps(t)
	ictx := deps.NewIngestContext("test-ingest")
	ctx := context.Background()

	created, err := ictx.Factory.CreateMessage(map[string]any{
		"ref":    "a1",
		"title":  "check the oven",
		"text":   "",
		"level":  20,
		"kind":   "task",
		"origin": map[string]any{"type": "manual", "system": "ui"},
	})
	require.NoError(t, err)

	_, err = ictx.Store.AddMessage(ctx, map[string]any{
		"ref":    created.Ref,
		"title":  created.Title,
		"text":   created.Text,
		"level":  int(created.Level),
		"kind":   string(created.Kind),
		"origin": map[string]any{"type": string(created.Origin.Type), "system": created.Origin.System},
	})
	require.NoError(t, err)
	assert.NotNil(t, s.GetMessageByRef("a1"))
}

func TestEngageContextExecutesAction(t *testing.T) {
	deps, s := newTestDeps(t)
	ctx := context.Background()

	_, err := s.AddMessage(ctx, map[string]any{
		"ref":    "a1",
		"title":  "check the oven",
		"text":   "",
		"level":  20,
		"kind":   "task",
		"origin": map[string]any{"type": "manual", "system": "ui"},
		"actions": []any{
			map[string]any{"type": "ack", "id": "ack-1"},
		},
	})
	require.NoError(t, err)

	ectx := deps.NewEngageContext("test-engage")
	updated, err := ectx.Action.Execute(ctx, ActionRequest{Ref: "a1", ActionID: "ack-1", Actor: "user:bob"})
	require.NoError(t, err)
	assert.Equal(t, message.StateAcked, updated.Lifecycle.State)
}

func TestNotifyContextSeesReadOnlyStoreAndStats(t *testing.T) {
	deps, s := newTestDeps(t)
	ctx := context.Background()

	_, err := s.AddMessage(ctx, map[string]any{
		"ref":    "a1",
		"title":  "check the oven",
		"text":   "",
		"level":  20,
		"kind":   "task",
		"origin": map[string]any{"type": "manual", "system": "ui"},
	})
	require.NoError(t, err)

	nctx := deps.NewNotifyContext("test-notify")
	got := nctx.Store.GetMessageByRef("a1")
	require.NotNil(t, got)

	snap, err := nctx.Stats.GetStats(ctx, nctx.Store.GetMessages(), stats.IOStatus{}, stats.GetStatsOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Current.Total)
}
