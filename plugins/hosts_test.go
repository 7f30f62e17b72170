package plugins

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/events"
	"github.com/stacknerd/msghub/hostapi"
	"github.com/stacknerd/msghub/message"
	"github.com/stacknerd/msghub/msgarchive"
	"github.com/stacknerd/msghub/msgstorage"
	"github.com/stacknerd/msghub/stats"
	"github.com/stacknerd/msghub/storage"
	"github.com/stacknerd/msghub/store"
)

func newTestDeps(t *testing.T, notifier store.Notifier) (hostapi.Deps, *store.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
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
	s := store.New(factory, ms, ar, notifier, tracker, c, nil, store.Config{})
	require.NoError(t, s.Init(ctx))

	return hostapi.Deps{Store: s, Stats: tracker, Factory: factory, Clock: c}, s
}

func TestNotifyRegistrySatisfiesStoreNotifierAndReceivesDispatch(t *testing.T) {
	var gotEvent string
	var gotRefs []string

	// *NotifyRegistry satisfies store.Notifier directly; wire it in via
	// the store's exported Notify field (store.New took nil here since
	// the registry's Deps needs the store itself to build each plugin's
	// Context).
	deps, s := newTestDeps(t, nil)
	notify := NewNotifyRegistry(deps, nil)
	s.Notify = notify

	notify.Register(context.Background(), "recorder", FuncHandler[hostapi.NotifyContext]{
		Fn: func(_ context.Context, event string, msgs []*message.Message, _ hostapi.NotifyContext) {
			gotEvent = event
			for _, m := range msgs {
				gotRefs = append(gotRefs, m.Ref)
			}
		},
	})
	notify.Start(context.Background())

	_, err := s.AddMessage(context.Background(), map[string]any{
		"ref":    "a1",
		"title":  "check the oven",
		"text":   "",
		"level":  20,
		"kind":   "task",
		"origin": map[string]any{"type": "manual", "system": "ui"},
	})
	require.NoError(t, err)

	assert.Equal(t, events.TypeCreated, gotEvent)
	assert.Equal(t, []string{"a1"}, gotRefs)
}

func TestBridgeRegistersBothHalvesUnderSharedId(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	b := Bridge{Ingest: NewIngestRegistry(deps, nil), Notify: NewNotifyRegistry(deps, nil)}

	err := b.Register(context.Background(), "hue-bridge",
		FuncHandler[hostapi.IngestContext]{},
		FuncHandler[hostapi.NotifyContext]{},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Ingest.Count())
	assert.Equal(t, 1, b.Notify.Count())

	b.Unregister(context.Background(), "hue-bridge")
	assert.Equal(t, 0, b.Ingest.Count())
	assert.Equal(t, 0, b.Notify.Count())
}

func TestEngageRegistryHandlerCanExecuteAction(t *testing.T) {
	deps, s := newTestDeps(t, nil)
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

	engage := NewEngageRegistry(deps, nil)
	var result *message.Message
	engage.Register(ctx, "ui", FuncHandler[hostapi.EngageContext]{
		Fn: func(ctx context.Context, event string, msgs []*message.Message, api hostapi.EngageContext) {
			m, err := api.Action.Execute(ctx, hostapi.ActionRequest{Ref: "a1", ActionID: "ack-1", Actor: "user:bob"})
			require.NoError(t, err)
			result = m
		},
	})
	engage.Start(ctx)
	engage.Dispatch(ctx, events.TypeDue, []*message.Message{{Ref: "a1"}})

	require.NotNil(t, result)
	assert.Equal(t, message.StateAcked, result.Lifecycle.State)
}
