package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/events"
	"github.com/stacknerd/msghub/policy"
)

func TestFireDueDispatchesPastDueMessages(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	s, notifier, _ := newTestStore(t, now, Config{})
	ctx := context.Background()

	input := baseInput("a1")
	input["timing"] = map[string]any{"notifyAt": now.UnixMilli() - 1000}
	_, err := s.AddMessage(ctx, input)
	require.NoError(t, err)

	notifier.calls = nil
	s.fireDue(ctx)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, events.TypeDue, notifier.calls[0].eventType)
	assert.Equal(t, []string{"a1"}, notifier.calls[0].refs)

	got := s.GetMessageByRef("a1")
	assert.Equal(t, now.UnixMilli(), got.Timing.NotifiedAt.Due)
	assert.Equal(t, int64(0), got.Timing.NotifyAt)
}

func TestFireDueReschedulesWhenRemindEverySet(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	s, _, _ := newTestStore(t, now, Config{})
	ctx := context.Background()

	input := baseInput("a1")
	input["timing"] = map[string]any{
		"notifyAt":    now.UnixMilli() - 1000,
		"remindEvery": int64(60000),
	}
	_, err := s.AddMessage(ctx, input)
	require.NoError(t, err)

	s.fireDue(ctx)

	got := s.GetMessageByRef("a1")
	assert.Equal(t, now.UnixMilli()+60000, got.Timing.NotifyAt)
}

func TestFireDueSuppressesDuringQuietHoursAndReschedules(t *testing.T) {
	// Started at noon, remindEvery brings the next due right to 23:00,
	// which falls inside 22:00-06:00 quiet hours. The first fire (at
	// noon) is never suppressed (never notified before); the second
	// (at 23:00) must be, since it has already notified once.
	day := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	mc := clock.NewMock(day)
	cfg := Config{
		QuietHours: policy.QuietHours{
			Enabled:  true,
			StartMin: 22 * 60,
			EndMin:   6 * 60,
			MaxLevel: 30,
			SpreadMs: 60000,
		},
		Random: func() float64 { return 0.5 },
	}
	s, notifier, _ := newTestStoreWithClock(t, mc, cfg)
	ctx := context.Background()

	input := baseInput("a1")
	input["level"] = 20
	input["timing"] = map[string]any{
		"notifyAt":    day.UnixMilli() - 1000,
		"remindEvery": int64(11 * 60 * 60 * 1000), // 11h later == 23:00
	}
	_, err := s.AddMessage(ctx, input)
	require.NoError(t, err)

	notifier.calls = nil
	s.fireDue(ctx)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, events.TypeDue, notifier.calls[0].eventType)

	quietNow := time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC)
	mc.Set(quietNow)
	notifier.calls = nil
	s.fireDue(ctx)

	for _, c := range notifier.calls {
		assert.NotEqual(t, events.TypeDue, c.eventType)
	}

	got := s.GetMessageByRef("a1")
	expectedEnd := time.Date(2026, 1, 6, 6, 0, 0, 0, time.UTC)
	expectedReschedule := expectedEnd.Add(30 * time.Second)
	assert.Equal(t, expectedReschedule.UnixMilli(), got.Timing.NotifyAt)
}

func TestRecomputeDueTimerArmsNearestFuture(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	s, _, _ := newTestStore(t, now, Config{})
	ctx := context.Background()

	far := baseInput("a1")
	far["timing"] = map[string]any{"notifyAt": now.UnixMilli() + 10_000_000}
	_, err := s.AddMessage(ctx, far)
	require.NoError(t, err)

	near := baseInput("a2")
	near["timing"] = map[string]any{"notifyAt": now.UnixMilli() + 1000}
	_, err = s.AddMessage(ctx, near)
	require.NoError(t, err)

	s.mu.Lock()
	timer := s.dueTimer
	s.mu.Unlock()
	require.NotNil(t, timer)
}
