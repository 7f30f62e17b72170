package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMessageRequiresTitleKindLevelOrigin(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.CreateMessage(map[string]any{
		"kind":  "task",
		"level": 20,
		"origin": map[string]any{"type": "manual", "system": "test"},
	}, now)
	require.ErrorIs(t, err, ErrMissingField)

	_, err = f.CreateMessage(map[string]any{
		"title": "Take out trash",
		"level": 20,
		"origin": map[string]any{"type": "manual", "system": "test"},
	}, now)
	require.ErrorIs(t, err, ErrUnknownEnum)

	_, err = f.CreateMessage(map[string]any{
		"title": "Take out trash",
		"kind":  "task",
		"origin": map[string]any{"type": "manual", "system": "test"},
	}, now)
	require.ErrorIs(t, err, ErrMissingField)

	_, err = f.CreateMessage(map[string]any{
		"title": "Take out trash",
		"kind":  "task",
		"level": 20,
	}, now)
	require.ErrorIs(t, err, ErrMissingField)
}

func TestCreateMessageAutoFillsRef(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	msg, err := f.CreateMessage(map[string]any{
		"title": "Take out trash",
		"kind":  "task",
		"level": 20,
		"origin": map[string]any{"type": "manual", "system": "test"},
	}, now)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.Ref)
	assert.Equal(t, StateOpen, msg.Lifecycle.State)
	assert.Equal(t, now.UnixMilli(), msg.Timing.CreatedAt)
}

func TestCreateMessageRejectsTimestampOutsidePlausibleWindow(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.CreateMessage(map[string]any{
		"title": "Water plants",
		"kind":  "task",
		"level": 20,
		"origin": map[string]any{"type": "manual", "system": "test"},
		"timing": map[string]any{"dueAt": 10000},
	}, now)
	require.ErrorIs(t, err, ErrTimestampOutOfRange)
}

func TestCreateMessageParsesMetricsAsMap(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	msg, err := f.CreateMessage(map[string]any{
		"title": "Boiler status",
		"kind":  "status",
		"level": 20,
		"origin": map[string]any{"type": "automation", "system": "boiler"},
		"metrics": map[string]any{
			"temp": map[string]any{"val": 54.2, "unit": "C", "ts": now.UnixMilli()},
		},
	}, now)
	require.NoError(t, err)
	require.NotNil(t, msg.Metrics)
	entry, ok := msg.Metrics.Get("temp")
	require.True(t, ok)
	assert.Equal(t, 54.2, entry.(MetricEntry).Val)
}

func baseMessage(t *testing.T, f *Factory, now time.Time) *Message {
	t.Helper()
	msg, err := f.CreateMessage(map[string]any{
		"ref":   "task-manual-chores-abc123",
		"title": "Take out trash",
		"kind":  "task",
		"level": 20,
		"origin": map[string]any{"type": "manual", "system": "chores"},
	}, now)
	require.NoError(t, err)
	return msg
}

func TestApplyPatchRejectsImmutableRefChange(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := baseMessage(t, f, now)

	_, err := f.ApplyPatch(msg, map[string]any{"ref": "something-else"}, false, now)
	require.ErrorIs(t, err, ErrImmutableField)

	// Patch that normalizes to the same ref is accepted.
	updated, err := f.ApplyPatch(msg, map[string]any{"ref": msg.Ref, "text": "Updated"}, false, now)
	require.NoError(t, err)
	assert.Equal(t, "Updated", updated.Text)
}

func TestApplyPatchRejectsImmutableKindAndOrigin(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := baseMessage(t, f, now)

	_, err := f.ApplyPatch(msg, map[string]any{"kind": "status"}, false, now)
	require.ErrorIs(t, err, ErrImmutableField)

	_, err = f.ApplyPatch(msg, map[string]any{
		"origin": map[string]any{"type": "automation", "system": "chores"},
	}, false, now)
	require.ErrorIs(t, err, ErrImmutableField)
}

func TestApplyPatchNoOpLeavesUpdatedAtUnchanged(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := baseMessage(t, f, now)

	later := now.Add(time.Hour)
	updated, err := f.ApplyPatch(msg, map[string]any{"title": msg.Title}, false, later)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.Timing.UpdatedAt)
}

func TestApplyPatchBumpsUpdatedAtUnlessStealth(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := baseMessage(t, f, now)

	later := now.Add(time.Hour)
	updated, err := f.ApplyPatch(msg, map[string]any{"text": "Changed"}, false, later)
	require.NoError(t, err)
	assert.Equal(t, later.UnixMilli(), updated.Timing.UpdatedAt)

	msg2 := baseMessage(t, f, now)
	stealthUpdated, err := f.ApplyPatch(msg2, map[string]any{"text": "Changed stealthily"}, true, later)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stealthUpdated.Timing.UpdatedAt)
}

func TestApplyPatchNullRemovesOptionalField(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := baseMessage(t, f, now)
	msg.Text = "Something to clear"

	updated, err := f.ApplyPatch(msg, map[string]any{"text": nil}, false, now)
	require.NoError(t, err)
	assert.Equal(t, "", updated.Text)
}

func TestApplyPatchMetricsSetAndDelete(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg, err := f.CreateMessage(map[string]any{
		"title": "Boiler status",
		"kind":  "status",
		"level": 20,
		"origin": map[string]any{"type": "automation", "system": "boiler"},
		"metrics": map[string]any{
			"temp":     map[string]any{"val": 54.2, "unit": "C", "ts": now.UnixMilli()},
			"pressure": map[string]any{"val": 1.2, "unit": "bar", "ts": now.UnixMilli()},
		},
	}, now)
	require.NoError(t, err)

	updated, err := f.ApplyPatch(msg, map[string]any{
		"metrics": map[string]any{
			"set":    map[string]any{"humidity": map[string]any{"val": 40, "unit": "%", "ts": now.UnixMilli()}},
			"delete": []any{"pressure"},
		},
	}, false, now)
	require.NoError(t, err)

	_, hasPressure := updated.Metrics.Get("pressure")
	assert.False(t, hasPressure)
	_, hasTemp := updated.Metrics.Get("temp")
	assert.True(t, hasTemp)
	_, hasHumidity := updated.Metrics.Get("humidity")
	assert.True(t, hasHumidity)
}

func TestApplyPatchActionsSetByID(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg, err := f.CreateMessage(map[string]any{
		"title": "Take out trash",
		"kind":  "task",
		"level": 20,
		"origin": map[string]any{"type": "manual", "system": "chores"},
		"actions": []any{
			map[string]any{"id": "ack-1", "type": "ack"},
		},
	}, now)
	require.NoError(t, err)

	updated, err := f.ApplyPatch(msg, map[string]any{
		"actions": map[string]any{
			"set": map[string]any{
				"snooze-1": map[string]any{"type": "snooze", "payload": map[string]any{"forMs": 600000}},
			},
		},
	}, false, now)
	require.NoError(t, err)
	assert.Len(t, updated.Actions, 2)

	updated2, err := f.ApplyPatch(updated, map[string]any{
		"actions": map[string]any{"delete": []any{"ack-1"}},
	}, false, now)
	require.NoError(t, err)
	assert.Len(t, updated2.Actions, 1)
	assert.Equal(t, "snooze-1", updated2.Actions[0].ID)
}

func TestApplyPatchRejectsNilPatch(t *testing.T) {
	f := NewFactory(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := baseMessage(t, f, now)

	_, err := f.ApplyPatch(msg, nil, false, now)
	require.ErrorIs(t, err, ErrInvalidPatch)
}
