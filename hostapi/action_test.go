package hostapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/message"
)

func clockTime() time.Time {
	return time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
}

type fakeActionStore struct {
	msg          *message.Message
	appliedRef   string
	appliedID    string
	appliedPatch map[string]any
}

func (f *fakeActionStore) GetMessageByRef(ref string) *message.Message {
	if f.msg == nil || f.msg.Ref != ref {
		return nil
	}
	return f.msg
}

func (f *fakeActionStore) ApplyAction(_ context.Context, ref, actionID string, patch map[string]any) (*message.Message, error) {
	f.appliedRef, f.appliedID, f.appliedPatch = ref, actionID, patch
	return f.msg, nil
}

func TestActionExecutorExecuteAckAction(t *testing.T) {
	msg := &message.Message{
		Ref:     "a1",
		Actions: []message.Action{{Type: message.ActionAck, ID: "ack-1"}},
	}
	fs := &fakeActionStore{msg: msg}
	now := clock.NewMock(clockTime())
	e := NewActionExecutor(fs, now)

	_, err := e.Execute(context.Background(), ActionRequest{Ref: "a1", ActionID: "ack-1", Actor: "user:bob"})
	require.NoError(t, err)

	assert.Equal(t, "a1", fs.appliedRef)
	assert.Equal(t, "ack-1", fs.appliedID)
	lifecycle := fs.appliedPatch["lifecycle"].(map[string]any)
	assert.Equal(t, string(message.StateAcked), lifecycle["state"])
	assert.Equal(t, "user:bob", lifecycle["stateChangedBy"])
}

func TestActionExecutorExecuteCloseClearsNotifyAt(t *testing.T) {
	msg := &message.Message{
		Ref:     "a1",
		Actions: []message.Action{{Type: message.ActionClose, ID: "close-1"}},
	}
	fs := &fakeActionStore{msg: msg}
	e := NewActionExecutor(fs, clock.NewMock(clockTime()))

	_, err := e.Execute(context.Background(), ActionRequest{Ref: "a1", ActionID: "close-1", Actor: "user:bob"})
	require.NoError(t, err)

	timing := fs.appliedPatch["timing"].(map[string]any)
	assert.Nil(t, timing["notifyAt"])
}

func TestActionExecutorExecuteSnoozeUsesPayloadOverride(t *testing.T) {
	msg := &message.Message{
		Ref:     "a1",
		Actions: []message.Action{{Type: message.ActionSnooze, ID: "snooze-1"}},
	}
	fs := &fakeActionStore{msg: msg}
	now := clock.NewMock(clockTime())
	e := NewActionExecutor(fs, now)

	_, err := e.Execute(context.Background(), ActionRequest{
		Ref: "a1", ActionID: "snooze-1", Actor: "user:bob",
		Payload: map[string]any{"snoozeMs": int64(600_000)},
	})
	require.NoError(t, err)

	timing := fs.appliedPatch["timing"].(map[string]any)
	assert.Equal(t, now.Now().UnixMilli()+600_000, timing["notifyAt"])
}

func TestActionExecutorExecuteCustomLeavesLifecycleStateUnset(t *testing.T) {
	msg := &message.Message{
		Ref:     "a1",
		Actions: []message.Action{{Type: message.ActionCustom, ID: "custom-1"}},
	}
	fs := &fakeActionStore{msg: msg}
	e := NewActionExecutor(fs, clock.NewMock(clockTime()))

	_, err := e.Execute(context.Background(), ActionRequest{Ref: "a1", ActionID: "custom-1", Actor: "user:bob"})
	require.NoError(t, err)

	lifecycle := fs.appliedPatch["lifecycle"].(map[string]any)
	_, hasState := lifecycle["state"]
	assert.False(t, hasState)
	assert.Equal(t, "user:bob", lifecycle["stateChangedBy"])
}

func TestActionExecutorExecuteUnknownRef(t *testing.T) {
	fs := &fakeActionStore{}
	e := NewActionExecutor(fs, clock.NewMock(clockTime()))

	_, err := e.Execute(context.Background(), ActionRequest{Ref: "missing", ActionID: "x", Actor: "u"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestActionExecutorExecuteUnknownAction(t *testing.T) {
	msg := &message.Message{Ref: "a1"}
	fs := &fakeActionStore{msg: msg}
	e := NewActionExecutor(fs, clock.NewMock(clockTime()))

	_, err := e.Execute(context.Background(), ActionRequest{Ref: "a1", ActionID: "missing", Actor: "u"})
	require.ErrorIs(t, err, ErrActionNotFound)
}
