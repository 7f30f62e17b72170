package hostapi

import (
	"context"
	"fmt"

	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/message"
)

// ActionRequest is ctx.api.action.execute's input.
type ActionRequest struct {
	Ref      string
	ActionID string
	Actor    string
	Payload  map[string]any
}

// actionStore is the narrow store surface ActionExecutor needs: resolve
// by ref, apply the derived transition as an "action" archive event.
type actionStore interface {
	GetMessageByRef(ref string) *message.Message
	ApplyAction(ctx context.Context, ref, actionID string, patch map[string]any) (*message.Message, error)
}

// ActionExecutor is ctx.api.action, bound only to engage hosts. Execute
// resolves the message, finds the matching action, derives the state
// transition its ActionType implies, and applies it through
// store.ApplyAction so the mutation is archived as an "action" event
// (not "patch") and dispatched as "updated".
type ActionExecutor struct {
	Store actionStore
	Clock clock.Clock
}

// NewActionExecutor builds an ActionExecutor. A nil clock defaults to
// clock.Real{}.
func NewActionExecutor(s actionStore, c clock.Clock) ActionExecutor {
	if c == nil {
		c = clock.Real{}
	}
	return ActionExecutor{Store: s, Clock: c}
}

// Execute implements ctx.api.action.execute({ref, actionId, actor, payload?}).
func (e ActionExecutor) Execute(ctx context.Context, req ActionRequest) (*message.Message, error) {
	m := e.Store.GetMessageByRef(req.Ref)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.Ref)
	}

	action, ok := findAction(m.Actions, req.ActionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionNotFound, req.ActionID)
	}

	patch := transitionFor(action, m, req.Actor, req.Payload, e.Clock.Now().UnixMilli())
	return e.Store.ApplyAction(ctx, req.Ref, action.ID, patch)
}

func findAction(actions []message.Action, id string) (message.Action, bool) {
	for _, a := range actions {
		if a.ID == id {
			return a, true
		}
	}
	return message.Action{}, false
}

// transitionFor derives the lifecycle/timing patch an action implies.
// The spec names the four built-in ActionTypes but leaves their
// concrete state transitions unspecified; this mapping is this
// implementation's resolution of that open question (see DESIGN.md):
//
//   - ack: state -> acked
//   - snooze: state -> snoozed, notifyAt pushed out by payload.snoozeMs
//     if given, else by the message's own timing.cooldown, else 1h
//   - close: state -> closed, notifyAt cleared (mirrors
//     completeAfterCauseEliminated, minus the percentage bump, since an
//     action close isn't necessarily "task done")
//   - dismiss: state -> deleted
//   - custom: no lifecycle change; stateChangedBy is stamped so the
//     actor is recorded, and the caller's payload is preserved only in
//     the action archive entry, not the message itself
func transitionFor(action message.Action, m *message.Message, actor string, payload map[string]any, nowMs int64) map[string]any {
	lifecycle := map[string]any{"stateChangedBy": actor}
	patch := map[string]any{"lifecycle": lifecycle}

	switch action.Type {
	case message.ActionAck:
		lifecycle["state"] = string(message.StateAcked)
	case message.ActionSnooze:
		lifecycle["state"] = string(message.StateSnoozed)
		patch["timing"] = map[string]any{"notifyAt": nowMs + snoozeDurationMs(m, payload)}
	case message.ActionClose:
		lifecycle["state"] = string(message.StateClosed)
		patch["timing"] = map[string]any{"notifyAt": nil}
	case message.ActionDismiss:
		lifecycle["state"] = string(message.StateDeleted)
	case message.ActionCustom:
		// stateChangedBy only; no automatic lifecycle transition.
	}
	return patch
}

const defaultSnoozeMs int64 = 3600_000

// snoozeDurationMs resolves how far out a snooze pushes notifyAt
// (relative to now): an explicit payload.snoozeMs wins, then the
// message's own timing.cooldown, then a one-hour default.
func snoozeDurationMs(m *message.Message, payload map[string]any) int64 {
	var snoozeMs int64
	if v, ok := payload["snoozeMs"]; ok {
		switch n := v.(type) {
		case int64:
			snoozeMs = n
		case int:
			snoozeMs = int64(n)
		case float64:
			snoozeMs = int64(n)
		}
	}
	if snoozeMs <= 0 {
		snoozeMs = m.Timing.Cooldown
	}
	if snoozeMs <= 0 {
		snoozeMs = defaultSnoozeMs
	}
	return snoozeMs
}
