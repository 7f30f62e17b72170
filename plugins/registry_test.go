package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacknerd/msghub/events"
	"github.com/stacknerd/msghub/message"
)

// fakeCtx stands in for a hostapi Context in tests that don't need the
// real capability facades, just an identity to assert against.
type fakeCtx struct {
	id string
}

func fakeAPIFor(id string) fakeCtx { return fakeCtx{id: id} }

func TestRegistryDispatchDeliversToEveryHandler(t *testing.T) {
	r := NewRegistry[fakeCtx](fakeAPIFor, nil)
	var gotA, gotB []string

	r.Register(context.Background(), "a", FuncHandler[fakeCtx]{Fn: func(_ context.Context, event string, msgs []*message.Message, api fakeCtx) {
		gotA = append(gotA, event+":"+api.id)
	}})
	r.Register(context.Background(), "b", FuncHandler[fakeCtx]{Fn: func(_ context.Context, event string, msgs []*message.Message, api fakeCtx) {
		gotB = append(gotB, event+":"+api.id)
	}})

	r.Dispatch(context.Background(), events.TypeCreated, []*message.Message{{Ref: "x1"}})

	assert.Equal(t, []string{events.TypeCreated + ":a"}, gotA)
	assert.Equal(t, []string{events.TypeCreated + ":b"}, gotB)
}

func TestRegistryDispatchRejectsUnknownEventType(t *testing.T) {
	r := NewRegistry[fakeCtx](fakeAPIFor, nil)
	called := false
	r.Register(context.Background(), "a", FuncHandler[fakeCtx]{Fn: func(context.Context, string, []*message.Message, fakeCtx) {
		called = true
	}})

	r.Dispatch(context.Background(), "msghub.message.bogus", nil)
	assert.False(t, called)
}

type panickyHandler struct{}

func (panickyHandler) OnNotifications(context.Context, string, []*message.Message, fakeCtx) {
	panic("boom")
}
func (panickyHandler) Start(context.Context, fakeCtx) {}
func (panickyHandler) Stop(context.Context, fakeCtx)  {}

func TestRegistryDispatchIsolatesPanickingHandler(t *testing.T) {
	r := NewRegistry[fakeCtx](fakeAPIFor, nil)
	var gotB bool

	r.Register(context.Background(), "panicky", panickyHandler{})
	r.Register(context.Background(), "b", FuncHandler[fakeCtx]{Fn: func(context.Context, string, []*message.Message, fakeCtx) {
		gotB = true
	}})

	require.NotPanics(t, func() {
		r.Dispatch(context.Background(), events.TypeDue, nil)
	})
	assert.True(t, gotB)
}

func TestRegistryRegisterReplacesAndStopsPrevious(t *testing.T) {
	r := NewRegistry[fakeCtx](fakeAPIFor, nil)
	var stoppedFirst bool

	r.Register(context.Background(), "a", stopTrackingHandler{onStop: func() { stoppedFirst = true }})
	r.Start(context.Background())
	r.Register(context.Background(), "a", FuncHandler[fakeCtx]{})

	assert.True(t, stoppedFirst)
	assert.Equal(t, 1, r.Count())
}

type stopTrackingHandler struct {
	onStop func()
}

func (stopTrackingHandler) OnNotifications(context.Context, string, []*message.Message, fakeCtx) {}
func (stopTrackingHandler) Start(context.Context, fakeCtx)                                        {}
func (h stopTrackingHandler) Stop(context.Context, fakeCtx) {
	if h.onStop != nil {
		h.onStop()
	}
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry[fakeCtx](fakeAPIFor, nil)
	r.Unregister(context.Background(), "never-registered")
	assert.Equal(t, 0, r.Count())
}

func TestRegistryStartStartsHandlersRegisteredBeforehand(t *testing.T) {
	r := NewRegistry[fakeCtx](fakeAPIFor, nil)
	started := false
	r.Register(context.Background(), "a", startTrackingHandler{onStart: func() { started = true }})

	assert.False(t, started)
	r.Start(context.Background())
	assert.True(t, started)
}

type startTrackingHandler struct {
	onStart func()
}

func (h startTrackingHandler) Start(context.Context, fakeCtx) {
	if h.onStart != nil {
		h.onStart()
	}
}
func (startTrackingHandler) Stop(context.Context, fakeCtx)                                        {}
func (startTrackingHandler) OnNotifications(context.Context, string, []*message.Message, fakeCtx) {}
