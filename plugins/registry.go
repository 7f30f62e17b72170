// Package plugins implements the C11 plugin host registries
// (Ingest/Notify/Engage/Bridge): register/unregister with best-effort
// start/stop, and fault-isolated fan-out to every registered handler.
// Grounded on the teacher's Observer/ObservableApplication pattern
// (observer.go, application_observer.go) generalized with a type
// parameter so each plugin role gets its own hostapi.Context shape
// instead of one untyped ctx.api object.
package plugins

import (
	"context"
	"sync"

	"github.com/stacknerd/msghub/events"
	"github.com/stacknerd/msghub/logging"
	"github.com/stacknerd/msghub/message"
)

// Handler is the object-shaped plugin contract: onNotifications plus
// best-effort start/stop lifecycle hooks. C is the capability-scoped
// hostapi Context type the handler's role receives (IngestContext,
// NotifyContext or EngageContext).
type Handler[C any] interface {
	OnNotifications(ctx context.Context, event string, msgs []*message.Message, api C)
	Start(ctx context.Context, api C)
	Stop(ctx context.Context, api C)
}

// FuncHandler adapts a bare notification function into a Handler with
// no-op lifecycle hooks, mirroring the teacher's FunctionalObserver
// (observer.go) generalized from "any observer" to "any plugin role".
type FuncHandler[C any] struct {
	Fn func(ctx context.Context, event string, msgs []*message.Message, api C)
}

func (f FuncHandler[C]) OnNotifications(ctx context.Context, event string, msgs []*message.Message, api C) {
	if f.Fn != nil {
		f.Fn(ctx, event, msgs, api)
	}
}
func (f FuncHandler[C]) Start(context.Context, C) {}
func (f FuncHandler[C]) Stop(context.Context, C)  {}

type registration[C any] struct {
	id      string
	handler Handler[C]
}

// Registry is one plugin role's registration table. apiFor builds the
// role-scoped Context for a given plugin id (binding, e.g., its log
// prefix) at registration time, not once for the whole registry, so
// each plugin's ctx.api.log carries its own identity.
type Registry[C any] struct {
	mu      sync.RWMutex
	entries map[string]registration[C]
	running bool
	apiFor  func(id string) C
	Logger  logging.Logger
}

// NewRegistry builds a Registry. apiFor must not be nil.
func NewRegistry[C any](apiFor func(id string) C, logger logging.Logger) *Registry[C] {
	if logger == nil {
		logger = logging.Noop{}
	}
	return &Registry[C]{entries: make(map[string]registration[C]), apiFor: apiFor, Logger: logger}
}

// Register replaces any previous handler under id (best-effort stopping
// it first), stores handler, and immediately starts it if the registry
// is already running. Registration itself can't fail: a panicking
// start is caught and logged, never propagated to the caller.
func (r *Registry[C]) Register(ctx context.Context, id string, handler Handler[C]) {
	r.mu.Lock()
	if prev, ok := r.entries[id]; ok {
		running := r.running
		r.mu.Unlock()
		if running {
			r.safeStop(ctx, prev)
		}
		r.mu.Lock()
	}
	reg := registration[C]{id: id, handler: handler}
	r.entries[id] = reg
	running := r.running
	r.mu.Unlock()

	if running {
		r.safeStart(ctx, reg)
	}
}

// Unregister best-effort stops and removes id. Idempotent: unregistering
// an unknown id is a no-op.
func (r *Registry[C]) Unregister(ctx context.Context, id string) {
	r.mu.Lock()
	reg, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if ok {
		r.safeStop(ctx, reg)
	}
}

// Start marks the registry running and starts every registered handler.
func (r *Registry[C]) Start(ctx context.Context) {
	r.mu.Lock()
	r.running = true
	entries := r.snapshotLocked()
	r.mu.Unlock()
	for _, reg := range entries {
		r.safeStart(ctx, reg)
	}
}

// StopAll marks the registry stopped and stops every registered handler.
func (r *Registry[C]) StopAll(ctx context.Context) {
	r.mu.Lock()
	r.running = false
	entries := r.snapshotLocked()
	r.mu.Unlock()
	for _, reg := range entries {
		r.safeStop(ctx, reg)
	}
}

// Dispatch fans event+msgs out to every registered handler. Unknown
// event names are rejected without touching a single handler — spec.md
// §4.8's "hosts validate the event name against an enumerated set".
// Each handler call is isolated: a panic is recovered and logged, never
// propagated to another handler or to the caller that triggered
// dispatch.
func (r *Registry[C]) Dispatch(ctx context.Context, event string, msgs []*message.Message) {
	if !events.IsValidType(event) {
		r.Logger.Error("plugins: rejected dispatch of unrecognized event type", "event", event)
		return
	}
	r.mu.RLock()
	entries := r.snapshotLocked()
	r.mu.RUnlock()
	for _, reg := range entries {
		r.safeNotify(ctx, event, msgs, reg)
	}
}

// Count reports the number of currently registered handlers.
func (r *Registry[C]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry[C]) snapshotLocked() []registration[C] {
	out := make([]registration[C], 0, len(r.entries))
	for _, reg := range r.entries {
		out = append(out, reg)
	}
	return out
}

func (r *Registry[C]) safeNotify(ctx context.Context, event string, msgs []*message.Message, reg registration[C]) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("plugins: handler panicked during dispatch", "id", reg.id, "event", event, "panic", rec)
		}
	}()
	reg.handler.OnNotifications(ctx, event, msgs, r.apiFor(reg.id))
}

func (r *Registry[C]) safeStart(ctx context.Context, reg registration[C]) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("plugins: handler panicked during start", "id", reg.id, "panic", rec)
		}
	}()
	reg.handler.Start(ctx, r.apiFor(reg.id))
}

func (r *Registry[C]) safeStop(ctx context.Context, reg registration[C]) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("plugins: handler panicked during stop", "id", reg.id, "panic", rec)
		}
	}()
	reg.handler.Stop(ctx, r.apiFor(reg.id))
}
