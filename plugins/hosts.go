package plugins

import (
	"context"
	"fmt"

	"github.com/stacknerd/msghub/hostapi"
	"github.com/stacknerd/msghub/logging"
	"github.com/stacknerd/msghub/message"
)

// IngestHandler/NotifyHandler/EngageHandler are Handler instantiated
// per plugin role's capability-scoped Context.
type (
	IngestHandler = Handler[hostapi.IngestContext]
	NotifyHandler = Handler[hostapi.NotifyContext]
	EngageHandler = Handler[hostapi.EngageContext]
)

// IngestRegistry/NotifyRegistry/EngageRegistry are Registry instantiated
// per plugin role.
type (
	IngestRegistry = Registry[hostapi.IngestContext]
	NotifyRegistry = Registry[hostapi.NotifyContext]
	EngageRegistry = Registry[hostapi.EngageContext]
)

// NewIngestRegistry builds the Ingest (MsgIngest) registry.
func NewIngestRegistry(deps hostapi.Deps, logger logging.Logger) *IngestRegistry {
	return NewRegistry[hostapi.IngestContext](deps.NewIngestContext, logger)
}

// NewNotifyRegistry builds the Notify (MsgNotify) registry. The
// returned *NotifyRegistry satisfies store.Notifier directly — its
// Dispatch signature is exactly what Store.dispatch calls — so it can
// be wired straight into store.New without an adapter.
func NewNotifyRegistry(deps hostapi.Deps, logger logging.Logger) *NotifyRegistry {
	return NewRegistry[hostapi.NotifyContext](deps.NewNotifyContext, logger)
}

// NewEngageRegistry builds the Engage (MsgEngage) registry.
func NewEngageRegistry(deps hostapi.Deps, logger logging.Logger) *EngageRegistry {
	return NewRegistry[hostapi.EngageContext](deps.NewEngageContext, logger)
}

// ChannelNotifyHandler scopes a NotifyHandler to one outbound channel
// name, forwarding only the messages whose audience.channels filter
// (message.ChannelFilter.Matches, glob-matched per spec.md §3) selects
// that channel. Register one per channel (e.g. "notify.push",
// "notify.email") instead of making every handler re-implement its own
// audience filtering.
type ChannelNotifyHandler struct {
	Channel string
	Inner   NotifyHandler
}

func (h ChannelNotifyHandler) OnNotifications(ctx context.Context, event string, msgs []*message.Message, api hostapi.NotifyContext) {
	filtered := make([]*message.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Audience.Channels.Matches(h.Channel) {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 {
		return
	}
	h.Inner.OnNotifications(ctx, event, filtered, api)
}

func (h ChannelNotifyHandler) Start(ctx context.Context, api hostapi.NotifyContext) { h.Inner.Start(ctx, api) }
func (h ChannelNotifyHandler) Stop(ctx context.Context, api hostapi.NotifyContext)  { h.Inner.Stop(ctx, api) }

// Bridge pairs one Ingest handler and one Notify handler under a shared
// id (spec.md §4.8), registering and unregistering both halves as a
// single unit. Each half's own start/stop is already panic-isolated by
// its Registry; Bridge additionally guards against a panic in its own
// pairing logic unregistering whichever half did register, so a failed
// bridge registration never leaves one half live without the other.
type Bridge struct {
	Ingest *IngestRegistry
	Notify *NotifyRegistry
}

// Register registers both halves under id.
func (b Bridge) Register(ctx context.Context, id string, ingest IngestHandler, notify NotifyHandler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			b.Ingest.Unregister(ctx, id)
			b.Notify.Unregister(ctx, id)
			err = fmt.Errorf("plugins: bridge %q registration failed: %v", id, rec)
		}
	}()
	b.Ingest.Register(ctx, id, ingest)
	b.Notify.Register(ctx, id, notify)
	return nil
}

// Unregister removes both halves under id.
func (b Bridge) Unregister(ctx context.Context, id string) {
	b.Ingest.Unregister(ctx, id)
	b.Notify.Unregister(ctx, id)
}
