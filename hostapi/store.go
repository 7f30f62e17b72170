package hostapi

import (
	"context"

	"github.com/stacknerd/msghub/message"
	"github.com/stacknerd/msghub/store"
)

// StoreReader is ctx.api.store as seen by notify/engage plugin hosts:
// read-only. *store.Store satisfies this structurally.
type StoreReader interface {
	GetMessageByRef(ref string) *message.Message
	GetMessages() []*message.Message
	QueryMessages(q store.Query) (store.Result, error)
}

// StoreWriter is ctx.api.store as seen by ingest plugin hosts: the full
// read+write surface, including the completeAfterCauseEliminated
// shortcut. *store.Store satisfies this structurally.
type StoreWriter interface {
	StoreReader
	AddMessage(ctx context.Context, input map[string]any) (*message.Message, error)
	UpdateMessage(ctx context.Context, ref string, patch map[string]any) (*message.Message, error)
	AddOrUpdateMessage(ctx context.Context, input map[string]any) (*message.Message, error)
	RemoveMessage(ctx context.Context, ref string, opts store.RemoveOptions) (bool, error)
	CompleteAfterCauseEliminated(ctx context.Context, ref string) (*message.Message, error)
}
