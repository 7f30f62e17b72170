package hostapi

import (
	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/message"
)

// FactoryAPI is ctx.api.factory: creation only, bound only to ingest
// hosts. It never touches the store — a plugin that wants the message
// persisted still goes through ctx.api.store.addMessage with the
// result, or a host wires createMessage straight into addMessage.
type FactoryAPI struct {
	Factory *message.Factory
	Clock   clock.Clock
}

// NewFactoryAPI builds a FactoryAPI. A nil clock defaults to clock.Real{}.
func NewFactoryAPI(factory *message.Factory, c clock.Clock) FactoryAPI {
	if c == nil {
		c = clock.Real{}
	}
	return FactoryAPI{Factory: factory, Clock: c}
}

// CreateMessage builds a validated Message with createdAt pinned to now.
func (f FactoryAPI) CreateMessage(input map[string]any) (*message.Message, error) {
	return f.Factory.CreateMessage(input, f.Clock.Now())
}
