// Package hostapi builds MsgHostApi (C10): the capability-scoped ctx.api
// surface each plugin role sees. Rather than one God-object with every
// field always populated, each plugin role gets its own Context type
// carrying only the capabilities spec.md §4.8 grants it — a notify host
// never sees a writable store, an ingest host never sees ctx.api.action.
package hostapi

import (
	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/logging"
	"github.com/stacknerd/msghub/message"
	"github.com/stacknerd/msghub/stats"
	"github.com/stacknerd/msghub/store"
)

// IngestContext is ctx for Ingest plugins: read+write store, factory,
// no action facade (ingest hosts create/update, they don't act on
// existing actions).
type IngestContext struct {
	Log      StrictLogger
	Store    StoreWriter
	Factory  FactoryAPI
	IOBroker IOBroker
	IDs      IDs
}

// NotifyContext is ctx for Notify plugins: read-only store, read-only
// stats, no action/factory facade.
type NotifyContext struct {
	Log      StrictLogger
	Store    StoreReader
	Stats    StatsReader
	IOBroker IOBroker
	IDs      IDs
}

// EngageContext is ctx for Engage plugins: read-only store plus the
// action facade (the only role allowed to execute an action).
type EngageContext struct {
	Log      StrictLogger
	Store    StoreReader
	Stats    StatsReader
	Action   ActionExecutor
	IOBroker IOBroker
	IDs      IDs
}

// Deps bundles the collaborators every Context constructor needs, so
// call sites don't have to repeat a long parameter list per plugin host.
type Deps struct {
	Store    *store.Store
	Stats    *stats.Tracker
	Factory  *message.Factory
	Clock    clock.Clock
	Logger   logging.Logger
	IOBroker IOBroker
	IDs      IDs
}

// NewIngestContext builds an IngestContext for a plugin identified by id
// (used only to prefix its logger).
func (d Deps) NewIngestContext(id string) IngestContext {
	return IngestContext{
		Log:      NewStrictLogger(d.Logger).WithPrefix("[" + id + "] "),
		Store:    d.Store,
		Factory:  NewFactoryAPI(d.Factory, d.Clock),
		IOBroker: d.IOBroker,
		IDs:      d.IDs,
	}
}

// NewNotifyContext builds a NotifyContext for a plugin identified by id.
func (d Deps) NewNotifyContext(id string) NotifyContext {
	return NotifyContext{
		Log:      NewStrictLogger(d.Logger).WithPrefix("[" + id + "] "),
		Store:    d.Store,
		Stats:    d.Stats,
		IOBroker: d.IOBroker,
		IDs:      d.IDs,
	}
}

// NewEngageContext builds an EngageContext for a plugin identified by id.
func (d Deps) NewEngageContext(id string) EngageContext {
	return EngageContext{
		Log:      NewStrictLogger(d.Logger).WithPrefix("[" + id + "] "),
		Store:    d.Store,
		Stats:    d.Stats,
		Action:   NewActionExecutor(d.Store, d.Clock),
		IOBroker: d.IOBroker,
		IDs:      d.IDs,
	}
}
