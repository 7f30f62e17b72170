package hostapi

import (
	"context"

	"github.com/stacknerd/msghub/message"
	"github.com/stacknerd/msghub/stats"
)

// StatsReader is ctx.api.stats. *stats.Tracker satisfies this
// structurally; GetMessages supplies the "current" list GetStats needs,
// kept as a caller-supplied argument rather than a Tracker field so
// stats never depends on store.
type StatsReader interface {
	GetStats(ctx context.Context, current []*message.Message, ioStatus stats.IOStatus, opts stats.GetStatsOptions) (stats.Snapshot, error)
}
