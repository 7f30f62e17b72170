// Package stats implements C9: in-memory snapshot counters over the
// store's current list, plus a persistent daily rollup of closed
// messages backed by a dedicated MsgStorage-style document
// (stats-rollup.json). Grounded on the teacher's scheduler module: a
// cron-driven catch-up sweep (scheduler.go's cron.Cron wiring,
// catchup.go's "re-check independent of the event-driven path" idea)
// runs alongside the eager prune RecordClosed already performs, so
// retention holds even if recordClosed is never called for a day.
package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/logging"
	"github.com/stacknerd/msghub/message"
	"github.com/stacknerd/msghub/msgarchive"
	"github.com/stacknerd/msghub/msgstorage"
)

const rollupSchemaVersion = 1

// RollupDay is one local-day bucket of closed-message counts.
type RollupDay struct {
	Total  int            `json:"total"`
	ByKind map[string]int `json:"byKind"`
}

// Rollup is the persisted stats-rollup.json document.
type Rollup struct {
	SchemaVersion int                  `json:"schemaVersion"`
	LastClosedAt  int64                `json:"lastClosedAt,omitempty"`
	Days          map[string]RollupDay `json:"days"`
}

// Config holds the tracker's tunables.
type Config struct {
	RollupKeepDays int    // days of rollup history retained; 0 uses DefaultRollupKeepDays
	PruneCronSpec  string // standard 5-field cron spec for the catch-up prune sweep; "" disables it
	Locale         string // carried through in snapshot meta only
}

// DefaultRollupKeepDays is used when Config.RollupKeepDays is 0.
const DefaultRollupKeepDays = 90

// Tracker is the C9 implementation.
type Tracker struct {
	Storage *msgstorage.Storage
	Clock   clock.Clock
	Logger  logging.Logger
	Config  Config

	mu     sync.Mutex
	rollup Rollup

	cron *cron.Cron
}

// New builds a Tracker. Call Init before use.
func New(storage *msgstorage.Storage, c clock.Clock, logger logging.Logger, cfg Config) *Tracker {
	if c == nil {
		c = clock.Real{}
	}
	if logger == nil {
		logger = logging.Noop{}
	}
	if cfg.RollupKeepDays == 0 {
		cfg.RollupKeepDays = DefaultRollupKeepDays
	}
	return &Tracker{Storage: storage, Clock: c, Logger: logger, Config: cfg}
}

// Init loads the persisted rollup (if any) and arms the catch-up prune
// cron, if configured.
func (t *Tracker) Init(ctx context.Context) error {
	raw, err := t.Storage.ReadJSON(ctx, map[string]any{
		"schemaVersion": float64(rollupSchemaVersion),
		"days":          map[string]any{},
	})
	if err != nil {
		return fmt.Errorf("stats: init: %w", err)
	}
	t.mu.Lock()
	t.rollup = decodeRollup(raw)
	t.mu.Unlock()

	if t.Config.PruneCronSpec != "" {
		t.cron = cron.New()
		if _, err := t.cron.AddFunc(t.Config.PruneCronSpec, func() {
			t.mu.Lock()
			changed := t.pruneLocked()
			snapshot := t.cloneRollupLocked()
			t.mu.Unlock()
			if changed {
				t.Storage.WriteJSON(ctx, snapshot)
			}
		}); err != nil {
			return fmt.Errorf("stats: invalid prune cron spec %q: %w", t.Config.PruneCronSpec, err)
		}
		t.cron.Start()
	}
	return nil
}

// Stop cancels the catch-up prune cron, if running.
func (t *Tracker) Stop(ctx context.Context) {
	if t.cron != nil {
		<-t.cron.Stop().Done()
	}
}

// RecordClosed buckets a closed message into today's local-day rollup
// entry and persists. Non-closed messages are ignored defensively: the
// store only calls this on the closed transition, but the contract
// itself guards against being called out of band.
func (t *Tracker) RecordClosed(msg *message.Message) {
	if msg == nil || msg.Lifecycle.State != message.StateClosed {
		return
	}
	now := t.Clock.Now()
	closedAt := msg.Lifecycle.StateChangedAt
	if closedAt == 0 {
		closedAt = now.UnixMilli()
	}
	bucketTime := time.UnixMilli(closedAt)
	key := bucketTime.Format("2006-01-02")

	t.mu.Lock()
	if t.rollup.Days == nil {
		t.rollup.Days = make(map[string]RollupDay)
	}
	day := t.rollup.Days[key]
	day.Total++
	if day.ByKind == nil {
		day.ByKind = make(map[string]int)
	}
	day.ByKind[string(msg.Kind)]++
	t.rollup.Days[key] = day

	if closedAt > t.rollup.LastClosedAt {
		t.rollup.LastClosedAt = closedAt
	}
	t.pruneLocked()
	snapshot := t.cloneRollupLocked()
	t.mu.Unlock()

	t.Storage.WriteJSON(context.Background(), snapshot)
}

// pruneLocked drops day buckets older than Config.RollupKeepDays,
// relative to the tracker's clock. Caller holds t.mu. Reports whether
// anything was removed.
func (t *Tracker) pruneLocked() bool {
	if len(t.rollup.Days) == 0 {
		return false
	}
	cutoff := t.Clock.Now().AddDate(0, 0, -t.Config.RollupKeepDays).Format("2006-01-02")
	removed := false
	for key := range t.rollup.Days {
		if key < cutoff {
			delete(t.rollup.Days, key)
			removed = true
		}
	}
	return removed
}

func (t *Tracker) cloneRollupLocked() Rollup {
	days := make(map[string]RollupDay, len(t.rollup.Days))
	for k, v := range t.rollup.Days {
		byKind := make(map[string]int, len(v.ByKind))
		for kk, vv := range v.ByKind {
			byKind[kk] = vv
		}
		days[k] = RollupDay{Total: v.Total, ByKind: byKind}
	}
	return Rollup{SchemaVersion: rollupSchemaVersion, LastClosedAt: t.rollup.LastClosedAt, Days: days}
}

// decodeRollup tolerates both the typed Rollup a same-process round
// trip would produce and the map[string]any shape ReadJSON's plain
// encoding/json decode yields for a freshly reloaded file.
func decodeRollup(raw any) Rollup {
	out := Rollup{SchemaVersion: rollupSchemaVersion, Days: make(map[string]RollupDay)}
	m, ok := raw.(map[string]any)
	if !ok {
		return out
	}
	if lc, ok := m["lastClosedAt"].(float64); ok {
		out.LastClosedAt = int64(lc)
	}
	daysRaw, _ := m["days"].(map[string]any)
	for key, v := range daysRaw {
		dm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		day := RollupDay{ByKind: make(map[string]int)}
		if total, ok := dm["total"].(float64); ok {
			day.Total = int(total)
		}
		if byKind, ok := dm["byKind"].(map[string]any); ok {
			for kind, count := range byKind {
				if cf, ok := count.(float64); ok {
					day.ByKind[kind] = int(cf)
				}
			}
		}
		out.Days[key] = day
	}
	return out
}

// IOStatus carries the storage/archive status snapshots embedded into
// GetStats's "io" section, kept separate from msgstorage.Status and
// msgarchive.Status so stats doesn't force callers into any particular
// archive size refresh strategy.
type IOStatus struct {
	Storage          msgstorage.Status
	Archive          msgarchive.Status
	ArchiveSizeBytes int64
	ArchiveSizeKnown bool
}

// GetStatsOptions controls optional, potentially expensive snapshot
// sections.
type GetStatsOptions struct {
	// IncludeArchiveSize requests ArchiveSizeFn (if set) be invoked to
	// eager-refresh the archive size estimate.
	IncludeArchiveSize bool
	ArchiveSizeFn      func(ctx context.Context) (int64, error)
}

// Meta carries snapshot-generation metadata.
type Meta struct {
	SchemaVersion int       `json:"schemaVersion"`
	GeneratedAt   time.Time `json:"generatedAt"`
	TZ            string    `json:"tz"`
	Locale        string    `json:"locale,omitempty"`
	Windows       []string  `json:"windows"`
}

// Snapshot is GetStats's full return value.
type Snapshot struct {
	Current  CurrentSummary
	Schedule ScheduleSummary
	Done     DoneSummary
	IO       IOStatus
	Meta     Meta
}

// GetStats computes a full snapshot from the store's current list, the
// persisted rollup, and the supplied storage/archive status.
func (t *Tracker) GetStats(ctx context.Context, current []*message.Message, ioStatus IOStatus, opts GetStatsOptions) (Snapshot, error) {
	now := t.Clock.Now()

	if opts.IncludeArchiveSize && opts.ArchiveSizeFn != nil {
		size, err := opts.ArchiveSizeFn(ctx)
		if err != nil {
			t.Logger.Error("stats: archive size refresh failed", "error", err)
		} else {
			ioStatus.ArchiveSizeBytes = size
			ioStatus.ArchiveSizeKnown = true
		}
	}

	t.mu.Lock()
	rollup := t.cloneRollupLocked()
	t.mu.Unlock()

	return Snapshot{
		Current:  summarizeCurrent(current),
		Schedule: summarizeSchedule(current, now),
		Done:     summarizeDone(rollup, now),
		IO:       ioStatus,
		Meta: Meta{
			SchemaVersion: rollupSchemaVersion,
			GeneratedAt:   now,
			TZ:            now.Location().String(),
			Locale:        t.Config.Locale,
			Windows:       scheduleWindowNames,
		},
	}, nil
}
