// Package msgarchive implements C5: a per-ref, append-only JSONL event
// log segmented by local ISO-week, with per-ref batching, retention of
// previous week segments, path segment bounding, and structural diff
// computation for patch events.
package msgarchive

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/codec"
	"github.com/stacknerd/msghub/logging"
	"github.com/stacknerd/msghub/opqueue"
	"github.com/stacknerd/msghub/storage"
)

// Strategy records which storage backend the archive settled on after
// its startup probe.
type Strategy string

const (
	StrategyNative Strategy = "native"
	StrategyHost   Strategy = "host"
)

// Status is a live snapshot of the archive's pending work and the
// effective storage strategy.
type Status struct {
	PendingRefs   int
	PendingEvents int
	LastFlushAt   time.Time
	Strategy      Strategy
	ProbeError    string
}

// Config holds the tunables spec §4.4 names.
type Config struct {
	BaseDir              string
	Ext                  string // default "jsonl"
	MaxPathSegmentLength int    // default DefaultMaxPathSegmentLength
	FlushIntervalMs      int
	MaxBatchSize         int // default unlimited (0)
	KeepPreviousWeeks    int // 0 keeps only the current week
	ThrowOnError         bool
}

// Archive is the C5 implementation. NativeCandidate is probed at Init
// for native writability (write/read/append/read); on success it
// becomes the effective backend, otherwise HostFallback is used and the
// probe error is recorded in Status. Passing only one of the two skips
// the probe and uses it directly.
type Archive struct {
	Config
	NativeCandidate storage.Backend
	HostFallback    storage.Backend
	LockHostMode    bool
	Clock           clock.Clock
	Logger          logging.Logger

	backend storage.Backend
	queue   *opqueue.Queue

	mu           sync.Mutex
	pending      map[string]*pendingRef
	writtenWeeks map[string]map[string]bool // ref -> set of YYYYMMDD week stamps ever flushed this run

	statusMu sync.Mutex
	status   Status
}

type pendingRef struct {
	entries  []map[string]any
	resolves []func(error)
	timer    *time.Timer
	flushing bool
	rerun    bool
}

// New builds an Archive. Call Init before first use.
func New(cfg Config, nativeCandidate, hostFallback storage.Backend, c clock.Clock, logger logging.Logger) *Archive {
	if cfg.Ext == "" {
		cfg.Ext = "jsonl"
	}
	if cfg.MaxPathSegmentLength == 0 {
		cfg.MaxPathSegmentLength = DefaultMaxPathSegmentLength
	}
	// KeepPreviousWeeks is not defaulted: 0 is the legitimate "current
	// week only" retention policy spec scenario 4 requires.
	if c == nil {
		c = clock.Real{}
	}
	if logger == nil {
		logger = logging.Noop{}
	}
	return &Archive{
		Config:          cfg,
		NativeCandidate: nativeCandidate,
		HostFallback:    hostFallback,
		Clock:           c,
		Logger:          logger,
		queue:           opqueue.New(),
		pending:         make(map[string]*pendingRef),
		writtenWeeks:    make(map[string]map[string]bool),
	}
}

// Init probes backend writability (when both a native candidate and a
// host fallback are configured) and fixes the effective strategy for
// the process lifetime.
func (a *Archive) Init(ctx context.Context) error {
	switch {
	case a.NativeCandidate != nil && a.HostFallback != nil && !a.LockHostMode:
		if err := a.probe(ctx, a.NativeCandidate); err != nil {
			a.Logger.Warn("msgarchive: native probe failed, falling back to host storage", "error", err)
			a.setStatusLocked(func(s *Status) {
				s.Strategy = StrategyHost
				s.ProbeError = err.Error()
			})
			a.backend = a.HostFallback
		} else {
			a.backend = a.NativeCandidate
			a.setStatusLocked(func(s *Status) { s.Strategy = StrategyNative })
		}
	case a.NativeCandidate != nil:
		a.backend = a.NativeCandidate
		a.setStatusLocked(func(s *Status) { s.Strategy = StrategyNative })
	default:
		a.backend = a.HostFallback
		a.setStatusLocked(func(s *Status) { s.Strategy = StrategyHost })
	}
	if a.backend == nil {
		return fmt.Errorf("%w: no backend configured", ErrArchive)
	}
	if err := a.backend.Init(ctx); err != nil {
		return fmt.Errorf("msgarchive: init backend: %w", err)
	}
	return nil
}

// probe writes, reads, appends and re-reads a probe file to verify
// native writability before committing to it.
func (a *Archive) probe(ctx context.Context, backend storage.Backend) error {
	probePath := strings.TrimSuffix(a.BaseDir, "/") + "/.msgarchive-probe"
	if a.BaseDir == "" {
		probePath = ".msgarchive-probe"
	}
	if err := backend.Init(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	defer func() { _ = backend.DeleteFile(ctx, probePath) }()

	if err := backend.WriteFile(ctx, probePath, []byte("a")); err != nil {
		return fmt.Errorf("%w: write: %v", ErrProbeFailed, err)
	}
	if got, err := backend.ReadFile(ctx, probePath); err != nil || string(got) != "a" {
		return fmt.Errorf("%w: read-after-write mismatch", ErrProbeFailed)
	}
	if err := backend.AppendFile(ctx, probePath, []byte("b")); err != nil {
		return fmt.Errorf("%w: append: %v", ErrProbeFailed, err)
	}
	got, err := backend.ReadFile(ctx, probePath)
	if err != nil || string(got) != "ab" {
		return fmt.Errorf("%w: read-after-append mismatch", ErrProbeFailed)
	}
	return nil
}

func (a *Archive) setStatusLocked(f func(*Status)) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	f(&a.status)
}

// GetStatus returns a snapshot of the archive's pending work.
func (a *Archive) GetStatus() Status {
	a.statusMu.Lock()
	st := a.status
	a.statusMu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	st.PendingRefs = len(a.pending)
	events := 0
	for _, p := range a.pending {
		events += len(p.entries)
	}
	st.PendingEvents = events
	return st
}

func (a *Archive) buildEntry(ref, event string, now time.Time, payload map[string]any) map[string]any {
	entry := map[string]any{
		"schema_v": 1,
		"ts":       now.UnixMilli(),
		"ref":      ref,
		"event":    event,
	}
	for k, v := range payload {
		entry[k] = v
	}
	return entry
}

// AppendSnapshot records a full message snapshot for ref. isCreate
// distinguishes the message's very first archive entry (event="create")
// from a later manual/periodic re-baseline (event="snapshot"), per the
// archive's event enum {create, patch, action, delete, snapshot,
// expired}.
func (a *Archive) AppendSnapshot(ctx context.Context, ref string, message any, isCreate bool) *opqueue.Future {
	now := a.Clock.Now()
	event := "snapshot"
	if isCreate {
		event = "create"
	}
	return a.enqueue(ctx, ref, a.buildEntry(ref, event, now, map[string]any{"snapshot": message}))
}

// AppendPatch records a patch event. requested is the literal patch the
// caller applied. When both existing and updated are non-nil, a
// structural diff is computed and attached.
func (a *Archive) AppendPatch(ctx context.Context, ref string, requested, existing, updated any) *opqueue.Future {
	now := a.Clock.Now()
	payload := map[string]any{"requested": requested}
	if existing != nil && updated != nil {
		added, removed := Diff(existing, updated)
		payload["added"] = added
		payload["removed"] = removed
	}
	return a.enqueue(ctx, ref, a.buildEntry(ref, "patch", now, payload))
}

// AppendAction records an action-execution event.
func (a *Archive) AppendAction(ctx context.Context, ref, actionID string, payload map[string]any) *opqueue.Future {
	now := a.Clock.Now()
	return a.enqueue(ctx, ref, a.buildEntry(ref, "action", now, map[string]any{
		"actionId": actionID,
		"payload":  payload,
	}))
}

// AppendDelete records a deletion event, carrying the deleted message's
// final snapshot.
func (a *Archive) AppendDelete(ctx context.Context, ref string, message any) *opqueue.Future {
	now := a.Clock.Now()
	return a.enqueue(ctx, ref, a.buildEntry(ref, "delete", now, map[string]any{"snapshot": message}))
}

// AppendExpired records a lifecycle-expiry event, carrying the expired
// message's final snapshot.
func (a *Archive) AppendExpired(ctx context.Context, ref string, message any) *opqueue.Future {
	now := a.Clock.Now()
	return a.enqueue(ctx, ref, a.buildEntry(ref, "expired", now, map[string]any{"snapshot": message}))
}

// enqueue adds entry to ref's pending slot and arms/triggers its flush.
func (a *Archive) enqueue(ctx context.Context, ref string, entry map[string]any) *opqueue.Future {
	fut, resolve := opqueue.NewFuture()

	a.mu.Lock()
	p, ok := a.pending[ref]
	if !ok {
		p = &pendingRef{}
		a.pending[ref] = p
	}
	p.entries = append(p.entries, entry)
	p.resolves = append(p.resolves, resolve)

	shouldFlushNow := a.FlushIntervalMs == 0 || (a.MaxBatchSize > 0 && len(p.entries) >= a.MaxBatchSize)
	if shouldFlushNow {
		if p.timer != nil {
			p.timer.Stop()
			p.timer = nil
		}
	} else if p.timer == nil {
		p.timer = time.AfterFunc(time.Duration(a.FlushIntervalMs)*time.Millisecond, func() {
			a.flushRef(ctx, ref)
		})
	}
	a.mu.Unlock()

	if shouldFlushNow {
		a.flushRef(ctx, ref)
	}
	return fut
}

// flushRef drains ref's pending entries and persists them, grouped by
// the ISO-week segment each entry's own timestamp belongs to. Per-ref,
// at most one flush runs at a time; entries enqueued mid-flush are
// picked up by a follow-up flush.
func (a *Archive) flushRef(ctx context.Context, ref string) {
	a.mu.Lock()
	p, ok := a.pending[ref]
	if !ok {
		a.mu.Unlock()
		return
	}
	if p.flushing {
		p.rerun = true
		a.mu.Unlock()
		return
	}
	p.flushing = true
	entries := p.entries
	resolves := p.resolves
	p.entries = nil
	p.resolves = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	a.mu.Unlock()

	fut := a.queue.Submit(func() error {
		return a.writeGrouped(ctx, ref, entries)
	})
	err := fut.Wait()
	if err != nil {
		a.Logger.Error("msgarchive flush failed", "ref", ref, "error", err)
	}

	a.statusMu.Lock()
	a.status.LastFlushAt = a.Clock.Now()
	a.statusMu.Unlock()

	for _, resolve := range resolves {
		if a.ThrowOnError {
			resolve(err)
		} else {
			resolve(nil)
		}
	}

	a.mu.Lock()
	rerun := p.rerun
	p.rerun = false
	more := len(p.entries) > 0
	if !more {
		p.flushing = false
		if !rerun {
			delete(a.pending, ref)
		}
	}
	a.mu.Unlock()

	if rerun || more {
		a.mu.Lock()
		p.flushing = false
		a.mu.Unlock()
		a.flushRef(ctx, ref)
	}
}

// writeGrouped groups entries by the week segment their own timestamp
// belongs to and appends each group to its segment file, then runs
// retention for ref.
func (a *Archive) writeGrouped(ctx context.Context, ref string, entries []map[string]any) error {
	groups := map[string][]map[string]any{}
	for _, e := range entries {
		ts := time.UnixMilli(toInt64(e["ts"]))
		groups[weekStamp(ts)] = append(groups[weekStamp(ts)], e)
	}

	var firstErr error
	for stamp, group := range groups {
		ts := time.UnixMilli(toInt64(group[0]["ts"]))
		path := filePathFor(a.BaseDir, ref, ts, a.MaxPathSegmentLength, a.Ext)
		if err := a.appendLines(ctx, path, group); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", ErrArchive, err)
			}
			continue
		}
		a.markWritten(ref, stamp)
	}

	a.runRetention(ctx, ref)
	return firstErr
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func (a *Archive) markWritten(ref, stamp string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.writtenWeeks[ref]
	if !ok {
		set = make(map[string]bool)
		a.writtenWeeks[ref] = set
	}
	set[stamp] = true
}

// appendLines marshals each entry to a JSON line (preserving Map
// markers via codec) and appends them to path, trimming any trailing
// whitespace from existing content first.
func (a *Archive) appendLines(ctx context.Context, path string, entries []map[string]any) error {
	var buf bytes.Buffer
	for _, e := range entries {
		line, err := codec.Encode(e)
		if err != nil {
			return fmt.Errorf("msgarchive: encode entry: %w", err)
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	if a.backend.SupportsAppend() {
		return a.backend.AppendFile(ctx, path, buf.Bytes())
	}

	existing, err := a.backend.ReadFile(ctx, path)
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	trimmed := bytes.TrimRight(existing, "\r\n\t ")
	var out bytes.Buffer
	out.Write(trimmed)
	if trimmed != nil {
		out.WriteByte('\n')
	}
	out.Write(buf.Bytes())
	return a.backend.WriteFile(ctx, path, out.Bytes())
}

// runRetention deletes segments for ref older than the current week
// plus KeepPreviousWeeks previous weeks, among the weeks this process
// has itself written (the archive tracks no separate directory
// listing capability; this mirrors the teacher's in-memory per-ref
// state map rather than adding filesystem enumeration).
func (a *Archive) runRetention(ctx context.Context, ref string) {
	now := a.Clock.Now()
	keep := make(map[string]bool, a.KeepPreviousWeeks+1)
	cur := weekStart(now)
	for i := 0; i <= a.KeepPreviousWeeks; i++ {
		keep[cur.AddDate(0, 0, -7*i).Format("20060102")] = true
	}

	a.mu.Lock()
	set := a.writtenWeeks[ref]
	var stale []string
	for stamp := range set {
		if !keep[stamp] {
			stale = append(stale, stamp)
		}
	}
	a.mu.Unlock()
	if len(stale) == 0 {
		return
	}
	sort.Strings(stale)

	for _, stamp := range stale {
		ts, err := time.ParseInLocation("20060102", stamp, now.Location())
		if err != nil {
			continue
		}
		path := filePathFor(a.BaseDir, ref, ts, a.MaxPathSegmentLength, a.Ext)
		if err := a.backend.DeleteFile(ctx, path); err != nil {
			a.Logger.Warn("msgarchive: retention delete failed", "ref", ref, "path", path, "error", err)
			continue
		}
		a.mu.Lock()
		delete(a.writtenWeeks[ref], stamp)
		a.mu.Unlock()
	}
}

// FlushAll forces an immediate flush of every ref with pending entries,
// waiting for all of them to complete.
func (a *Archive) FlushAll(ctx context.Context) {
	a.mu.Lock()
	refs := make([]string, 0, len(a.pending))
	for ref := range a.pending {
		refs = append(refs, ref)
	}
	a.mu.Unlock()

	var wg sync.WaitGroup
	for _, ref := range refs {
		ref := ref
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.flushRef(ctx, ref)
		}()
	}
	wg.Wait()
}
