// Package store implements C8: the authoritative in-memory message
// list, dispatch to the notification plugin hosts, and the single
// due-notification scheduler. Grounded on the teacher's
// ObservableApplication (application_observer.go): one aggregate lock
// around mutation + a fire-and-forget notify step observing
// post-mutation state, generalized from "observers of the app" to
// "notifier plugin hosts of the message store".
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/events"
	"github.com/stacknerd/msghub/logging"
	"github.com/stacknerd/msghub/message"
	"github.com/stacknerd/msghub/msgarchive"
	"github.com/stacknerd/msghub/msgstorage"
	"github.com/stacknerd/msghub/policy"
)

// Notifier is the narrow surface the store needs from the C10/C11
// plugin-host layer. *plugins.NotifyRegistry implements this; store never
// imports plugins, avoiding an import cycle (plugins depends on
// store/hostapi, not the reverse).
type Notifier interface {
	Dispatch(ctx context.Context, eventType string, messages []*message.Message)
}

// StatsRecorder is the narrow surface the store needs from C9.
// stats.Tracker implements this.
type StatsRecorder interface {
	RecordClosed(msg *message.Message)
}

// RemoveOptions controls removeMessage behavior. Currently empty; kept
// as a struct (rather than no parameter) because the spec names
// "opts" explicitly and a future option (e.g. soft-delete) would
// otherwise break every call site.
type RemoveOptions struct{}

// Config holds the store's tunables.
type Config struct {
	QuietHours policy.QuietHours
	// Random produces the jitter source for quiet-hours reschedule.
	// Defaults to math/rand's package-level Float64 if nil.
	Random func() float64
}

// Store is the C8 implementation.
type Store struct {
	Factory *message.Factory
	Storage *msgstorage.Storage
	Archive *msgarchive.Archive
	Notify  Notifier
	Stats   StatsRecorder
	Clock   clock.Clock
	Logger  logging.Logger
	Config  Config

	mu       sync.Mutex
	fullList []*message.Message
	byRef    map[string]*message.Message
	dueTimer *time.Timer
}

// New builds a Store. Call Init to load any persisted list before use.
func New(factory *message.Factory, storage *msgstorage.Storage, archive *msgarchive.Archive, notify Notifier, stats StatsRecorder, c clock.Clock, logger logging.Logger, cfg Config) *Store {
	if c == nil {
		c = clock.Real{}
	}
	if logger == nil {
		logger = logging.Noop{}
	}
	return &Store{
		Factory: factory,
		Storage: storage,
		Archive: archive,
		Notify:  notify,
		Stats:   stats,
		Clock:   c,
		Logger:  logger,
		Config:  cfg,
		byRef:   make(map[string]*message.Message),
	}
}

// Init loads the persisted list (if any) and arms the due scheduler.
// ReadJSON decodes through plain encoding/json into any, so a persisted
// array surfaces as []any of map[string]any, not *message.Message; each
// element is re-marshaled through message.Message's own JSON tags (and
// codec.Map's UnmarshalJSON for Metrics) to recover the concrete type.
func (s *Store) Init(ctx context.Context) error {
	raw, err := s.Storage.ReadJSON(ctx, []any{})
	if err != nil {
		return fmt.Errorf("store: init: %w", err)
	}
	items, _ := raw.([]any)
	s.mu.Lock()
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			s.Logger.Error("store: init: re-marshal failed", "error", err)
			continue
		}
		m := &message.Message{}
		if err := json.Unmarshal(data, m); err != nil {
			s.Logger.Error("store: init: decode failed", "error", err)
			continue
		}
		s.fullList = append(s.fullList, m)
		s.byRef[m.Ref] = m
	}
	s.mu.Unlock()
	s.recomputeDueTimer()
	return nil
}

var (
	// ErrNotFound reports an operation against an unknown ref.
	ErrNotFound = fmt.Errorf("store: message not found")
	// ErrDuplicateRef reports addMessage called with an already-known ref.
	ErrDuplicateRef = fmt.Errorf("store: ref already exists")
)

// AddMessage validates input via the factory, inserts it, schedules
// persistence/archival, and dispatches "created".
func (s *Store) AddMessage(ctx context.Context, input map[string]any) (*message.Message, error) {
	now := s.Clock.Now()
	m, err := s.Factory.CreateMessage(input, now)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, exists := s.byRef[m.Ref]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRef, m.Ref)
	}
	s.fullList = append(s.fullList, m)
	s.byRef[m.Ref] = m
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.Storage.WriteJSON(ctx, snapshot)
	s.Archive.AppendSnapshot(ctx, m.Ref, m.Clone(), true)
	s.dispatch(ctx, events.TypeCreated, m)
	s.recomputeDueTimer()
	return m.Clone(), nil
}

// UpdateMessage resolves ref, applies patch via the factory, and
// dispatches "updated". When the message transitions into the closed
// state, Stats.RecordClosed is invoked.
func (s *Store) UpdateMessage(ctx context.Context, ref string, patch map[string]any) (*message.Message, error) {
	return s.mutateViaPatch(ctx, ref, patch, func(ctx context.Context, existing, updated *message.Message) {
		s.Archive.AppendPatch(ctx, ref, patch, existing.Clone(), updated.Clone())
	})
}

// ApplyAction resolves ref, applies the state-transition patch an
// engage host derived from a message.Action, archives it as an
// "action" event (not "patch" — actions and patches are distinct
// archive event kinds per the archive's taxonomy), and dispatches
// "updated". Used only by hostapi's action facade: store has no notion
// of ActionType itself, only of mutate-archive-dispatch.
func (s *Store) ApplyAction(ctx context.Context, ref, actionID string, patch map[string]any) (*message.Message, error) {
	return s.mutateViaPatch(ctx, ref, patch, func(ctx context.Context, existing, updated *message.Message) {
		payload := map[string]any{}
		for k, v := range patch {
			payload[k] = v
		}
		s.Archive.AppendAction(ctx, ref, actionID, payload)
	})
}

// mutateViaPatch is UpdateMessage/ApplyAction's shared core: resolve,
// apply patch, replace, persist, dispatch, record stats on a
// closed-transition. archiveFn records the caller-specific archive
// event once the mutation has been applied and replaced in the list.
func (s *Store) mutateViaPatch(ctx context.Context, ref string, patch map[string]any, archiveFn func(ctx context.Context, existing, updated *message.Message)) (*message.Message, error) {
	now := s.Clock.Now()

	s.mu.Lock()
	existing, ok := s.byRef[ref]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	s.mu.Unlock()

	updated, err := s.Factory.ApplyPatch(existing, patch, false, now)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.replaceLocked(updated)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.Storage.WriteJSON(ctx, snapshot)
	archiveFn(ctx, existing, updated)
	s.dispatch(ctx, events.TypeUpdated, updated)

	if existing.Lifecycle.State != message.StateClosed && updated.Lifecycle.State == message.StateClosed && s.Stats != nil {
		s.Stats.RecordClosed(updated.Clone())
	}

	s.recomputeDueTimer()
	return updated.Clone(), nil
}

// AddOrUpdateMessage adds input if its ref is unknown, else applies
// input as a patch to the existing message.
func (s *Store) AddOrUpdateMessage(ctx context.Context, input map[string]any) (*message.Message, error) {
	ref, _ := input["ref"].(string)
	if ref != "" {
		s.mu.Lock()
		_, exists := s.byRef[ref]
		s.mu.Unlock()
		if exists {
			return s.UpdateMessage(ctx, ref, input)
		}
	}
	return s.AddMessage(ctx, input)
}

// RemoveMessage deletes ref, persists the new list, archives a delete
// event with the final snapshot, and dispatches "deleted". Returns
// false if ref was unknown.
func (s *Store) RemoveMessage(ctx context.Context, ref string, _ RemoveOptions) (bool, error) {
	s.mu.Lock()
	existing, ok := s.byRef[ref]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.byRef, ref)
	for i, m := range s.fullList {
		if m.Ref == ref {
			s.fullList = append(s.fullList[:i], s.fullList[i+1:]...)
			break
		}
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.Storage.WriteJSON(ctx, snapshot)
	s.Archive.AppendDelete(ctx, ref, existing.Clone())
	s.dispatch(ctx, events.TypeDeleted, existing)
	s.recomputeDueTimer()
	return true, nil
}

// GetMessageByRef returns a defensive copy of the message, or nil if
// unknown.
func (s *Store) GetMessageByRef(ref string) *message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byRef[ref]
	if !ok {
		return nil
	}
	return m.Clone()
}

// GetMessages returns defensive copies of every message in the store.
func (s *Store) GetMessages() []*message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*message.Message, len(s.fullList))
	for i, m := range s.fullList {
		out[i] = m.Clone()
	}
	return out
}

// CompleteAfterCauseEliminated transitions ref to closed, clearing
// notifyAt and setting progress to 100%, per the resolved open
// question (finishedAt is left untouched).
func (s *Store) CompleteAfterCauseEliminated(ctx context.Context, ref string) (*message.Message, error) {
	patch := map[string]any{
		"lifecycle": map[string]any{"state": string(message.StateClosed)},
		"timing":    map[string]any{"notifyAt": nil},
		"progress":  map[string]any{"percentage": 100},
	}
	return s.UpdateMessage(ctx, ref, patch)
}

func (s *Store) snapshotLocked() []any {
	out := make([]any, len(s.fullList))
	for i, m := range s.fullList {
		out[i] = m
	}
	return out
}

func (s *Store) replaceLocked(updated *message.Message) {
	s.byRef[updated.Ref] = updated
	for i, m := range s.fullList {
		if m.Ref == updated.Ref {
			s.fullList[i] = updated
			return
		}
	}
}

func (s *Store) dispatch(ctx context.Context, eventType string, msgs ...*message.Message) {
	if s.Notify == nil {
		return
	}
	s.Notify.Dispatch(ctx, eventType, msgs)
}
