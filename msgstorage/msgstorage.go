// Package msgstorage implements C4: single whole-document persistence
// with throttled, coalesced writes, last-writer-wins semantics and
// best-effort atomic replace via tmp+rename.
package msgstorage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/logging"
	"github.com/stacknerd/msghub/opqueue"
	"github.com/stacknerd/msghub/storage"
)

// PersistMode records which write strategy was used for the last
// successful persist.
type PersistMode string

const (
	ModeOverride PersistMode = "override"
	ModeRename   PersistMode = "rename"
	ModeFallback PersistMode = "fallback"
)

// Status is a snapshot of MsgStorage's persistence state.
type Status struct {
	FilePath           string
	LastPersistedAt    time.Time
	LastPersistedBytes int
	LastPersistedMode  PersistMode
	Pending            bool
}

// Storage persists a single JSON document at FilePath, coalescing
// concurrent writes within WriteIntervalMs into one physical write: only
// the most recent value survives, and the Futures of every caller within
// the window are resolved by that one flush.
type Storage struct {
	Backend         storage.Backend
	FilePath        string
	WriteIntervalMs int
	Clock           clock.Clock
	Logger          logging.Logger

	queue *opqueue.Queue

	mu           sync.Mutex
	timer        *time.Timer
	pendingValue any
	hasPending   bool
	waiters      []func(error)
	waitersFut   []*opqueue.Future

	status Status
}

// New builds a Storage. Call Init before first use.
func New(backend storage.Backend, filePath string, writeIntervalMs int, c clock.Clock, logger logging.Logger) *Storage {
	if c == nil {
		c = clock.Real{}
	}
	if logger == nil {
		logger = logging.Noop{}
	}
	return &Storage{
		Backend:         backend,
		FilePath:        filePath,
		WriteIntervalMs: writeIntervalMs,
		Clock:           c,
		Logger:          logger,
		queue:           opqueue.New(),
		status:          Status{FilePath: filePath},
	}
}

// Init ensures the backend root exists.
func (s *Storage) Init(ctx context.Context) error {
	if err := s.Backend.Init(ctx); err != nil {
		return fmt.Errorf("msgstorage: init: %w", err)
	}
	s.Logger.Info("msgstorage initialized", "path", s.FilePath)
	return nil
}

// ReadJSON reads and unmarshals the document; on missing/empty/invalid
// content it returns fallback instead of erroring.
func (s *Storage) ReadJSON(ctx context.Context, fallback any) (any, error) {
	data, err := s.Backend.ReadFile(ctx, s.FilePath)
	if err != nil {
		if err == storage.ErrNotFound {
			return fallback, nil
		}
		s.Logger.Error("msgstorage read failed, using fallback", "path", s.FilePath, "error", err)
		return fallback, nil
	}
	if len(data) == 0 {
		return fallback, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		s.Logger.Error("msgstorage invalid json, using fallback", "path", s.FilePath, "error", err)
		return fallback, nil
	}
	return v, nil
}

// WriteJSON schedules value for persistence. When WriteIntervalMs==0 the
// write is submitted immediately. Otherwise only the most recent value
// within the interval is kept, and each caller's Future is resolved by
// the same single timer-triggered flush.
func (s *Storage) WriteJSON(ctx context.Context, value any) *opqueue.Future {
	if s.WriteIntervalMs == 0 {
		return s.enqueueWrite(ctx, value)
	}

	fut, resolve := opqueue.NewFuture()

	s.mu.Lock()
	s.pendingValue = value
	s.hasPending = true
	s.status.Pending = true
	s.waiters = append(s.waiters, resolve)
	s.waitersFut = append(s.waitersFut, fut)
	if s.timer == nil {
		s.timer = time.AfterFunc(time.Duration(s.WriteIntervalMs)*time.Millisecond, func() {
			s.flush(ctx)
		})
	}
	s.mu.Unlock()

	return fut
}

// flush performs the coalesced write and resolves every waiter currently
// registered for the pending value.
func (s *Storage) flush(ctx context.Context) {
	s.mu.Lock()
	s.timer = nil
	value := s.pendingValue
	has := s.hasPending
	waiters := s.waiters
	s.waiters = nil
	s.waitersFut = nil
	s.hasPending = false
	s.mu.Unlock()

	if !has {
		for _, resolve := range waiters {
			resolve(nil)
		}
		return
	}

	qfut := s.enqueueWrite(ctx, value)
	err := qfut.Wait()
	for _, resolve := range waiters {
		resolve(err)
	}
}

// FlushPending cancels any pending timer and writes the latest value
// immediately, or resolves with the queue tail if nothing is pending.
func (s *Storage) FlushPending(ctx context.Context) *opqueue.Future {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	has := s.hasPending
	s.mu.Unlock()

	if has {
		s.flush(ctx)
	}

	if tail := s.queue.Current(); tail != nil {
		return tail
	}
	done, resolve := opqueue.NewFuture()
	resolve(nil)
	return done
}

func (s *Storage) enqueueWrite(ctx context.Context, value any) *opqueue.Future {
	return s.queue.Submit(func() error {
		return s.writeNow(ctx, value)
	})
}

func (s *Storage) writeNow(ctx context.Context, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("msgstorage: marshal: %w", err)
	}

	mode, err := s.persist(ctx, data)
	if err != nil {
		s.Logger.Error("msgstorage write failed", "path", s.FilePath, "error", err)
		return err
	}

	s.mu.Lock()
	s.status.LastPersistedAt = s.Clock.Now()
	s.status.LastPersistedBytes = len(data)
	s.status.LastPersistedMode = mode
	s.status.Pending = s.hasPending
	s.mu.Unlock()
	return nil
}

// persist writes data using atomic tmp+rename when the backend supports
// it, falling back to a direct overwrite on any failure.
func (s *Storage) persist(ctx context.Context, data []byte) (PersistMode, error) {
	if !s.Backend.SupportsRename() {
		if err := s.Backend.WriteFile(ctx, s.FilePath, data); err != nil {
			return "", fmt.Errorf("msgstorage: write: %w", err)
		}
		return ModeOverride, nil
	}

	tmp := s.FilePath + ".tmp"
	defer func() { _ = s.Backend.DeleteFile(ctx, tmp) }()

	if err := s.Backend.WriteFile(ctx, tmp, data); err != nil {
		if werr := s.Backend.WriteFile(ctx, s.FilePath, data); werr != nil {
			return "", fmt.Errorf("msgstorage: write: %w", werr)
		}
		return ModeFallback, nil
	}

	_ = s.Backend.DeleteFile(ctx, s.FilePath)
	if ok, rerr := s.Backend.Rename(ctx, tmp, s.FilePath); ok && rerr == nil {
		return ModeRename, nil
	}

	if werr := s.Backend.WriteFile(ctx, s.FilePath, data); werr != nil {
		return "", fmt.Errorf("msgstorage: write: %w", werr)
	}
	return ModeFallback, nil
}

// GetStatus returns a snapshot of the storage's persistence status.
func (s *Storage) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Pending = s.hasPending
	return st
}
