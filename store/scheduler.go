package store

import (
	"context"
	"math/rand"
	"time"

	"github.com/stacknerd/msghub/events"
	"github.com/stacknerd/msghub/message"
	"github.com/stacknerd/msghub/policy"
)

// recomputeDueTimer arms a single timer for the nearest future
// timing.notifyAt across the list, canceling any previous one. Called
// after every list mutation, per spec.md §4.6.
func (s *Store) recomputeDueTimer() {
	s.mu.Lock()
	if s.dueTimer != nil {
		s.dueTimer.Stop()
		s.dueTimer = nil
	}
	var next time.Time
	found := false
	for _, m := range s.fullList {
		if m.Timing.NotifyAt <= 0 {
			continue
		}
		t := time.UnixMilli(m.Timing.NotifyAt)
		if !found || t.Before(next) {
			next = t
			found = true
		}
	}
	s.mu.Unlock()

	if !found {
		return
	}
	now := s.Clock.Now()
	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	s.dueTimer = time.AfterFunc(d, func() {
		s.fireDue(context.Background())
	})
	s.mu.Unlock()
}

// fireDue runs one sweep of the due scheduler: every message whose
// notifyAt has elapsed is either suppressed-and-rescheduled (quiet
// hours) or dispatched, per spec.md §4.6.
func (s *Store) fireDue(ctx context.Context) {
	now := s.Clock.Now()
	nowMS := now.UnixMilli()

	s.mu.Lock()
	var due []*message.Message
	for _, m := range s.fullList {
		if m.Timing.NotifyAt > 0 && m.Timing.NotifyAt <= nowMS {
			due = append(due, m)
		}
	}
	s.mu.Unlock()

	var toDispatch []*message.Message
	for _, m := range due {
		dueMsg := policy.DueMessage{Level: int(m.Level), NotifiedAtDue: m.Timing.NotifiedAt.Due}
		if policy.ShouldSuppressDue(dueMsg, now, s.Config.QuietHours) {
			reschedule := policy.ComputeQuietRescheduleTs(policy.RescheduleInput{
				Now:    now,
				QH:     s.Config.QuietHours,
				Random: s.randomSource(),
			})
			s.mutateTimingInternal(m.Ref, func(t *message.Timing) {
				if !reschedule.IsZero() {
					t.NotifyAt = reschedule.UnixMilli()
				}
			})
			continue
		}

		s.mutateTimingInternal(m.Ref, func(t *message.Timing) {
			t.NotifiedAt.Due = nowMS
			if t.RemindEvery > 0 {
				t.NotifyAt = nowMS + t.RemindEvery
			} else {
				t.NotifyAt = 0
			}
		})
		toDispatch = append(toDispatch, m)
	}

	for _, m := range toDispatch {
		s.dispatch(ctx, events.TypeDue, m)
	}

	if len(due) > 0 {
		s.mu.Lock()
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		s.Storage.WriteJSON(ctx, snapshot)
	}

	s.recomputeDueTimer()
}

// mutateTimingInternal applies a scheduler-owned timing mutation
// directly, bypassing the public factory patch path: these fields
// (notifiedAt bookkeeping, quiet-hours reschedule) are never part of
// the plugin-facing patch contract, so they don't go through
// ApplyPatch's validation/archival/updatedAt-bump machinery.
func (s *Store) mutateTimingInternal(ref string, mutate func(*message.Timing)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byRef[ref]
	if !ok {
		return
	}
	updated := existing.Clone()
	mutate(&updated.Timing)
	s.replaceLocked(updated)
}

func (s *Store) randomSource() func() float64 {
	if s.Config.Random != nil {
		return s.Config.Random
	}
	return rand.Float64
}
