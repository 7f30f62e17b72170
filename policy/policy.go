// Package policy implements C7: the quiet-hours notification policy as
// a set of pure functions over a message, the current time, and a
// quiet-hours configuration. Nothing here holds state or talks to
// storage — store (C8) is the only caller, wiring these functions into
// its due-notification scheduler.
package policy

import (
	"time"
)

// QuietHours is the per-instance quiet-hours configuration. StartMin and
// EndMin are minutes-since-local-midnight (0-1439); a window with
// StartMin > EndMin crosses midnight.
type QuietHours struct {
	Enabled  bool  `yaml:"enabled" toml:"enabled"`
	StartMin int   `yaml:"startMin" toml:"start_min"`
	EndMin   int   `yaml:"endMin" toml:"end_min"`
	MaxLevel int   `yaml:"maxLevel" toml:"max_level"`
	SpreadMs int64 `yaml:"spreadMs" toml:"spread_ms"`
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// IsInQuietHours reports whether now falls inside qh's window, in local
// wall-clock minutes. A non-crossing window [start, end) is a normal
// half-open interval; a crossing window (start > end) is inside iff
// now's minute is at or after start, or before end.
func IsInQuietHours(now time.Time, qh QuietHours) bool {
	if !qh.Enabled {
		return false
	}
	m := minuteOfDay(now)
	if qh.StartMin <= qh.EndMin {
		return m >= qh.StartMin && m < qh.EndMin
	}
	return m >= qh.StartMin || m < qh.EndMin
}

// GetQuietHoursEndTs returns the next timestamp at which the quiet-hours
// window now sits inside of ends, or the zero Time if now is outside the
// window (including when quiet hours are disabled).
func GetQuietHoursEndTs(now time.Time, qh QuietHours) time.Time {
	if !IsInQuietHours(now, qh) {
		return time.Time{}
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := midnight.Add(time.Duration(qh.EndMin) * time.Minute)
	if qh.StartMin <= qh.EndMin {
		return endOfDay
	}
	// Crossing window: if now's minute is still in the pre-midnight leg
	// (>= start), the end falls tomorrow morning; if it's already in the
	// post-midnight leg (< end), the end is today.
	if minuteOfDay(now) >= qh.StartMin {
		return endOfDay.Add(24 * time.Hour)
	}
	return endOfDay
}

// RescheduleInput bundles the collaborators ComputeQuietRescheduleTs
// needs: now, the quiet-hours config, and a source of uniform randomness
// in [0, 1) (injected so tests are deterministic; store wires a real
// math/rand source in production).
type RescheduleInput struct {
	Now    time.Time
	QH     QuietHours
	Random func() float64
}

// ComputeQuietRescheduleTs returns the quiet-hours end timestamp plus a
// uniformly-distributed jitter in [0, qh.SpreadMs) milliseconds, so
// repeated reschedules across many suppressed messages don't all fire in
// the same instant. Returns the zero Time if now is outside the window.
func ComputeQuietRescheduleTs(in RescheduleInput) time.Time {
	end := GetQuietHoursEndTs(in.Now, in.QH)
	if end.IsZero() {
		return time.Time{}
	}
	if in.QH.SpreadMs <= 0 || in.Random == nil {
		return end
	}
	jitterMs := time.Duration(in.Random()*float64(in.QH.SpreadMs)) * time.Millisecond
	return end.Add(jitterMs)
}

// DueMessage is the minimal view of a message ShouldSuppressDue needs,
// kept independent of the message package so policy has no import-time
// dependency on the message model.
type DueMessage struct {
	Level         int
	NotifiedAtDue int64 // epoch ms of the last "due" notification, 0 if never notified
}

// ShouldSuppressDue reports whether a due-notification firing for msg at
// now should be suppressed and rescheduled rather than dispatched: only
// when quiet hours are active, the message's level is at or below the
// quiet-hours ceiling, AND this is a repeat (the message was already
// notified at least once) — the first notification always dispatches,
// even during quiet hours.
func ShouldSuppressDue(msg DueMessage, now time.Time, qh QuietHours) bool {
	if !IsInQuietHours(now, qh) {
		return false
	}
	if msg.Level > qh.MaxLevel {
		return false
	}
	return msg.NotifiedAtDue > 0
}
