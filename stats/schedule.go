package stats

import (
	"time"

	"github.com/stacknerd/msghub/message"
)

// scheduleWindowNames lists every bucket summarizeSchedule computes, in
// the order spec.md §4.9 names them.
var scheduleWindowNames = []string{
	"overdue", "today", "tomorrow", "next7Days",
	"thisWeek", "thisWeekFromToday", "thisMonth", "thisMonthFromToday",
}

// ScheduleWindow is one named schedule bucket: a count plus a per-kind
// breakdown.
type ScheduleWindow struct {
	Count  int
	ByKind map[string]int
}

func newScheduleWindow() ScheduleWindow {
	return ScheduleWindow{ByKind: make(map[string]int)}
}

func (w *ScheduleWindow) add(kind message.Kind) {
	w.Count++
	w.ByKind[string(kind)]++
}

// ScheduleSummary is the "schedule" snapshot section.
type ScheduleSummary struct {
	Overdue            ScheduleWindow
	Today              ScheduleWindow
	Tomorrow           ScheduleWindow
	Next7Days          ScheduleWindow
	ThisWeek           ScheduleWindow
	ThisWeekFromToday  ScheduleWindow
	ThisMonth          ScheduleWindow
	ThisMonthFromToday ScheduleWindow
}

// startOfDay truncates t to local midnight.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday-midnight that starts t's ISO week.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// summarizeSchedule buckets msgs with a domain due time into the
// windows spec.md §4.9 names, excluding quasi-deleted lifecycle states.
// A message already past due (overdue) is never double-counted into
// today/tomorrow/etc: each bucket's lower bound is max(its window
// start, now), except overdue itself.
func summarizeSchedule(msgs []*message.Message, now time.Time) ScheduleSummary {
	sod := startOfDay(now)
	tomorrowStart := sod.AddDate(0, 0, 1)
	dayAfterTomorrow := sod.AddDate(0, 0, 2)
	weekStart := startOfWeek(now)
	weekEnd := weekStart.AddDate(0, 0, 7)
	monthStart := startOfMonth(now)
	monthEnd := monthStart.AddDate(0, 1, 0)
	next7End := now.AddDate(0, 0, 7)

	s := ScheduleSummary{
		Overdue:            newScheduleWindow(),
		Today:              newScheduleWindow(),
		Tomorrow:           newScheduleWindow(),
		Next7Days:          newScheduleWindow(),
		ThisWeek:           newScheduleWindow(),
		ThisWeekFromToday:  newScheduleWindow(),
		ThisMonth:          newScheduleWindow(),
		ThisMonthFromToday: newScheduleWindow(),
	}

	for _, m := range msgs {
		if message.QuasiDeletedStates[m.Lifecycle.State] {
			continue
		}
		due, ok := m.DueTime()
		if !ok {
			continue
		}

		if due.Before(now) {
			s.Overdue.add(m.Kind)
			continue
		}
		if due.Before(tomorrowStart) {
			s.Today.add(m.Kind)
		} else if due.Before(dayAfterTomorrow) {
			s.Tomorrow.add(m.Kind)
		}
		if due.Before(next7End) {
			s.Next7Days.add(m.Kind)
		}
		if !due.Before(weekStart) && due.Before(weekEnd) {
			s.ThisWeek.add(m.Kind)
		}
		if due.Before(weekEnd) {
			s.ThisWeekFromToday.add(m.Kind)
		}
		if !due.Before(monthStart) && due.Before(monthEnd) {
			s.ThisMonth.add(m.Kind)
		}
		if due.Before(monthEnd) {
			s.ThisMonthFromToday.add(m.Kind)
		}
	}
	return s
}

// DoneSummary is the "done" snapshot section: summed rollup counters
// over today/this-week/this-month, plus the rollup's lastClosedAt.
type DoneSummary struct {
	Today        int
	ThisWeek     int
	ThisMonth    int
	LastClosedAt int64
}

func summarizeDone(rollup Rollup, now time.Time) DoneSummary {
	todayKey := now.Format("2006-01-02")
	weekStart := startOfWeek(now)
	monthKey := now.Format("2006-01")

	d := DoneSummary{LastClosedAt: rollup.LastClosedAt}
	for key, day := range rollup.Days {
		t, err := time.ParseInLocation("2006-01-02", key, now.Location())
		if err != nil {
			continue
		}
		if key == todayKey {
			d.Today += day.Total
		}
		if !t.Before(weekStart) && t.Before(weekStart.AddDate(0, 0, 7)) {
			d.ThisWeek += day.Total
		}
		if key[:7] == monthKey {
			d.ThisMonth += day.Total
		}
	}
	return d
}
