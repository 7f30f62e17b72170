package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/stacknerd/msghub/message"
)

// Where is the safe, whitelisted predicate queryMessages accepts: every
// non-empty field is an "IN" filter; empty means "no restriction on
// this field". All populated fields are ANDed together.
type Where struct {
	KindIn         []string
	StateIn        []string
	LevelIn        []int
	OriginSystemIn []string
	LocationIn     []string
}

// SortField names one sort key and its direction.
type SortField struct {
	Field string // title | createdAt | updatedAt | percentage | kind | state | level | originSystem | location
	Dir   string // "asc" | "desc"
}

// Page is 1-based paging input. Size==0 means "return everything, one page".
type Page struct {
	Index int
	Size  int
}

// Query bundles queryMessages's full input.
type Query struct {
	Where Where
	Page  Page
	Sort  []SortField
}

// Meta carries generation-time metadata alongside a query result.
type Meta struct {
	GeneratedAt time.Time
	TZ          string
}

// Result is queryMessages's return value.
type Result struct {
	Items []*message.Message
	Total int
	Pages int
	Meta  Meta
}

// QueryMessages filters, sorts and paginates the current list.
func (s *Store) QueryMessages(q Query) (Result, error) {
	now := s.Clock.Now()
	all := s.GetMessages()

	filtered := make([]*message.Message, 0, len(all))
	for _, m := range all {
		if matchesWhere(m, q.Where) {
			filtered = append(filtered, m)
		}
	}

	if err := sortMessages(filtered, q.Sort); err != nil {
		return Result{}, err
	}

	total := len(filtered)
	size := q.Page.Size
	if size == 0 {
		return Result{
			Items: filtered,
			Total: total,
			Pages: 1,
			Meta:  Meta{GeneratedAt: now, TZ: now.Location().String()},
		}, nil
	}
	if size < 1 {
		return Result{}, fmt.Errorf("store: page size must be >= 1 (or 0 for unpaged)")
	}
	index := q.Page.Index
	if index < 1 {
		index = 1
	}
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}

	start := (index - 1) * size
	if start >= total {
		return Result{Items: []*message.Message{}, Total: total, Pages: pages, Meta: Meta{GeneratedAt: now, TZ: now.Location().String()}}, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return Result{
		Items: filtered[start:end],
		Total: total,
		Pages: pages,
		Meta:  Meta{GeneratedAt: now, TZ: now.Location().String()},
	}, nil
}

func matchesWhere(m *message.Message, w Where) bool {
	if len(w.KindIn) > 0 && !containsStr(w.KindIn, string(m.Kind)) {
		return false
	}
	if len(w.StateIn) > 0 && !containsStr(w.StateIn, string(m.Lifecycle.State)) {
		return false
	}
	if len(w.LevelIn) > 0 && !containsInt(w.LevelIn, int(m.Level)) {
		return false
	}
	if len(w.OriginSystemIn) > 0 && !containsStr(w.OriginSystemIn, m.Origin.System) {
		return false
	}
	if len(w.LocationIn) > 0 && !containsStr(w.LocationIn, m.Details.Location) {
		return false
	}
	return true
}

func containsStr(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// sortMessages sorts in-place by the requested fields, stably, with
// ties always broken by ref last.
func sortMessages(items []*message.Message, fields []SortField) error {
	for _, f := range fields {
		switch f.Field {
		case "title", "createdAt", "updatedAt", "percentage", "kind", "state", "level", "originSystem", "location":
		default:
			return fmt.Errorf("store: unsortable field %q", f.Field)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, f := range fields {
			c := compareField(items[i], items[j], f.Field)
			if c == 0 {
				continue
			}
			if f.Dir == "desc" {
				return c > 0
			}
			return c < 0
		}
		return items[i].Ref < items[j].Ref
	})
	return nil
}

func compareField(a, b *message.Message, field string) int {
	switch field {
	case "title":
		return compareStr(a.Title, b.Title)
	case "createdAt":
		return compareInt64(a.Timing.CreatedAt, b.Timing.CreatedAt)
	case "updatedAt":
		return compareInt64(a.Timing.UpdatedAt, b.Timing.UpdatedAt)
	case "percentage":
		return compareInt64(int64(a.Progress.Percentage), int64(b.Progress.Percentage))
	case "kind":
		return compareStr(string(a.Kind), string(b.Kind))
	case "state":
		return compareStr(string(a.Lifecycle.State), string(b.Lifecycle.State))
	case "level":
		return compareInt64(int64(a.Level), int64(b.Level))
	case "originSystem":
		return compareStr(a.Origin.System, b.Origin.System)
	case "location":
		return compareStr(a.Details.Location, b.Details.Location)
	default:
		return 0
	}
}

func compareStr(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
