package stats

import "github.com/stacknerd/msghub/message"

// CurrentSummary groups the store's live list by every dimension
// spec.md §4.9 names for the "current" snapshot section.
type CurrentSummary struct {
	Total          int
	ByKind         map[string]int
	ByState        map[string]int
	ByLevel        map[int]int
	ByOriginSystem map[string]int
}

func summarizeCurrent(msgs []*message.Message) CurrentSummary {
	cs := CurrentSummary{
		ByKind:         make(map[string]int),
		ByState:        make(map[string]int),
		ByLevel:        make(map[int]int),
		ByOriginSystem: make(map[string]int),
	}
	for _, m := range msgs {
		cs.Total++
		cs.ByKind[string(m.Kind)]++
		cs.ByState[string(m.Lifecycle.State)]++
		cs.ByLevel[int(m.Level)]++
		cs.ByOriginSystem[m.Origin.System]++
	}
	return cs
}
