// Package message implements the canonical Message model and MsgFactory
// (C6): creation/patch validation and field invariants.
package message

import (
	"time"

	"github.com/stacknerd/msghub/codec"
)

// Level is a severity level. The enumeration is open-ended but the
// factory only accepts the values in Levels.
type Level int

const (
	LevelSilly Level = 5
	LevelDebug Level = 10
	LevelInfo  Level = 20
	LevelWarn  Level = 30
	LevelError Level = 40
)

// Levels lists every accepted severity level.
var Levels = []Level{LevelSilly, LevelDebug, LevelInfo, LevelWarn, LevelError}

// Kind enumerates the message categories the factory accepts.
type Kind string

const (
	KindTask         Kind = "task"
	KindAppointment  Kind = "appointment"
	KindStatus       Kind = "status"
	KindShoppingList Kind = "shoppinglist"
)

// Kinds lists every accepted kind.
var Kinds = []Kind{KindTask, KindAppointment, KindStatus, KindShoppingList}

// OriginType enumerates who created a message.
type OriginType string

const (
	OriginManual     OriginType = "manual"
	OriginImport     OriginType = "import"
	OriginAutomation OriginType = "automation"
)

// LifecycleState enumerates the message's lifecycle states.
type LifecycleState string

const (
	StateOpen    LifecycleState = "open"
	StateAcked   LifecycleState = "acked"
	StateSnoozed LifecycleState = "snoozed"
	StateClosed  LifecycleState = "closed"
	StateDeleted LifecycleState = "deleted"
	StateExpired LifecycleState = "expired"
)

// QuasiDeletedStates are excluded from schedule statistics.
var QuasiDeletedStates = map[LifecycleState]bool{
	StateDeleted: true,
	StateExpired: true,
}

// AttachmentType whitelists attachment kinds.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentLink  AttachmentType = "link"
	AttachmentFile  AttachmentType = "file"
)

var attachmentTypes = map[AttachmentType]bool{
	AttachmentImage: true,
	AttachmentLink:  true,
	AttachmentFile:  true,
}

// ActionType whitelists action kinds.
type ActionType string

const (
	ActionAck     ActionType = "ack"
	ActionSnooze  ActionType = "snooze"
	ActionClose   ActionType = "close"
	ActionDismiss ActionType = "dismiss"
	ActionCustom  ActionType = "custom"
)

var actionTypes = map[ActionType]bool{
	ActionAck:     true,
	ActionSnooze:  true,
	ActionClose:   true,
	ActionDismiss: true,
	ActionCustom:  true,
}

// Origin identifies who/what created a message.
type Origin struct {
	Type   OriginType `json:"type"`
	System string     `json:"system"`
	ID     string     `json:"id,omitempty"`
}

// NotifiedAt tracks per-kind last-notification timestamps.
type NotifiedAt struct {
	Due     int64 `json:"due,omitempty"`
	Updated int64 `json:"updated,omitempty"`
}

// Timing holds every timestamp field on a Message. Epoch milliseconds
// throughout, matching the spec's "ts is plausible epoch ms" invariant.
type Timing struct {
	CreatedAt    int64      `json:"createdAt"`
	UpdatedAt    int64      `json:"updatedAt,omitempty"`
	DueAt        int64      `json:"dueAt,omitempty"`
	StartAt      int64      `json:"startAt,omitempty"`
	EndAt        int64      `json:"endAt,omitempty"`
	NotifyAt     int64      `json:"notifyAt,omitempty"`
	ExpiresAt    int64      `json:"expiresAt,omitempty"`
	RemindEvery  int64      `json:"remindEvery,omitempty"`
	TimeBudget   int64      `json:"timeBudget,omitempty"`
	Cooldown     int64      `json:"cooldown,omitempty"`
	NotifiedAt   NotifiedAt `json:"notifiedAt,omitempty"`
}

// Lifecycle holds the message's current state.
type Lifecycle struct {
	State          LifecycleState `json:"state"`
	StateChangedAt int64          `json:"stateChangedAt,omitempty"`
	StateChangedBy string         `json:"stateChangedBy,omitempty"`
}

// Details holds task/appointment-specific descriptive fields.
type Details struct {
	Location    string   `json:"location,omitempty"`
	Task        string   `json:"task,omitempty"`
	Tools       []string `json:"tools,omitempty"`
	Consumables []string `json:"consumables,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// ChannelFilter whitelists/excludes notification channels by glob
// pattern (e.g. "notify.*").
type ChannelFilter struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// Audience controls who/what a message is relevant to.
type Audience struct {
	Tags     []string      `json:"tags,omitempty"`
	Channels ChannelFilter `json:"channels,omitempty"`
}

// Progress tracks completion percentage and timestamps.
type Progress struct {
	Percentage int   `json:"percentage,omitempty"`
	StartedAt  int64 `json:"startedAt,omitempty"`
	FinishedAt int64 `json:"finishedAt,omitempty"`
}

// MetricEntry is one Metrics map value.
type MetricEntry struct {
	Val  any    `json:"val"`
	Unit string `json:"unit,omitempty"`
	TS   int64  `json:"ts"`
}

// Attachment is a typed, whitelisted attachment reference.
type Attachment struct {
	Type  AttachmentType `json:"type"`
	Value string         `json:"value"`
}

// Action is an available action on a message.
type Action struct {
	Type    ActionType     `json:"type"`
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ListItem is one shopping-list entry.
type ListItem struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
}

// Message is the canonical entity the store manages.
type Message struct {
	Ref          string       `json:"ref"`
	Title        string       `json:"title"`
	Text         string       `json:"text"`
	Level        Level        `json:"level"`
	Kind         Kind         `json:"kind"`
	Origin       Origin       `json:"origin"`
	Lifecycle    Lifecycle    `json:"lifecycle"`
	Timing       Timing       `json:"timing"`
	Details      Details      `json:"details,omitempty"`
	Audience     Audience     `json:"audience,omitempty"`
	Progress     Progress     `json:"progress,omitempty"`
	Dependencies []string     `json:"dependencies,omitempty"`
	Metrics      *codec.Map   `json:"metrics,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	Actions      []Action     `json:"actions,omitempty"`
	ListItems    []ListItem   `json:"listItems,omitempty"`
}

// Clone deep-copies m so callers never mutate a message owned by the
// store (defensive ownership, per spec §5).
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Dependencies = append([]string(nil), m.Dependencies...)
	cp.Details.Tools = append([]string(nil), m.Details.Tools...)
	cp.Details.Consumables = append([]string(nil), m.Details.Consumables...)
	cp.Audience.Tags = append([]string(nil), m.Audience.Tags...)
	cp.Audience.Channels.Include = append([]string(nil), m.Audience.Channels.Include...)
	cp.Audience.Channels.Exclude = append([]string(nil), m.Audience.Channels.Exclude...)
	cp.Attachments = append([]Attachment(nil), m.Attachments...)
	cp.Actions = make([]Action, len(m.Actions))
	for i, a := range m.Actions {
		a2 := a
		if a.Payload != nil {
			a2.Payload = make(map[string]any, len(a.Payload))
			for k, v := range a.Payload {
				a2.Payload[k] = v
			}
		}
		cp.Actions[i] = a2
	}
	cp.ListItems = append([]ListItem(nil), m.ListItems...)
	if m.Metrics != nil {
		nm := codec.NewMap()
		for _, k := range m.Metrics.Keys() {
			v, _ := m.Metrics.Get(k)
			nm.Set(k, v)
		}
		cp.Metrics = nm
	}
	return &cp
}

// DueTime returns the domain "due" timestamp used for schedule
// statistics: for appointments, StartAt if present else DueAt;
// otherwise DueAt if present else StartAt.
func (m *Message) DueTime() (time.Time, bool) {
	var ts int64
	if m.Kind == KindAppointment {
		if m.Timing.StartAt != 0 {
			ts = m.Timing.StartAt
		} else {
			ts = m.Timing.DueAt
		}
	} else {
		if m.Timing.DueAt != 0 {
			ts = m.Timing.DueAt
		} else {
			ts = m.Timing.StartAt
		}
	}
	if ts == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ts), true
}

func epochMS(t time.Time) int64 { return t.UnixMilli() }
