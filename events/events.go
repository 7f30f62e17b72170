// Package events builds the CloudEvents envelope the store (C8) uses to
// notify plugin hosts of message lifecycle changes, grounded on the
// teacher's Observer/Subject CloudEvents integration
// (observer_cloudevents.go) but narrowed to msghub's fixed event
// vocabulary instead of the teacher's open module/application taxonomy.
package events

import (
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Lifecycle event types, in reverse-domain notation like the teacher's
// EventTypeModuleRegistered etc.
const (
	TypeCreated = "msghub.message.created"
	TypeUpdated = "msghub.message.updated"
	TypeDeleted = "msghub.message.deleted"
	TypeDue     = "msghub.message.due"
	TypeExpired = "msghub.message.expired"
)

// ValidTypes is the enumerated set plugin hosts validate an event name
// against before dispatch (spec.md §4.8: "Hosts validate the event name
// against an enumerated set").
var ValidTypes = map[string]bool{
	TypeCreated: true,
	TypeUpdated: true,
	TypeDeleted: true,
	TypeDue:     true,
	TypeExpired: true,
}

// IsValidType reports whether t is one of the recognized lifecycle
// event names.
func IsValidType(t string) bool { return ValidTypes[t] }

// NewLifecycleEvent builds a CloudEvent carrying messages as its JSON
// data payload. Messages are always delivered as an array — even a
// single-message notification — so plugin handlers never need two code
// paths (spec.md §4.8).
func NewLifecycleEvent(eventType, source string, messages []any) cloudevents.Event {
	evt := cloudevents.NewEvent()
	evt.SetID(newEventID())
	evt.SetSource(source)
	evt.SetType(eventType)
	evt.SetTime(time.Now())
	evt.SetSpecVersion(cloudevents.VersionV1)
	_ = evt.SetData(cloudevents.ApplicationJSON, messages)
	return evt
}

// NewLifecycleEventAt is NewLifecycleEvent with an explicit timestamp,
// for callers holding a clock.Clock seam rather than reaching for
// time.Now directly.
func NewLifecycleEventAt(eventType, source string, messages []any, ts time.Time) cloudevents.Event {
	evt := NewLifecycleEvent(eventType, source, messages)
	evt.SetTime(ts)
	return evt
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// Validate runs the CloudEvents SDK's own structural validation, plus
// the msghub-specific type-enum check.
func Validate(evt cloudevents.Event) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	if !IsValidType(evt.Type()) {
		return &UnknownTypeError{Type: evt.Type()}
	}
	return nil
}

// UnknownTypeError reports an event type outside the enumerated
// lifecycle vocabulary.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return "events: unknown lifecycle event type: " + e.Type
}
