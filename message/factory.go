package message

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stacknerd/msghub/codec"
	"github.com/stacknerd/msghub/logging"
)

// plausibleWindowMin/Max bound timestamps the factory accepts, per spec
// §3 ("plausible (window 2000..2100)").
var (
	plausibleWindowMin = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	plausibleWindowMax = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
)

// Factory validates and normalizes messages (C6). It reads no global
// clock: every operation takes `now` explicitly so callers (store,
// hostapi) can inject a clock.Clock.
type Factory struct {
	Logger logging.Logger
}

// NewFactory builds a Factory.
func NewFactory(logger logging.Logger) *Factory {
	if logger == nil {
		logger = logging.Noop{}
	}
	return &Factory{Logger: logger}
}

// CreateMessage validates input and returns a new Message with
// Timing.CreatedAt = now. Returns an error (the Go analogue of the
// spec's null-sentinel) and logs it on any hard-invalid input.
func (f *Factory) CreateMessage(input map[string]any, now time.Time) (*Message, error) {
	if input == nil {
		f.Logger.Error("createMessage: nil input")
		return nil, fmt.Errorf("%w: nil input", ErrValidation)
	}

	kind := Kind(trimmedString(input["kind"]))
	if !containsKind(kind) {
		f.Logger.Error("createMessage: unknown kind", "kind", kind)
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownEnum, kind)
	}

	title := trimmedString(input["title"])
	if title == "" {
		f.Logger.Error("createMessage: missing title")
		return nil, fmt.Errorf("%w: title", ErrMissingField)
	}

	text := trimmedString(input["text"])

	level, err := f.parseLevel(input["level"])
	if err != nil {
		return nil, err
	}

	origin, err := f.parseOrigin(mapOf(input["origin"]))
	if err != nil {
		return nil, err
	}

	ref := trimmedString(input["ref"])
	if ref == "" {
		ref = f.autoRef(origin, kind, input, now)
		switch origin.Type {
		case OriginImport:
			f.Logger.Warn("createMessage: auto-generated ref for import origin", "ref", ref)
		case OriginAutomation:
			f.Logger.Error("createMessage: auto-generated ref for automation origin", "ref", ref)
		}
	}

	msg := &Message{
		Ref:    ref,
		Title:  title,
		Text:   text,
		Level:  level,
		Kind:   kind,
		Origin: origin,
		Lifecycle: Lifecycle{
			State:          StateOpen,
			StateChangedAt: epochMS(now),
		},
		Timing: Timing{CreatedAt: epochMS(now)},
	}

	if err := f.applyTiming(&msg.Timing, mapOf(input["timing"]), now, true); err != nil {
		return nil, err
	}
	msg.Details = f.parseDetails(mapOf(input["details"]))
	msg.Audience = f.parseAudience(mapOf(input["audience"]))
	if p, ok := input["progress"]; ok {
		msg.Progress = f.parseProgress(mapOf(p))
	}
	msg.Dependencies = csvOrArrayToSlice(input["dependencies"])
	if metrics, ok := input["metrics"]; ok {
		m, err := f.parseMetrics(metrics)
		if err != nil {
			return nil, err
		}
		msg.Metrics = m
	}
	if atts, ok := input["attachments"]; ok {
		a, err := f.parseAttachments(sliceOf(atts))
		if err != nil {
			return nil, err
		}
		msg.Attachments = a
	}
	if acts, ok := input["actions"]; ok {
		a, err := f.parseActions(sliceOf(acts))
		if err != nil {
			return nil, err
		}
		msg.Actions = a
	}
	if kind == KindShoppingList {
		if items, ok := input["listItems"]; ok {
			msg.ListItems = f.parseListItems(sliceOf(items))
		}
	}

	return msg, nil
}

func containsKind(k Kind) bool {
	for _, kk := range Kinds {
		if kk == k {
			return true
		}
	}
	return false
}

func containsLevel(l Level) bool {
	for _, ll := range Levels {
		if ll == l {
			return true
		}
	}
	return false
}

func (f *Factory) parseLevel(v any) (Level, error) {
	n, ok := toInt(v)
	if !ok {
		f.Logger.Error("createMessage: missing/invalid level")
		return 0, fmt.Errorf("%w: level", ErrMissingField)
	}
	lvl := Level(n)
	if !containsLevel(lvl) {
		f.Logger.Error("createMessage: unknown level", "level", n)
		return 0, fmt.Errorf("%w: level %d", ErrUnknownEnum, n)
	}
	return lvl, nil
}

func (f *Factory) parseOrigin(m map[string]any) (Origin, error) {
	if m == nil {
		f.Logger.Error("createMessage: missing origin")
		return Origin{}, fmt.Errorf("%w: origin", ErrMissingField)
	}
	ot := OriginType(trimmedString(m["type"]))
	switch ot {
	case OriginManual, OriginImport, OriginAutomation:
	default:
		f.Logger.Error("createMessage: unknown origin.type", "type", ot)
		return Origin{}, fmt.Errorf("%w: origin.type %q", ErrUnknownEnum, ot)
	}
	return Origin{
		Type:   ot,
		System: trimmedString(m["system"]),
		ID:     trimmedString(m["id"]),
	}, nil
}

// autoRef auto-fills ref using the scheme
// <originType>-<kind>-<system>-<hash(id|title|now)>.
func (f *Factory) autoRef(origin Origin, kind Kind, input map[string]any, now time.Time) string {
	seed := fmt.Sprintf("%s|%s|%d", trimmedString(input["id"]), trimmedString(input["title"]), epochMS(now))
	h := sha1.Sum([]byte(seed))
	short := hex.EncodeToString(h[:])[:10]
	return fmt.Sprintf("%s-%s-%s-%s", origin.Type, kind, origin.System, short)
}

func (f *Factory) applyTiming(t *Timing, in map[string]any, now time.Time, isCreate bool) error {
	if in == nil {
		return nil
	}
	fields := map[string]*int64{
		"dueAt":       &t.DueAt,
		"startAt":     &t.StartAt,
		"endAt":       &t.EndAt,
		"notifyAt":    &t.NotifyAt,
		"expiresAt":   &t.ExpiresAt,
		"remindEvery": &t.RemindEvery,
		"timeBudget":  &t.TimeBudget,
		"cooldown":    &t.Cooldown,
	}
	for key, dst := range fields {
		raw, present := in[key]
		if !present {
			continue
		}
		if raw == nil {
			*dst = 0
			continue
		}
		n, ok := toInt64(raw)
		if !ok {
			return fmt.Errorf("%w: timing.%s not numeric", ErrInvalidPatch, key)
		}
		if key == "dueAt" || key == "startAt" || key == "endAt" || key == "notifyAt" || key == "expiresAt" {
			if n < plausibleWindowMin || n > plausibleWindowMax {
				f.Logger.Error("timing field out of plausible window", "field", key, "value", n)
				return fmt.Errorf("%w: timing.%s", ErrTimestampOutOfRange, key)
			}
		}
		*dst = n
	}
	return nil
}

func (f *Factory) parseDetails(m map[string]any) Details {
	if m == nil {
		return Details{}
	}
	return Details{
		Location:    trimmedString(m["location"]),
		Task:        trimmedString(m["task"]),
		Tools:       csvOrArrayToSlice(m["tools"]),
		Consumables: csvOrArrayToSlice(m["consumables"]),
		Reason:      trimmedString(m["reason"]),
	}
}

func (f *Factory) parseAudience(m map[string]any) Audience {
	if m == nil {
		return Audience{}
	}
	a := Audience{Tags: csvOrArrayToSlice(m["tags"])}
	if ch := mapOf(m["channels"]); ch != nil {
		a.Channels = ChannelFilter{
			Include: csvOrArrayToSlice(ch["include"]),
			Exclude: csvOrArrayToSlice(ch["exclude"]),
		}
	}
	return a
}

func (f *Factory) parseProgress(m map[string]any) Progress {
	if m == nil {
		return Progress{}
	}
	p := Progress{}
	if pct, ok := toInt(m["percentage"]); ok {
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		p.Percentage = pct
	}
	if ts, ok := toInt64(m["startedAt"]); ok {
		p.StartedAt = ts
	}
	if ts, ok := toInt64(m["finishedAt"]); ok {
		p.FinishedAt = ts
	}
	return p
}

func (f *Factory) parseMetrics(v any) (*codec.Map, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *codec.Map:
		return t, nil
	case map[string]any:
		out := codec.NewMap()
		for k, entryRaw := range t {
			entry, err := f.parseMetricEntry(entryRaw)
			if err != nil {
				return nil, err
			}
			out.Set(k, entry)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: metrics must be a Map", ErrInvalidPatch)
	}
}

func (f *Factory) parseMetricEntry(v any) (MetricEntry, error) {
	m := mapOf(v)
	if m == nil {
		return MetricEntry{}, fmt.Errorf("%w: metric entry must be an object", ErrInvalidPatch)
	}
	ts, _ := toInt64(m["ts"])
	if ts != 0 && (ts < plausibleWindowMin || ts > plausibleWindowMax) {
		return MetricEntry{}, fmt.Errorf("%w: metric ts implausible", ErrTimestampOutOfRange)
	}
	return MetricEntry{
		Val:  m["val"],
		Unit: trimmedString(m["unit"]),
		TS:   ts,
	}, nil
}

func (f *Factory) parseAttachments(items []any) ([]Attachment, error) {
	out := make([]Attachment, 0, len(items))
	for _, raw := range items {
		m := mapOf(raw)
		if m == nil {
			continue
		}
		at := AttachmentType(trimmedString(m["type"]))
		if !attachmentTypes[at] {
			f.Logger.Error("invalid attachment type", "type", at)
			return nil, fmt.Errorf("%w: %q", ErrInvalidAttachment, at)
		}
		value := trimmedString(m["value"])
		if err := validateAttachment(map[string]any{"type": string(at), "value": value}); err != nil {
			f.Logger.Error("invalid attachment payload", "type", at, "error", err)
			return nil, err
		}
		out = append(out, Attachment{Type: at, Value: value})
	}
	return out, nil
}

func (f *Factory) parseActions(items []any) ([]Action, error) {
	out := make([]Action, 0, len(items))
	for _, raw := range items {
		m := mapOf(raw)
		if m == nil {
			continue
		}
		at := ActionType(trimmedString(m["type"]))
		if !actionTypes[at] {
			f.Logger.Error("invalid action type", "type", at)
			return nil, fmt.Errorf("%w: %q", ErrInvalidAction, at)
		}
		id := trimmedString(m["id"])
		if id == "" {
			id = uuid.NewString()
		}
		var payload map[string]any
		if p := mapOf(m["payload"]); p != nil {
			payload = p
		}
		if err := validateActionPayload(at, payload); err != nil {
			f.Logger.Error("invalid action payload", "type", at, "error", err)
			return nil, err
		}
		out = append(out, Action{Type: at, ID: id, Payload: payload})
	}
	return out, nil
}

func (f *Factory) parseListItems(items []any) []ListItem {
	out := make([]ListItem, 0, len(items))
	for _, raw := range items {
		m := mapOf(raw)
		if m == nil {
			continue
		}
		id := trimmedString(m["id"])
		if id == "" {
			id = uuid.NewString()
		}
		checked, _ := m["checked"].(bool)
		out = append(out, ListItem{ID: id, Name: trimmedString(m["name"]), Checked: checked})
	}
	return out
}

