package message

import (
	"fmt"
	"reflect"
	"time"

	"github.com/stacknerd/msghub/codec"
)

// ApplyPatch applies patch to existing and returns the resulting
// Message. stealth, when true, is the internal housekeeping update that
// must not bump Timing.UpdatedAt — it is never exposed on the plugin
// surface (hostapi intentionally omits the parameter).
func (f *Factory) ApplyPatch(existing *Message, patch map[string]any, stealth bool, now time.Time) (*Message, error) {
	if existing == nil {
		return nil, fmt.Errorf("%w: nil existing message", ErrInvalidPatch)
	}
	if patch == nil {
		return nil, fmt.Errorf("%w: nil patch", ErrInvalidPatch)
	}

	updated := existing.Clone()
	changed := false

	if raw, present := patch["ref"]; present {
		if trimmedString(raw) != existing.Ref {
			return nil, fmt.Errorf("%w: ref", ErrImmutableField)
		}
	}
	if raw, present := patch["kind"]; present {
		if Kind(trimmedString(raw)) != existing.Kind {
			return nil, fmt.Errorf("%w: kind", ErrImmutableField)
		}
	}
	if raw, present := patch["origin"]; present {
		o, err := f.parseOrigin(mapOf(raw))
		if err != nil {
			return nil, err
		}
		if o != existing.Origin {
			return nil, fmt.Errorf("%w: origin", ErrImmutableField)
		}
	}
	if timing := mapOf(patch["timing"]); timing != nil {
		if raw, present := timing["createdAt"]; present {
			if n, ok := toInt64(raw); !ok || n != existing.Timing.CreatedAt {
				return nil, fmt.Errorf("%w: timing.createdAt", ErrImmutableField)
			}
		}
	}

	if raw, present := patch["title"]; present {
		if raw == nil {
			return nil, fmt.Errorf("%w: title is required, cannot be removed", ErrMissingField)
		}
		v := trimmedString(raw)
		if v == "" {
			return nil, fmt.Errorf("%w: title", ErrMissingField)
		}
		if v != updated.Title {
			updated.Title = v
			changed = true
		}
	}
	if raw, present := patch["text"]; present {
		v := ""
		if raw != nil {
			v = trimmedString(raw)
		}
		if v != updated.Text {
			updated.Text = v
			changed = true
		}
	}
	if raw, present := patch["level"]; present {
		if raw == nil {
			return nil, fmt.Errorf("%w: level is required, cannot be removed", ErrMissingField)
		}
		lvl, err := f.parseLevel(raw)
		if err != nil {
			return nil, err
		}
		if lvl != updated.Level {
			updated.Level = lvl
			changed = true
		}
	}

	if lifecycle := mapOf(patch["lifecycle"]); lifecycle != nil {
		if c, err := f.patchLifecycle(&updated.Lifecycle, lifecycle, now); err != nil {
			return nil, err
		} else if c {
			changed = true
		}
	}

	if timing := mapOf(patch["timing"]); timing != nil {
		before := updated.Timing
		if err := f.applyTiming(&updated.Timing, timing, now, false); err != nil {
			return nil, err
		}
		if !reflect.DeepEqual(before, updated.Timing) {
			changed = true
		}
	}

	if raw, present := patch["details"]; present {
		before := updated.Details
		if raw == nil {
			updated.Details = Details{}
		} else if m := mapOf(raw); m != nil {
			updated.Details = f.patchDetails(updated.Details, m)
		}
		if !reflect.DeepEqual(before, updated.Details) {
			changed = true
		}
	}

	if raw, present := patch["audience"]; present {
		before := updated.Audience
		if raw == nil {
			updated.Audience = Audience{}
		} else if m := mapOf(raw); m != nil {
			updated.Audience = f.patchAudience(updated.Audience, m)
		}
		if !reflect.DeepEqual(before, updated.Audience) {
			changed = true
		}
	}

	if raw, present := patch["progress"]; present {
		before := updated.Progress
		if raw == nil {
			updated.Progress = Progress{}
		} else if m := mapOf(raw); m != nil {
			updated.Progress = f.patchProgress(updated.Progress, m)
		}
		if !reflect.DeepEqual(before, updated.Progress) {
			changed = true
		}
	}

	if raw, present := patch["dependencies"]; present {
		before := append([]string(nil), updated.Dependencies...)
		updated.Dependencies = f.patchPrimitiveSlice(updated.Dependencies, raw)
		if !IsEqual(before, updated.Dependencies) {
			changed = true
		}
	}

	if raw, present := patch["metrics"]; present {
		before := updated.Metrics
		nm, err := f.patchMetrics(updated.Metrics, raw)
		if err != nil {
			return nil, err
		}
		updated.Metrics = nm
		if !metricsEqual(before, nm) {
			changed = true
		}
	}

	if raw, present := patch["attachments"]; present {
		before := updated.Attachments
		atts, err := f.patchAttachments(raw)
		if err != nil {
			return nil, err
		}
		updated.Attachments = atts
		if !IsEqual(attachmentsToAny(before), attachmentsToAny(atts)) {
			changed = true
		}
	}

	if raw, present := patch["actions"]; present {
		before := updated.Actions
		acts, err := f.patchActions(updated.Actions, raw)
		if err != nil {
			return nil, err
		}
		updated.Actions = acts
		if !actionsEqual(before, acts) {
			changed = true
		}
	}

	if raw, present := patch["listItems"]; present {
		before := updated.ListItems
		items := f.patchListItems(updated.ListItems, raw)
		updated.ListItems = items
		if !listItemsEqual(before, items) {
			changed = true
		}
	}

	if changed && !stealth {
		updated.Timing.UpdatedAt = epochMS(now)
	}

	if err := f.revalidate(updated); err != nil {
		return nil, err
	}

	return updated, nil
}

func (f *Factory) patchLifecycle(l *Lifecycle, m map[string]any, now time.Time) (bool, error) {
	changed := false
	if raw, present := m["state"]; present {
		if raw == nil {
			return false, fmt.Errorf("%w: lifecycle.state is required, cannot be removed", ErrMissingField)
		}
		st := LifecycleState(trimmedString(raw))
		switch st {
		case StateOpen, StateAcked, StateSnoozed, StateClosed, StateDeleted, StateExpired:
		default:
			return false, fmt.Errorf("%w: lifecycle.state %q", ErrUnknownEnum, st)
		}
		if st != l.State {
			l.State = st
			l.StateChangedAt = epochMS(now)
			changed = true
		}
	}
	if raw, present := m["stateChangedBy"]; present {
		v := ""
		if raw != nil {
			v = trimmedString(raw)
		}
		if v != l.StateChangedBy {
			l.StateChangedBy = v
			changed = true
		}
	}
	return changed, nil
}

func (f *Factory) patchDetails(d Details, m map[string]any) Details {
	if raw, present := m["location"]; present {
		d.Location = nilOrTrim(raw)
	}
	if raw, present := m["task"]; present {
		d.Task = nilOrTrim(raw)
	}
	if raw, present := m["tools"]; present {
		d.Tools = nilOrSlice(raw)
	}
	if raw, present := m["consumables"]; present {
		d.Consumables = nilOrSlice(raw)
	}
	if raw, present := m["reason"]; present {
		d.Reason = nilOrTrim(raw)
	}
	return d
}

func (f *Factory) patchAudience(a Audience, m map[string]any) Audience {
	if raw, present := m["tags"]; present {
		a.Tags = nilOrSlice(raw)
	}
	if ch := mapOf(m["channels"]); ch != nil {
		if raw, present := ch["include"]; present {
			a.Channels.Include = nilOrSlice(raw)
		}
		if raw, present := ch["exclude"]; present {
			a.Channels.Exclude = nilOrSlice(raw)
		}
	} else if raw, present := m["channels"]; present && raw == nil {
		a.Channels = ChannelFilter{}
	}
	return a
}

func (f *Factory) patchProgress(p Progress, m map[string]any) Progress {
	if raw, present := m["percentage"]; present {
		if raw == nil {
			p.Percentage = 0
		} else if n, ok := toInt(raw); ok {
			if n < 0 {
				n = 0
			}
			if n > 100 {
				n = 100
			}
			p.Percentage = n
		}
	}
	if raw, present := m["startedAt"]; present {
		if raw == nil {
			p.StartedAt = 0
		} else if n, ok := toInt64(raw); ok {
			p.StartedAt = n
		}
	}
	if raw, present := m["finishedAt"]; present {
		if raw == nil {
			p.FinishedAt = 0
		} else if n, ok := toInt64(raw); ok {
			p.FinishedAt = n
		}
	}
	return p
}

func nilOrTrim(raw any) string {
	if raw == nil {
		return ""
	}
	return trimmedString(raw)
}

func nilOrSlice(raw any) []string {
	if raw == nil {
		return nil
	}
	return csvOrArrayToSlice(raw)
}

// patchPrimitiveSlice accepts either a whole-array replacement, or a
// {set:[...], delete:[...]} instruction set.
func (f *Factory) patchPrimitiveSlice(current []string, raw any) []string {
	if raw == nil {
		return nil
	}
	if m := mapOf(raw); m != nil {
		_, hasSet := m["set"]
		_, hasDelete := m["delete"]
		if hasSet || hasDelete {
			out := dedupeTrim(current)
			toAdd := csvOrArrayToSlice(m["set"])
			toDel := map[string]bool{}
			for _, d := range csvOrArrayToSlice(m["delete"]) {
				toDel[d] = true
			}
			filtered := make([]string, 0, len(out))
			for _, v := range out {
				if !toDel[v] {
					filtered = append(filtered, v)
				}
			}
			for _, v := range toAdd {
				if !toDel[v] {
					filtered = append(filtered, v)
				}
			}
			return dedupeTrim(filtered)
		}
	}
	return csvOrArrayToSlice(raw)
}

// patchMetrics accepts {set:{key:entry}, delete:[key]} semantics over
// the existing Map.
func (f *Factory) patchMetrics(current *codec.Map, raw any) (*codec.Map, error) {
	if raw == nil {
		return nil, nil
	}
	m := mapOf(raw)
	if m == nil {
		return f.parseMetrics(raw)
	}
	setRaw, hasSet := m["set"]
	delRaw, hasDelete := m["delete"]
	if !hasSet && !hasDelete {
		return f.parseMetrics(raw)
	}

	out := codec.NewMap()
	if current != nil {
		for _, k := range current.Keys() {
			v, _ := current.Get(k)
			out.Set(k, v)
		}
	}
	for _, k := range csvOrArrayToSlice(delRaw) {
		out.Delete(k)
	}
	if setMap := mapOf(setRaw); setMap != nil {
		for k, entryRaw := range setMap {
			entry, err := f.parseMetricEntry(entryRaw)
			if err != nil {
				return nil, err
			}
			out.Set(k, entry)
		}
	}
	return out, nil
}

func metricsEqual(a, b *codec.Map) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return a.Len() == 0 && b.Len() == 0
	}
	return a.Equal(b)
}

// patchAttachments accepts a whole-array replacement (the model has no
// stable id for attachments, so {set,delete} by id doesn't apply).
func (f *Factory) patchAttachments(raw any) ([]Attachment, error) {
	if raw == nil {
		return nil, nil
	}
	items := sliceOf(raw)
	return f.parseAttachments(items)
}

func attachmentsToAny(a []Attachment) []any {
	out := make([]any, len(a))
	for i, v := range a {
		out[i] = map[string]any{"type": string(v.Type), "value": v.Value}
	}
	return out
}

// patchActions accepts {set:{id:patch}, delete:[id]} semantics, keyed by
// Action.ID.
func (f *Factory) patchActions(current []Action, raw any) ([]Action, error) {
	if raw == nil {
		return nil, nil
	}
	if m := mapOf(raw); m != nil {
		_, hasSet := m["set"]
		_, hasDelete := m["delete"]
		if hasSet || hasDelete {
			return f.applyIDPatch(current, m, func(id string, existing *Action, patchVal any) (Action, error) {
				pm := mapOf(patchVal)
				a := Action{ID: id}
				if existing != nil {
					a = *existing
				}
				if pm != nil {
					if t, ok := pm["type"]; ok {
						at := ActionType(trimmedString(t))
						if !actionTypes[at] {
							return Action{}, fmt.Errorf("%w: %q", ErrInvalidAction, at)
						}
						a.Type = at
					}
					if p, ok := pm["payload"]; ok {
						a.Payload = mapOf(p)
					}
				}
				if err := validateActionPayload(a.Type, a.Payload); err != nil {
					return Action{}, err
				}
				return a, nil
			})
		}
	}
	items := sliceOf(raw)
	return f.parseActions(items)
}

// applyIDPatch is the {set:{id:patch}, delete:[id]} engine for the
// actions array; listItems take the same patch shape but are handled
// separately in patchListItems.
func (f *Factory) applyIDPatch(
	current []Action,
	m map[string]any,
	build func(id string, existing *Action, patchVal any) (Action, error),
) ([]Action, error) {
	byID := make(map[string]Action, len(current))
	order := make([]string, 0, len(current))
	for _, a := range current {
		byID[a.ID] = a
		order = append(order, a.ID)
	}
	for _, id := range csvOrArrayToSlice(m["delete"]) {
		delete(byID, id)
	}
	if setMap := mapOf(m["set"]); setMap != nil {
		for id, patchVal := range setMap {
			var existingPtr *Action
			if e, ok := byID[id]; ok {
				existingPtr = &e
			}
			built, err := build(id, existingPtr, patchVal)
			if err != nil {
				return nil, err
			}
			if _, existed := byID[id]; !existed {
				order = append(order, id)
			}
			byID[id] = built
		}
	}
	out := make([]Action, 0, len(byID))
	seen := map[string]bool{}
	for _, id := range order {
		if seen[id] {
			continue
		}
		seen[id] = true
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func actionsEqual(a, b []Action) bool {
	return IsEqual(actionsToAny(a), actionsToAny(b))
}

func actionsToAny(a []Action) []any {
	out := make([]any, len(a))
	for i, v := range a {
		out[i] = map[string]any{"id": v.ID, "type": string(v.Type), "payload": v.Payload}
	}
	return out
}

// patchListItems accepts {set:{id:patch}, delete:[id]} semantics, keyed
// by ListItem.ID.
func (f *Factory) patchListItems(current []ListItem, raw any) []ListItem {
	if raw == nil {
		return nil
	}
	if m := mapOf(raw); m != nil {
		_, hasSet := m["set"]
		_, hasDelete := m["delete"]
		if hasSet || hasDelete {
			byID := make(map[string]ListItem, len(current))
			order := make([]string, 0, len(current))
			for _, it := range current {
				byID[it.ID] = it
				order = append(order, it.ID)
			}
			for _, id := range csvOrArrayToSlice(m["delete"]) {
				delete(byID, id)
			}
			if setMap := mapOf(m["set"]); setMap != nil {
				for id, patchVal := range setMap {
					pm := mapOf(patchVal)
					it, existed := byID[id]
					it.ID = id
					if pm != nil {
						if n, ok := pm["name"]; ok {
							it.Name = trimmedString(n)
						}
						if c, ok := pm["checked"].(bool); ok {
							it.Checked = c
						}
					}
					if !existed {
						order = append(order, id)
					}
					byID[id] = it
				}
			}
			out := make([]ListItem, 0, len(byID))
			seen := map[string]bool{}
			for _, id := range order {
				if seen[id] {
					continue
				}
				seen[id] = true
				if it, ok := byID[id]; ok {
					out = append(out, it)
				}
			}
			return out
		}
	}
	return f.parseListItems(sliceOf(raw))
}

func listItemsEqual(a, b []ListItem) bool {
	return IsEqual(listItemsToAny(a), listItemsToAny(b))
}

func listItemsToAny(items []ListItem) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = map[string]any{"id": v.ID, "name": v.Name, "checked": v.Checked}
	}
	return out
}

// revalidate re-checks the invariants CreateMessage enforces, against an
// already-constructed Message (used after ApplyPatch).
func (f *Factory) revalidate(m *Message) error {
	if m.Title == "" {
		return fmt.Errorf("%w: title", ErrMissingField)
	}
	if !containsKind(m.Kind) {
		return fmt.Errorf("%w: kind %q", ErrUnknownEnum, m.Kind)
	}
	if !containsLevel(m.Level) {
		return fmt.Errorf("%w: level %d", ErrUnknownEnum, m.Level)
	}
	switch m.Origin.Type {
	case OriginManual, OriginImport, OriginAutomation:
	default:
		return fmt.Errorf("%w: origin.type %q", ErrUnknownEnum, m.Origin.Type)
	}
	switch m.Lifecycle.State {
	case StateOpen, StateAcked, StateSnoozed, StateClosed, StateDeleted, StateExpired:
	default:
		return fmt.Errorf("%w: lifecycle.state %q", ErrUnknownEnum, m.Lifecycle.State)
	}
	for _, a := range m.Attachments {
		if !attachmentTypes[a.Type] {
			return fmt.Errorf("%w: %q", ErrInvalidAttachment, a.Type)
		}
		if err := validateAttachment(map[string]any{"type": string(a.Type), "value": a.Value}); err != nil {
			return err
		}
	}
	for _, a := range m.Actions {
		if !actionTypes[a.Type] {
			return fmt.Errorf("%w: %q", ErrInvalidAction, a.Type)
		}
		if err := validateActionPayload(a.Type, a.Payload); err != nil {
			return err
		}
	}
	return nil
}
