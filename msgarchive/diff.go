package msgarchive

import "github.com/stacknerd/msghub/codec"

// Diff performs the structural recursive diff spec §4.4 describes for
// appendPatch: added and removed are branches of the same shape as the
// inputs, holding only what changed. Reordering alone (arrays of
// id-keyed objects, or arrays of unique primitives) never produces a
// diff.
func Diff(existing, updated any) (added any, removed any) {
	return diffValue(existing, updated)
}

func diffValue(a, b any) (added, removed any) {
	if codec.DeepEqual(a, b) {
		return nil, nil
	}

	switch bv := b.(type) {
	case *codec.Map:
		av, ok := a.(*codec.Map)
		if !ok {
			return b, a
		}
		return diffMap(av, bv)
	case map[string]any:
		av, ok := a.(map[string]any)
		if !ok {
			return b, a
		}
		return diffObject(av, bv)
	case []any:
		av, ok := a.([]any)
		if !ok {
			return b, a
		}
		return diffArray(av, bv)
	default:
		return b, a
	}
}

func diffMap(a, b *codec.Map) (added, removed any) {
	addedMap := codec.NewMap()
	removedMap := codec.NewMap()
	for _, k := range b.Keys() {
		bv, _ := b.Get(k)
		if av, ok := a.Get(k); ok {
			if !codec.DeepEqual(av, bv) {
				addedMap.Set(k, bv)
				removedMap.Set(k, av)
			}
		} else {
			addedMap.Set(k, bv)
		}
	}
	for _, k := range a.Keys() {
		if _, ok := b.Get(k); !ok {
			av, _ := a.Get(k)
			removedMap.Set(k, av)
		}
	}
	if addedMap.Len() == 0 && removedMap.Len() == 0 {
		return nil, nil
	}
	return mapOrNil(addedMap), mapOrNil(removedMap)
}

func mapOrNil(m *codec.Map) any {
	if m.Len() == 0 {
		return nil
	}
	return m
}

func diffObject(a, b map[string]any) (added, removed any) {
	addedObj := map[string]any{}
	removedObj := map[string]any{}
	for k, bv := range b {
		if av, ok := a[k]; ok {
			if !codec.DeepEqual(av, bv) {
				addedObj[k] = bv
				removedObj[k] = av
			}
		} else {
			addedObj[k] = bv
		}
	}
	for k, av := range a {
		if _, ok := b[k]; !ok {
			removedObj[k] = av
		}
	}
	if len(addedObj) == 0 && len(removedObj) == 0 {
		return nil, nil
	}
	return objOrNil(addedObj), objOrNil(removedObj)
}

func objOrNil(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	return m
}

func diffArray(a, b []any) (added, removed any) {
	if idsA, okA := uniqueObjectIDs(a); okA {
		if idsB, okB := uniqueObjectIDs(b); okB {
			return diffByID(a, b, idsA, idsB)
		}
	}
	if setA, okA := uniquePrimitiveSet(a); okA {
		if setB, okB := uniquePrimitiveSet(b); okB {
			return diffSet(setA, setB)
		}
	}
	return []any{b}, []any{a}
}

// uniqueObjectIDs reports whether every element of items is a
// map[string]any with a unique string "id" field, returning the
// id→element index map if so.
func uniqueObjectIDs(items []any) (map[string]map[string]any, bool) {
	out := make(map[string]map[string]any, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, false
		}
		id, ok := m["id"].(string)
		if !ok || id == "" {
			return nil, false
		}
		if _, dup := out[id]; dup {
			return nil, false
		}
		out[id] = m
	}
	return out, true
}

func diffByID(a, b []any, idsA, idsB map[string]map[string]any) (added, removed any) {
	var addedList, removedList []any
	for id, bv := range idsB {
		if av, ok := idsA[id]; ok {
			if !codec.DeepEqual(av, bv) {
				addedList = append(addedList, bv)
				removedList = append(removedList, av)
			}
		} else {
			addedList = append(addedList, bv)
		}
	}
	for id, av := range idsA {
		if _, ok := idsB[id]; !ok {
			removedList = append(removedList, av)
		}
	}
	if len(addedList) == 0 && len(removedList) == 0 {
		return nil, nil
	}
	return sliceOrNil(addedList), sliceOrNil(removedList)
}

// uniquePrimitiveSet reports whether every element is a unique,
// comparable primitive (string/number/bool), returning a presence set.
func uniquePrimitiveSet(items []any) (map[any]bool, bool) {
	out := make(map[any]bool, len(items))
	for _, it := range items {
		switch it.(type) {
		case string, bool, float64, int, int64:
		default:
			return nil, false
		}
		if out[it] {
			return nil, false
		}
		out[it] = true
	}
	return out, true
}

func diffSet(a, b map[any]bool) (added, removed any) {
	var addedList, removedList []any
	for v := range b {
		if !a[v] {
			addedList = append(addedList, v)
		}
	}
	for v := range a {
		if !b[v] {
			removedList = append(removedList, v)
		}
	}
	if len(addedList) == 0 && len(removedList) == 0 {
		return nil, nil
	}
	return sliceOrNil(addedList), sliceOrNil(removedList)
}

func sliceOrNil(s []any) any {
	if len(s) == 0 {
		return nil
	}
	return s
}
