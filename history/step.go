package history

// StepData is the payload of one history step: a mapping from a top-level
// key to its subkey slots.
type StepData map[string]KeyData

// KeyData holds the slots recorded under one top-level key.
type KeyData map[string]Slot

// Slot is the tagged variant stored under a subkey: either a plain value
// or a named group of leaf values.
type Slot struct {
	value Value
	group map[string]Value
}

func valueSlot(v Value) Slot { return Slot{value: v} }

// IsGroup reports whether the slot holds a group of leaf values.
func (s Slot) IsGroup() bool { return s.group != nil }

// Value returns the plain value held by the slot. Valid only when IsGroup
// is false.
func (s Slot) Value() Value { return s.value }

// Group returns the leaf mapping held by the slot. Valid only when IsGroup
// is true.
func (s Slot) Group() map[string]Value { return s.group }

// Leaf looks up one leaf value inside a group slot.
func (s Slot) Leaf(name string) (Value, bool) {
	v, ok := s.group[name]
	return v, ok
}

// Value looks up a plain value by key and subkey.
func (d StepData) Value(key, subkey string) (Value, bool) {
	slot, ok := d[key][subkey]
	if !ok || slot.IsGroup() {
		return Value{}, false
	}
	return slot.value, true
}

// Group looks up a group slot by key and subkey.
func (d StepData) Group(key, subkey string) (map[string]Value, bool) {
	slot, ok := d[key][subkey]
	if !ok || !slot.IsGroup() {
		return nil, false
	}
	return slot.group, true
}
