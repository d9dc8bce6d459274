package slotted

import "sort"

// entry is a single (key, value) pair of a SlotMap, kept sorted by key
// so that iteration order — and therefore Equal and Key — is
// deterministic (spec §3: "Equality is by (key,value) pairs").
type entry struct {
	key, value Slot
}

// SlotMap is an ordered, partial mapping from Slot to Slot. It is the
// workhorse of canonicalization: every union-find edge, every
// EClassCall, and every pattern match carries one. SlotMap is
// immutable; every transforming method returns a new SlotMap.
//
// This mirrors the role Substitution plays for miniKanren's Walk/Bind:
// both map variable identities to values (here, other identities) and
// both are resolved by following the mapping until a fixed point is
// reached — for SlotMap that happens once per lookup rather than by
// chained Walk, since slot maps are total on their declared domain.
type SlotMap struct {
	entries []entry
}

// EmptySlotMap is the nowhere-defined map.
var EmptySlotMap = SlotMap{}

// NewSlotMap builds a SlotMap from a set of pairs. Later pairs for the
// same key overwrite earlier ones, matching ordinary map-literal
// semantics.
func NewSlotMap(pairs ...[2]Slot) SlotMap {
	m := EmptySlotMap
	for _, p := range pairs {
		m = m.Set(p[0], p[1])
	}
	return m
}

// Identity returns the identity map on set: every slot in set maps to
// itself.
func Identity(set SlotSet) SlotMap {
	es := make([]entry, len(set.slots))
	for i, s := range set.slots {
		es[i] = entry{key: s, value: s}
	}
	return SlotMap{entries: es}
}

// BijectionFromSetToFresh builds a bijection sending every slot in set
// to a fresh numeric slot minted from src, in set's sorted order.
// Shape computation does not use it: computeShape numbers a node's
// slots by first occurrence with its own counter.
func BijectionFromSetToFresh(set SlotSet, src *Source) SlotMap {
	es := make([]entry, len(set.slots))
	for i, s := range set.slots {
		es[i] = entry{key: s, value: src.Fresh()}
	}
	return SlotMap{entries: es}
}

// Get returns the slot m maps key to, and whether key is in m's
// domain.
func (m SlotMap) Get(key Slot) (Slot, bool) {
	i, ok := m.search(key)
	if !ok {
		return Slot{}, false
	}
	return m.entries[i].value, true
}

// MustGet returns the slot m maps key to, panicking if key is not in
// m's domain. Used where the caller has already established the key
// must be present (a structural invariant, spec §7 kind 1).
func (m SlotMap) MustGet(key Slot) Slot {
	v, ok := m.Get(key)
	if !ok {
		panic("slotted: SlotMap has no entry for " + key.String())
	}
	return v
}

// Contains reports whether key is in m's domain.
func (m SlotMap) Contains(key Slot) bool {
	_, ok := m.search(key)
	return ok
}

func (m SlotMap) search(key Slot) (int, bool) {
	lo, hi := 0, len(m.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if m.entries[mid].key.Equal(key) {
			return mid, true
		}
		if m.entries[mid].key.Less(key) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, false
}

// Set returns a copy of m with key mapped to value.
func (m SlotMap) Set(key, value Slot) SlotMap {
	idx, ok := m.search(key)
	entries := append([]entry(nil), m.entries...)
	if ok {
		entries[idx] = entry{key: key, value: value}
		return SlotMap{entries: entries}
	}
	entries = append(entries, entry{})
	copy(entries[idx+1:], entries[idx:])
	entries[idx] = entry{key: key, value: value}
	return SlotMap{entries: entries}
}

// Keys returns the map's domain as a SlotSet.
func (m SlotMap) Keys() SlotSet {
	ks := make([]Slot, len(m.entries))
	for i, e := range m.entries {
		ks[i] = e.key
	}
	return SlotSet{slots: ks}
}

// Values returns the map's range, in key order, duplicates included.
func (m SlotMap) Values() []Slot {
	vs := make([]Slot, len(m.entries))
	for i, e := range m.entries {
		vs[i] = e.value
	}
	return vs
}

// Len returns the number of entries in m.
func (m SlotMap) Len() int { return len(m.entries) }

// Compose returns a new map g such that g(k) = other(m(k)) for every k
// in m's domain whose image m(k) is in other's domain. Keys of m whose
// image is not in other's domain are dropped — this is "domain
// subset" composition (spec §3).
func (m SlotMap) Compose(other SlotMap) SlotMap {
	out := EmptySlotMap
	for _, e := range m.entries {
		if v, ok := other.Get(e.value); ok {
			out = out.Set(e.key, v)
		}
	}
	return out
}

// ComposePartial is an alias of Compose's "drop keys whose value is
// missing in other" behavior, named to match spec §3's vocabulary at
// call sites where the distinction from ComposeRetain matters.
func (m SlotMap) ComposePartial(other SlotMap) SlotMap { return m.Compose(other) }

// ComposeRetain composes m with other but, unlike Compose, keeps keys
// whose image is missing from other unchanged instead of dropping
// them.
func (m SlotMap) ComposeRetain(other SlotMap) SlotMap {
	out := EmptySlotMap
	for _, e := range m.entries {
		if v, ok := other.Get(e.value); ok {
			out = out.Set(e.key, v)
		} else {
			out = out.Set(e.key, e.value)
		}
	}
	return out
}

// Concat merges m and other; entries of other take precedence on key
// collision.
func (m SlotMap) Concat(other SlotMap) SlotMap {
	out := m
	for _, e := range other.entries {
		out = out.Set(e.key, e.value)
	}
	return out
}

// IsBijection reports whether every value of m appears exactly once,
// i.e. m is a bijection from its keys onto its values, so Inverse is
// defined. The values need not be the keys: a renaming onto other
// slots qualifies. Callers that need a permutation of one slot set
// compare Keys and Values against that set themselves.
func (m SlotMap) IsBijection() bool {
	seen := make(map[Slot]struct{}, len(m.entries))
	for _, e := range m.entries {
		if _, dup := seen[e.value]; dup {
			return false
		}
		seen[e.value] = struct{}{}
	}
	return true
}

// Inverse returns the inverse of m. It panics if m is not a bijection
// (spec §3 precondition, an error-kind-1 structural violation — the
// caller is responsible for calling IsBijection first if the
// precondition is not already guaranteed by an invariant).
func (m SlotMap) Inverse() SlotMap {
	if !m.IsBijection() {
		panic("slotted: Inverse called on a non-bijective SlotMap")
	}
	out := EmptySlotMap
	for _, e := range m.entries {
		out = out.Set(e.value, e.key)
	}
	return out
}

// Equal reports whether m and other have exactly the same (key,value)
// pairs.
func (m SlotMap) Equal(other SlotMap) bool {
	if len(m.entries) != len(other.entries) {
		return false
	}
	for i, e := range m.entries {
		o := other.entries[i]
		if !e.key.Equal(o.key) || !e.value.Equal(o.value) {
			return false
		}
	}
	return true
}

// Key returns a comparable value suitable for use as a Go map key.
func (m SlotMap) Key() string {
	buf := make([]byte, 0, len(m.entries)*18)
	for _, e := range m.entries {
		buf = appendSlotKey(buf, e.key)
		buf = appendSlotKey(buf, e.value)
	}
	return string(buf)
}

// Restrict returns the sub-map of m whose keys lie in keep.
func (m SlotMap) Restrict(keep SlotSet) SlotMap {
	out := EmptySlotMap
	for _, e := range m.entries {
		if keep.Contains(e.key) {
			out = out.Set(e.key, e.value)
		}
	}
	return out
}

// sortedEntries is used by PermutationGroup to obtain a deterministic
// total order over SlotMaps (spec §4.1's "deterministic ordering on
// slot maps" for orbit-representative selection).
func (m SlotMap) sortedEntries() []entry {
	es := append([]entry(nil), m.entries...)
	sort.Slice(es, func(i, j int) bool {
		if !es[i].key.Equal(es[j].key) {
			return es[i].key.Less(es[j].key)
		}
		return es[i].value.Less(es[j].value)
	})
	return es
}

// Compare gives a total order between two SlotMaps with the same
// domain, used to pick a deterministic orbit representative.
func (m SlotMap) Compare(other SlotMap) int {
	a, b := m.sortedEntries(), other.sortedEntries()
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].value.Less(b[i].value) {
			return -1
		}
		if b[i].value.Less(a[i].value) {
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
