package egraph

import "github.com/foresight-lang/foresight/pkg/slotted"

// PermutationGroup is the finite group of slot bijections that leave a
// class's node set unchanged up to shape equality (spec §3 invariant
// I3, §4.1 "Permutation group updates"). It is represented by a
// generating set together with its closure: the full list of group
// elements, enumerated by BFS from the identity on the first
// membership, orbit or representative query and cached. There is no
// Schreier tree or stabilizer chain; every query scans that list,
// which for the small slot-arities e-classes carry in practice stays
// short.
type PermutationGroup struct {
	slots      slotted.SlotSet
	generators []slotted.SlotMap
	// elements caches the full closure once computed; nil until the
	// first membership/orbit query forces it.
	elements []slotted.SlotMap
}

// TrivialGroup returns the group containing only the identity
// permutation on slots.
func TrivialGroup(slots slotted.SlotSet) PermutationGroup {
	return PermutationGroup{slots: slots}
}

// Slots returns the slot set the group acts on.
func (g PermutationGroup) Slots() slotted.SlotSet { return g.slots }

// Generators returns the group's current generating set (not
// necessarily minimal).
func (g PermutationGroup) Generators() []slotted.SlotMap {
	return append([]slotted.SlotMap(nil), g.generators...)
}

// WithGenerator returns a new group with perm added to the generating
// set. perm must be a bijection on g.Slots(); this is a structural
// precondition (spec §7 kind 1) enforced by panicking, matching how
// SlotMap.Inverse rejects non-bijections.
func (g PermutationGroup) WithGenerator(perm slotted.SlotMap) PermutationGroup {
	if !perm.IsBijection() || !perm.Keys().Equal(g.slots) || !slotted.NewSlotSet(perm.Values()...).Equal(g.slots) {
		panic("egraph: permutation generator must be a bijection on the class's slot set")
	}
	if g.contains(perm) {
		return g
	}
	gens := append(append([]slotted.SlotMap(nil), g.generators...), perm)
	return PermutationGroup{slots: g.slots, generators: gens}
}

// Union returns the group generated by the union of g's and other's
// generators, closing as needed. This implements spec §4.1's "union
// their permutation groups (closure of combined generators)" rebuild
// step.
func (g PermutationGroup) Union(other PermutationGroup) PermutationGroup {
	out := g
	for _, gen := range other.generators {
		out = out.WithGenerator(gen)
	}
	return out
}

// Contains reports whether perm is a member of the group (i.e. is
// expressible as a composition of generators).
func (g *PermutationGroup) Contains(perm slotted.SlotMap) bool {
	return g.contains(perm)
}

func (g *PermutationGroup) contains(perm slotted.SlotMap) bool {
	for _, e := range g.elementsClosure() {
		if e.Equal(perm) {
			return true
		}
	}
	return false
}

// elementsClosure computes (and caches) the full closure of the
// generating set by BFS composition, starting from the identity.
// Class slot-arities in practice stay small (symmetry groups over a
// handful of commutative/associative argument positions), so a full
// enumeration is cheap; pathologically large groups would need a real
// Schreier-Sims base/strong-generating-set representation, which this
// engine does not implement; the enumeration stops at maxElements.
func (g *PermutationGroup) elementsClosure() []slotted.SlotMap {
	if g.elements != nil {
		return g.elements
	}
	id := slotted.Identity(g.slots)
	seen := []slotted.SlotMap{id}
	seenKeys := map[string]struct{}{id.Key(): {}}
	frontier := []slotted.SlotMap{id}

	const maxElements = 1 << 16 // guards against pathological input; see note above
	for len(frontier) > 0 && len(seen) < maxElements {
		var next []slotted.SlotMap
		for _, f := range frontier {
			for _, gen := range g.generators {
				composed := f.Compose(gen)
				if _, ok := seenKeys[composed.Key()]; !ok {
					seenKeys[composed.Key()] = struct{}{}
					seen = append(seen, composed)
					next = append(next, composed)
				}
			}
		}
		frontier = next
	}
	g.elements = seen
	return seen
}

// Orbit returns every slot reachable from slot by applying group
// elements — the orbit-stabilizer scheme's orbit computation.
func (g *PermutationGroup) Orbit(slot slotted.Slot) []slotted.Slot {
	seen := map[slotted.Slot]struct{}{}
	var out []slotted.Slot
	for _, e := range g.elementsClosure() {
		if img, ok := e.Get(slot); ok {
			if _, dup := seen[img]; !dup {
				seen[img] = struct{}{}
				out = append(out, img)
			}
		}
	}
	return out
}

// Representative picks the orbit representative of perm under the
// group: the deterministically-smallest SlotMap among {perm ∘ g : g ∈
// G}, per spec §4.1 ("hash-consing normalizes by picking the orbit
// representative under a deterministic ordering on slot maps"). perm
// is expected to map this group's slots (the referenced class's own
// parameter slots) onto caller-context slots; each group element g is
// first applied to perm's domain before perm itself, i.e. the
// candidate is perm∘g — g.Compose(perm) under this package's
// "other-after-m" Compose convention, not perm.Compose(g).
func (g *PermutationGroup) Representative(perm slotted.SlotMap) slotted.SlotMap {
	best := perm
	for _, e := range g.elementsClosure() {
		candidate := e.Compose(perm)
		if candidate.Compare(best) < 0 {
			best = candidate
		}
	}
	return best
}

// Size returns the number of elements in the group's current closure.
func (g *PermutationGroup) Size() int { return len(g.elementsClosure()) }
