package egraph

import "github.com/foresight-lang/foresight/pkg/slotted"

// pendingMerge is an internal work item: child's slots project onto
// parent's via toward (a possibly-partial SlotMap — partial exactly
// when the merge eliminates slots, spec §4.1 "slot sets shrink").
type pendingMerge struct {
	parent, child EClassRef
	toward        slotted.SlotMap
}

// Union asserts that a and b denote the same term and restores the
// e-graph's invariants (congruence closure, permutation-group updates,
// slot-set shrinkage) before returning. a and b must come from a
// shared context — i.e. share some of their Args' keys — which is the
// case for every caller in this engine (rule appliers, Queue.apply):
// both sides of a rewrite are expressed against the same match's
// slots.
//
// Tie-breaking when a and b name different classes is fixed and
// deterministic: a's class is always kept as the representative (see
// DESIGN.md, "deterministic merge order" — one of spec's Open
// Questions resolved this way for reproducibility across runs).
func (g *EGraph[N]) Union(a, b EClassCall) EClassRef {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unionLocked(a, b)
}

// UnionMany performs every pair's union before any single rebuild
// pass, batching the congruence-closure work the way spec §4.2's
// Queue command batches adds.
func (g *EGraph[N]) UnionMany(pairs [][2]EClassCall) []EClassRef {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]EClassRef, len(pairs))
	for i, p := range pairs {
		out[i] = g.unionLocked(p[0], p[1])
	}
	return out
}

func (g *EGraph[N]) unionLocked(a, b EClassCall) EClassRef {
	ca := g.canonicalizeCallCompressLocked(a)
	cb := g.canonicalizeCallCompressLocked(b)

	if ca.Ref.Equal(cb.Ref) {
		g.addCollisionPermutationLocked(ca.Ref, ca.Args, cb.Args)
		return ca.Ref
	}

	domain := ca.Args.Keys().Intersect(cb.Args.Keys())
	toward := alignmentMap(cb.Args.Restrict(domain), ca.Args.Restrict(domain))

	queue := []pendingMerge{{parent: ca.Ref, child: cb.Ref, toward: toward}}
	root := ca.Ref
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		g.mergeLocked(m, &queue)
	}
	return root
}

// alignmentMap builds the SlotMap sending each key of fromRestricted
// to the corresponding value of toRestricted, for keys present in
// both — this is how two calls sharing a context domain induce a
// correspondence between the slots of the classes they reference.
func alignmentMap(fromRestricted, toRestricted slotted.SlotMap) slotted.SlotMap {
	out := slotted.EmptySlotMap
	for _, k := range fromRestricted.Keys().Slots() {
		fromSlot, _ := fromRestricted.Get(k)
		if toSlot, ok := toRestricted.Get(k); ok {
			out = out.Set(fromSlot, toSlot)
		}
	}
	return out
}

// addCollisionPermutationLocked handles the case where a and b already
// canonicalize to the same class but through different argument maps:
// the discrepancy is a nontrivial symmetry of that class, recorded as
// a new permutation-group generator (spec §4.1).
func (g *EGraph[N]) addCollisionPermutationLocked(ref EClassRef, argsA, argsB slotted.SlotMap) {
	if argsA.Equal(argsB) {
		return
	}
	class := g.classes[ref.id]
	domain := argsA.Keys().Intersect(argsB.Keys())
	perm := alignmentMap(argsB.Restrict(domain), argsA.Restrict(domain))
	g.mergePermutationGeneratorLocked(class, perm)
}

func (g *EGraph[N]) mergePermutationGeneratorLocked(class *classRecord[N], perm slotted.SlotMap) {
	missing := class.slots.Minus(perm.Keys())
	full := perm.Concat(slotted.Identity(missing)).Restrict(class.slots)
	if !full.IsBijection() || !full.Keys().Equal(class.slots) || !slotted.NewSlotSet(full.Values()...).Equal(class.slots) {
		return // best-effort: a partial or non-bijective correspondence carries no usable symmetry
	}
	class.permutation = class.permutation.WithGenerator(full)
}

// mergeLocked performs one structural merge: folds child into parent
// in the union-find, migrates child's member nodes into parent's
// frame (rewriting their own slots through toward), and re-hash-conses
// each migrated node. A migrated node whose shape now collides with a
// node owned by some third class is exactly the congruence-closure
// case (spec §4.1 step 2): it is pushed back onto queue rather than
// resolved recursively, keeping the rebuild an explicit worklist.
func (g *EGraph[N]) mergeLocked(m pendingMerge, queue *[]pendingMerge) {
	parent, parentToRoot := g.uf.findCompress(m.parent)
	child, childToRoot := g.uf.findCompress(m.child)
	if parent.Equal(child) {
		return
	}

	childRecord := g.classes[child.id]
	parentRecord := g.classes[parent.id]
	if childRecord == nil || parentRecord == nil {
		return
	}

	// m.toward was computed against m.parent/m.child's slots as they
	// stood when this merge was enqueued; either side may since have
	// been folded into a different representative by an earlier item
	// in this same worklist, so re-express it against the current
	// roots. childToRoot may not be invertible (a prior merge may have
	// shrunk the slot set); bestEffortInverse picks one preimage per
	// image slot, which is sufficient to carry the correspondence
	// forward without needing a true inverse.
	origFromRoot := bestEffortInverse(childToRoot)
	toward := slotted.EmptySlotMap
	for _, rootSlot := range origFromRoot.Keys().Slots() {
		orig, _ := origFromRoot.Get(rootSlot)
		viaParent, ok := m.toward.Get(orig)
		if !ok {
			continue
		}
		if viaParentRoot, ok := parentToRoot.Get(viaParent); ok {
			toward = toward.Set(rootSlot, viaParentRoot)
		} else {
			toward = toward.Set(rootSlot, viaParent)
		}
	}

	g.uf.union(parent, child, toward)
	delete(g.classes, child.id)
	for key, owner := range g.hashcons {
		if owner.id == child.id {
			delete(g.hashcons, key)
		}
	}
	g.Log.Debug().Str("parent", parent.String()).Str("child", child.String()).Msg("egraph: rebuild merge")

	towardFn := func(s slotted.Slot) slotted.Slot {
		if v, ok := toward.Get(s); ok {
			return v
		}
		return s
	}

	if full := extendToBijection(toward, childRecord.slots, parentRecord.slots); full != nil {
		parentRecord.permutation = parentRecord.permutation.Union(
			translatePermutation(childRecord.permutation, *full))
	}

	for _, node := range childRecord.nodes {
		translated := ENode[N]{
			Kind:        node.Kind,
			Definitions: mapSlice(node.Definitions, towardFn),
			Uses:        mapSlice(node.Uses, towardFn),
			Args:        node.Args,
		}
		g.reinsertOwnedLocked(parent, translated, queue)
	}
}

// reinsertOwnedLocked inserts node (already expressed in parent's
// frame) as belonging to parent, unless its shape already hash-conses
// elsewhere — in which case parent and that owner are now provably the
// same class and the merge is queued.
func (g *EGraph[N]) reinsertOwnedLocked(parent EClassRef, node ENode[N], queue *[]pendingMerge) {
	canon := g.canonicalizeNodeLocked(node)
	shapeCall := computeShape(canon)
	key := shapeCall.Shape.Key()

	if owner, ok := g.hashcons[key]; ok {
		if owner.id == parent.id {
			stored := g.classes[parent.id].nodes[key]
			storedShapeCall := computeShape(stored)
			g.addCollisionPermutationLocked(parent, storedShapeCall.Renaming.Inverse(), shapeCall.Renaming.Inverse())
			return
		}
		existingRecord := g.classes[owner.id]
		storedShapeCall := computeShape(existingRecord.nodes[key])
		// existingOwner's slots -> the frame `node` is already expressed in (parent's frame)
		toward := storedShapeCall.Renaming.Inverse().Compose(shapeCall.Renaming)
		*queue = append(*queue, pendingMerge{parent: parent, child: owner, toward: toward})
		return
	}

	parentRecord := g.classes[parent.id]
	parentRecord.nodes[key] = canon
	g.hashcons[key] = parent
}

// bestEffortInverse inverts m, picking the first-seen (in key order,
// hence deterministic) preimage for each image slot when m is not
// injective. Used only to re-derive a correspondence after a chain of
// merges; never relied on to be a true inverse.
func bestEffortInverse(m slotted.SlotMap) slotted.SlotMap {
	out := slotted.EmptySlotMap
	for _, k := range m.Keys().Slots() {
		v, _ := m.Get(k)
		if !out.Contains(v) {
			out = out.Set(v, k)
		}
	}
	return out
}

// extendToBijection extends partial (a slot map that may omit some of
// fromSlots) to a total map on fromSlots by mapping every unmapped
// slot to itself, returning the result only if it turns out to be a
// genuine bijection from fromSlots onto toSlots — nil otherwise (the
// general "slots were eliminated or renamed across namespaces" case,
// where no permutation can meaningfully be carried over).
func extendToBijection(partial slotted.SlotMap, fromSlots, toSlots slotted.SlotSet) *slotted.SlotMap {
	missing := fromSlots.Minus(partial.Keys())
	full := partial.Restrict(fromSlots).Concat(slotted.Identity(missing))
	if !full.IsBijection() || !full.Keys().Equal(fromSlots) {
		return nil
	}
	if !slotted.NewSlotSet(full.Values()...).Equal(toSlots) {
		return nil
	}
	return &full
}

// translatePermutation conjugates group's generators by toward,
// expressing a symmetry known on child's slots as one on parent's
// slots (toward must already be a bijection fromSlots -> toSlots,
// guaranteed by the extendToBijection caller).
func translatePermutation(group PermutationGroup, toward slotted.SlotMap) PermutationGroup {
	out := TrivialGroup(slotted.NewSlotSet(toward.Values()...))
	inv := toward.Inverse()
	for _, gen := range group.Generators() {
		translated := inv.Compose(gen).Compose(toward)
		out = out.WithGenerator(translated)
	}
	return out
}
