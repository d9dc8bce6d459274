// Package analysis implements e-class metadata as a join-semilattice
// fold kept consistent under merges by worklist propagation (spec
// §4.5), the same shape as the teacher's constraint store keeping
// derived domain facts consistent as variables get bound: an update at
// one class can invalidate facts at every class that uses it, so both
// systems maintain an explicit queue of classes to recheck rather than
// recomputing everything on every change.
package analysis

import (
	"sync"

	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/slotted"
)

// Analysis describes one join-semilattice metadata computation over
// e-nodes of kind N producing facts of type D (spec §4.5's
// `(name, rename, make, join)` tuple).
//
//   - Rename alpha-renames any slots a fact mentions when the fact is
//     read back through an EClassCall whose argument map differs from
//     the class's own canonical frame (spec §4.5: "rename(result,
//     slotMap) alpha-renames slots mentioned in results"). Facts with
//     no slot-shaped content (plain lattice values like the constant-
//     fold example below) can leave this nil; Data treats a nil Rename
//     as the identity.
//   - Make computes the fact a single e-node contributes on its own. A
//     node's children's facts (already computed, since nodes only
//     reference classes added before them) are available through the
//     wrapping EGraphWithMetadata's Data method.
//   - Join combines two facts for the same class (e.g. because it has
//     two nodes, or because two classes carrying facts were unioned),
//     returning the combined fact and whether it differs from a.
type Analysis[N egraph.Language, D any] struct {
	Name   string
	Rename func(d D, args slotted.SlotMap) D
	Make   func(g *egraph.EGraph[N], node egraph.ENode[N]) D
	Join   func(a, b D) (D, bool)
}

// EGraphWithMetadata wraps an EGraph, maintaining one Analysis's facts
// per class across Add and Union (spec §4.5's EGraphWithMetadata).
// Multiple EGraphWithMetadata values may wrap the same EGraph to run
// independent analyses concurrently; each keeps its own fact table and
// lock.
//
// mu guards only the fact table itself, never a Make or Join call:
// Make is user code and is explicitly allowed to call back into Data,
// so no exported or internal method may hold mu while invoking either.
type EGraphWithMetadata[N egraph.Language, D any] struct {
	mu       sync.Mutex
	g        *egraph.EGraph[N]
	analysis Analysis[N, D]
	data     map[egraph.EClassRef]D
}

// New wraps g to maintain analysis's facts as the graph grows.
func New[N egraph.Language, D any](g *egraph.EGraph[N], analysis Analysis[N, D]) *EGraphWithMetadata[N, D] {
	return &EGraphWithMetadata[N, D]{g: g, analysis: analysis, data: map[egraph.EClassRef]D{}}
}

// Graph returns the wrapped e-graph, for callers that also need raw
// queries (Nodes, Classes, Permutations, ...).
func (m *EGraphWithMetadata[N, D]) Graph() *egraph.EGraph[N] { return m.g }

// Data returns the current fact for the class call canonicalizes to,
// renamed (spec §4.5) through call's own argument map so slots in the
// returned fact are expressed in the caller's frame rather than the
// class's internal canonical frame, and whether the analysis has
// produced a fact yet.
func (m *EGraphWithMetadata[N, D]) Data(call egraph.EClassCall) (D, bool) {
	canon := m.g.Canonicalize(call)
	d, ok := m.get(canon.Ref)
	if !ok || m.analysis.Rename == nil {
		return d, ok
	}
	return m.analysis.Rename(d, canon.Args), true
}

func (m *EGraphWithMetadata[N, D]) get(id egraph.EClassRef) (D, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[id]
	return d, ok
}

func (m *EGraphWithMetadata[N, D]) set(id egraph.EClassRef, d D) {
	m.mu.Lock()
	m.data[id] = d
	m.mu.Unlock()
}

func (m *EGraphWithMetadata[N, D]) delete(id egraph.EClassRef) {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
}

// Add inserts node into the wrapped e-graph and updates the fact table:
// a fresh class gets Make(node); folding into an existing class joins
// the existing fact with Make(node), and, if that changes the fact,
// propagates to every class that (directly or transitively) uses it.
func (m *EGraphWithMetadata[N, D]) Add(node egraph.ENode[N]) (egraph.EClassCall, egraph.AddResult) {
	call, result := m.g.Add(node)
	fact := m.analysis.Make(m.g, node)
	id := call.Ref

	switch result {
	case egraph.Added:
		m.set(id, fact)
	case egraph.AlreadyThere:
		existing, ok := m.get(id)
		if !ok {
			m.set(id, fact)
			break
		}
		joined, changed := m.analysis.Join(existing, fact)
		if changed {
			m.set(id, joined)
			m.propagate(id)
		}
	}
	return call, result
}

// Union merges a and b in the wrapped e-graph and carries both sides'
// facts forward into the surviving class via Join, then propagates any
// resulting change to the class's users.
func (m *EGraphWithMetadata[N, D]) Union(a, b egraph.EClassCall) egraph.EClassRef {
	idA := m.g.CanonicalizeRef(a.Ref)
	idB := m.g.CanonicalizeRef(b.Ref)
	// Facts still stored under ids that an earlier union (made through
	// g directly or through another wrapper) has folded away are joined
	// into their current root first, so neither side's fact is lost.
	m.mu.Lock()
	stale := map[egraph.EClassRef]D{}
	for id, d := range m.data {
		if !m.g.CanonicalizeRef(id).Equal(id) {
			stale[id] = d
			delete(m.data, id)
		}
	}
	m.mu.Unlock()
	for id, d := range stale {
		root := m.g.CanonicalizeRef(id)
		if cur, ok := m.get(root); ok {
			d, _ = m.analysis.Join(cur, d)
		}
		m.set(root, d)
	}
	dataA, okA := m.get(idA)
	dataB, okB := m.get(idB)

	root := m.g.Union(a, b)
	rootID := m.g.CanonicalizeRef(root)

	switch {
	case okA && okB:
		joined, _ := m.analysis.Join(dataA, dataB)
		m.set(rootID, joined)
	case okA:
		m.set(rootID, dataA)
	case okB:
		m.set(rootID, dataB)
	}
	if !idA.Equal(rootID) {
		m.delete(idA)
	}
	if !idB.Equal(rootID) {
		m.delete(idB)
	}
	m.propagate(rootID)
	return root
}

// propagate assumes changed's own fact has already been updated by the
// caller, and pushes that update outward: every class using changed
// gets recomputed, and whenever a recompute actually alters a class's
// fact, that class's own users are queued in turn, until the worklist
// drains. A recompute only evaluates the class's nodes whose argument
// classes all have a fact already (the readiness check); a class with
// no such node keeps its stored fact unchanged.
func (m *EGraphWithMetadata[N, D]) propagate(changed egraph.EClassRef) {
	queue := append([]egraph.EClassRef(nil), m.g.Users(changed)...)
	for len(queue) > 0 {
		id := m.g.CanonicalizeRef(queue[0])
		queue = queue[1:]
		if m.recompute(id) {
			queue = append(queue, m.g.Users(id)...)
		}
	}
}

func (m *EGraphWithMetadata[N, D]) recompute(id egraph.EClassRef) bool {
	call := egraph.NewEClassCall(id, m.g.Slots(id))
	var val D
	have := false
nodes:
	for _, n := range m.g.Nodes(call) {
		for _, a := range n.Args {
			if _, ok := m.get(m.g.CanonicalizeRef(a.Ref)); !ok {
				continue nodes // not ready: an argument class has no fact yet
			}
		}
		if fact := m.analysis.Make(m.g, n); !have {
			val, have = fact, true
		} else {
			val, _ = m.analysis.Join(val, fact)
		}
	}
	if !have {
		return false
	}
	existing, ok := m.get(id)
	if !ok {
		m.set(id, val)
		return true
	}
	joined, changed := m.analysis.Join(existing, val)
	if !changed {
		return false
	}
	m.set(id, joined)
	return true
}
