package egraph

import "github.com/foresight-lang/foresight/pkg/slotted"

// unionFindEdge is one union-find parent link: child unioned into
// parent, with the SlotMap that projects the child's slots onto the
// parent's. When the merge is slot-preserving this is a bijection;
// when slots were eliminated during the merge (spec §4.1's "slot sets
// shrink") it is a genuine many-to-one specialization map.
type unionFindEdge struct {
	parent EClassRef
	toward slotted.SlotMap
}

// slottedUnionFind is a union-find over EClassRef where every parent
// link carries a SlotMap (spec §2, component table). Path compression
// composes the accumulated maps so repeated Find calls on the same
// chain are amortized O(1).
type slottedUnionFind struct {
	edges map[int]unionFindEdge // id -> edge, absent means "is its own root"
}

func newSlottedUnionFind() *slottedUnionFind {
	return &slottedUnionFind{edges: make(map[int]unionFindEdge)}
}

// find resolves ref to its current representative and the SlotMap
// projecting ref's slots onto the representative's. For a root (or an
// id the union-find has never seen), the representative is ref itself
// and the map is empty, which ComposeRetain (as the canonicalize
// helpers use it) treats as leaving every slot unchanged; callers that
// need an identity map of the right domain build it from the class's
// own slots.
//
// find is read-only: it walks the edge chain but never rewrites it, so
// it is safe to call against a shared *slottedUnionFind under a
// read-lock (spec §5: "Reads … are safe to perform concurrently
// against a frozen snapshot"; egraph.go's RLock-guarded
// Canonicalize/AreSame/Nodes/Users/Slots all resolve through this
// method). Path compression — the mutating, amortizing variant — is
// findCompress, called only from write-locked paths.
func (u *slottedUnionFind) find(ref EClassRef) (EClassRef, slotted.SlotMap) {
	edge, ok := u.edges[ref.id]
	if !ok {
		return ref, slotted.SlotMap{}
	}
	root, toRoot := u.find(edge.parent)
	return root, edge.toward.ComposeRetain(toRoot)
}

// findCompress resolves ref exactly like find, but additionally
// rewrites ref's edge to point straight at the root with the composed
// SlotMap, amortizing repeated resolution of the same chain. Only
// called from mutation paths already holding the e-graph's write lock
// (rebuild's merge worklist, union itself) — never from a read-only
// query, since it mutates u.edges.
func (u *slottedUnionFind) findCompress(ref EClassRef) (EClassRef, slotted.SlotMap) {
	edge, ok := u.edges[ref.id]
	if !ok {
		return ref, slotted.SlotMap{}
	}
	root, toRoot := u.findCompress(edge.parent)
	composed := edge.toward.ComposeRetain(toRoot)
	u.edges[ref.id] = unionFindEdge{parent: root, toward: composed}
	return root, composed
}

// isRoot reports whether ref currently has no parent edge.
func (u *slottedUnionFind) isRoot(ref EClassRef) bool {
	_, ok := u.edges[ref.id]
	return !ok
}

// union makes child a child of parent in the union-find, recording the
// SlotMap that projects child's slots onto parent's. It is an error
// (structural precondition) to union a ref into itself or to union
// a non-root; callers (rebuild) are responsible for calling find first
// to obtain roots.
func (u *slottedUnionFind) union(parent, child EClassRef, toward slotted.SlotMap) {
	if parent.id == child.id {
		panic("egraph: attempted to union a class with itself")
	}
	u.edges[child.id] = unionFindEdge{parent: parent, toward: toward}
}
