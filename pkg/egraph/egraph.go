package egraph

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/foresight-lang/foresight/pkg/slotted"
)

// InvariantViolation is panicked for the structural violations spec §7
// kind 1 calls programmer errors: a node referencing a class the graph
// has never seen, a SlotMap.Inverse on a non-bijection (panicked by
// the slotted package itself), a permutation generator that is not a
// bijection on its class's slots, and so on.
type InvariantViolation struct {
	Message string
}

func (e InvariantViolation) Error() string { return "egraph: invariant violation: " + e.Message }

// classRecord is the per-class data spec §3 describes: slots, the
// shape-keyed node set, the permutation group, and (derived lazily,
// see Users) the users relation.
type classRecord[N Language] struct {
	slots       slotted.SlotSet
	nodes       map[string]ENode[N] // shapeKey -> concrete node in this class's own slot frame
	permutation PermutationGroup
}

// EGraph is the slotted hash-cons e-graph (spec §4.1). It is
// single-writer: all mutation goes through Add/TryAddMany/Union/UnionMany,
// which take an exclusive lock; reads (Canonicalize, Nodes, Classes,
// Users) take a shared lock and are safe to call concurrently against
// a momentarily-frozen snapshot, matching the §5 concurrency model.
type EGraph[N Language] struct {
	mu       sync.RWMutex
	uf       *slottedUnionFind
	classes  map[int]*classRecord[N]
	hashcons map[string]EClassRef // shapeKey -> owning class ref (global, at-most-once)
	nextID   int

	Log zerolog.Logger // nil-safe zero value discards, matching SPEC_FULL.md §10
}

// Options configures a new EGraph, following the functional-options
// pattern the teacher's NewModelWithConfig/DefaultSolverConfig use.
type Options struct {
	capacityHint int
	log          zerolog.Logger
}

// Option mutates an Options value during New.
type Option func(*Options)

// WithCapacityHint preallocates the class and hash-cons maps for n
// expected classes.
func WithCapacityHint(n int) Option {
	return func(o *Options) { o.capacityHint = n }
}

// WithLogger attaches a zerolog.Logger for debug-level tracing of new
// class creation and of each class merge during a union's rebuild.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Options) { o.log = log }
}

// New creates an empty e-graph.
func New[N Language](opts ...Option) *EGraph[N] {
	cfg := Options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &EGraph[N]{
		uf:       newSlottedUnionFind(),
		classes:  make(map[int]*classRecord[N], cfg.capacityHint),
		hashcons: make(map[string]EClassRef, cfg.capacityHint),
		Log:      cfg.log,
	}
}

// AddResult reports whether Add created a fresh class (Added) or
// folded into an existing one (AlreadyThere), per spec §4.1.
type AddResult uint8

const (
	Added AddResult = iota
	AlreadyThere
)

// Add canonicalizes node's argument calls, computes its shape, and
// either returns the existing class that shape hash-conses to
// (AlreadyThere) or creates a fresh class for it (Added). At-most-once
// insertion per shape is maintained globally, as spec §4.1 requires.
func (g *EGraph[N]) Add(node ENode[N]) (EClassCall, AddResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(node)
}

func (g *EGraph[N]) addLocked(node ENode[N]) (EClassCall, AddResult) {
	canonNode := g.canonicalizeNodeLocked(node)
	shapeCall := computeShape(canonNode)
	key := shapeCall.Shape.Key()

	if owner, ok := g.hashcons[key]; ok {
		class := g.classes[owner.id]
		stored := class.nodes[key]
		storedShapeCall := computeShape(stored)
		// classSlot -> callerSlot = storedRenaming^-1 ∘ callerRenaming
		args := storedShapeCall.Renaming.Inverse().Compose(shapeCall.Renaming)
		return EClassCall{Ref: owner, Args: args}, AlreadyThere
	}

	ref := EClassRef{id: g.nextID}
	g.nextID++

	params := classParams(canonNode)
	g.classes[ref.id] = &classRecord[N]{
		slots:       params,
		nodes:       map[string]ENode[N]{key: canonNode},
		permutation: TrivialGroup(params),
	}
	g.hashcons[key] = ref
	g.Log.Debug().Str("class", ref.String()).Str("kind", canonNode.Kind.String()).Msg("egraph: new class")

	for _, arg := range canonNode.Args {
		g.validateRefLocked(arg.Ref)
	}

	return NewEClassCall(ref, params), Added
}

// classParams computes spec §4.1's "slots = (free slots of node minus
// its definitions)": every slot occurring in Uses or in an argument
// call's Args values, excluding any slot the node itself binds.
func classParams[N Language](node ENode[N]) slotted.SlotSet {
	var free []slotted.Slot
	free = append(free, node.Uses...)
	for _, a := range node.Args {
		free = append(free, a.Args.Values()...)
	}
	defs := slotted.NewSlotSet(node.Definitions...)
	return slotted.NewSlotSet(free...).Minus(defs)
}

func (g *EGraph[N]) validateRefLocked(ref EClassRef) {
	if _, ok := g.classes[ref.id]; !ok {
		if _, isEdge := g.uf.edges[ref.id]; !isEdge {
			panic(InvariantViolation{Message: fmt.Sprintf("node references unknown class %s", ref)})
		}
	}
}

// TryAddMany optionally pre-processes nodes through the caller's
// canonicalizeInParallel function (per spec §4.1/§5 — parallelism is
// provided by the caller; pass nil to skip that step), then inserts
// them one at a time under the single-writer lock, each insert
// canonicalizing its node's arguments, preserving input order in the
// result.
func (g *EGraph[N]) TryAddMany(nodes []ENode[N], canonicalizeInParallel func([]ENode[N]) []ENode[N]) []EClassCall {
	prepared := nodes
	if canonicalizeInParallel != nil {
		prepared = canonicalizeInParallel(nodes)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]EClassCall, len(prepared))
	for i, n := range prepared {
		call, _ := g.addLocked(n)
		out[i] = call
	}
	return out
}

// Canonicalize resolves call through the union-find and composes its
// argument map accordingly. Repeated application is idempotent
// (canonicalize(canonicalize(x)) = canonicalize(x), spec §8).
func (g *EGraph[N]) Canonicalize(call EClassCall) EClassCall {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.canonicalizeCallLocked(call)
}

// CanonicalizeRef resolves ref to its current representative.
func (g *EGraph[N]) CanonicalizeRef(ref EClassRef) EClassRef {
	g.mu.RLock()
	defer g.mu.RUnlock()
	root, _ := g.uf.find(ref)
	return root
}

// canonicalizeCallLocked resolves call through the union-find's
// read-only find, safe to call under either RLock or Lock.
func (g *EGraph[N]) canonicalizeCallLocked(call EClassCall) EClassCall {
	root, toward := g.uf.find(call.Ref)
	return EClassCall{Ref: root, Args: call.Args.ComposeRetain(toward)}
}

// canonicalizeCallCompressLocked is canonicalizeCallLocked's
// path-compressing twin: it amortizes repeated resolution of the same
// union-find chain by rewriting edges as it walks them, so it must
// only be called from write-locked paths (Add, Union, rebuild) — never
// from a read-only query, since concurrent readers share the same
// *slottedUnionFind under only an RLock (spec §5).
func (g *EGraph[N]) canonicalizeCallCompressLocked(call EClassCall) EClassCall {
	root, toward := g.uf.findCompress(call.Ref)
	return EClassCall{Ref: root, Args: call.Args.ComposeRetain(toward)}
}

// canonicalizeNodeLocked is only ever reached from write-locked paths
// (addLocked, reinsertOwnedLocked), so it compresses as it resolves
// each argument call, and additionally normalizes each resolved
// argument call to its class's permutation-group orbit representative
// before the node is handed to computeShape — without this, two nodes
// that reference the same child class through argument maps differing
// only by a known symmetry of that class (spec §3 invariant I3) would
// compute distinct shape keys and fail to hash-cons together, leaving
// congruence closure permanently incomplete for that pair.
func (g *EGraph[N]) canonicalizeNodeLocked(node ENode[N]) ENode[N] {
	args := make([]EClassCall, len(node.Args))
	for i, a := range node.Args {
		args[i] = g.normalizeArgCallLocked(g.canonicalizeCallCompressLocked(a))
	}
	return ENode[N]{Kind: node.Kind, Definitions: node.Definitions, Uses: node.Uses, Args: args}
}

// normalizeArgCallLocked projects call's argument SlotMap to its
// class's permutation-group orbit representative (spec §4.1). It only
// normalizes when call.Args' domain exactly matches the class's
// current slot set — a strict superset can occur mid-rebuild, before
// every user has been re-canonicalized after a slot-shrinking union,
// and Representative's domain-subset Compose would silently drop the
// extra keys; skipping normalization in that case is safe (correctness
// doesn't depend on it, only on eventually converging once every user
// is re-canonicalized), matching the best-effort spirit of
// addCollisionPermutationLocked/mergePermutationGeneratorLocked in
// rebuild.go.
func (g *EGraph[N]) normalizeArgCallLocked(call EClassCall) EClassCall {
	class := g.classes[call.Ref.id]
	if class == nil || !call.Args.Keys().Equal(class.slots) {
		return call
	}
	return EClassCall{Ref: call.Ref, Args: class.permutation.Representative(call.Args)}
}

// AreSame reports whether two calls canonicalize to the same class.
// Only the class is compared: the calls' argument maps are not, so two
// calls reaching one class through different slot renamings also
// report true.
func (g *EGraph[N]) AreSame(a, b EClassCall) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ca, cb := g.canonicalizeCallLocked(a), g.canonicalizeCallLocked(b)
	return ca.Ref.Equal(cb.Ref)
}

// Classes returns the refs of every currently canonical class.
func (g *EGraph[N]) Classes() []EClassRef {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]EClassRef, 0, len(g.classes))
	for id := range g.classes {
		out = append(out, EClassRef{id: id})
	}
	return out
}

// Nodes returns the concrete nodes belonging to call's class, each
// node's slots expressed in call's own frame (i.e. after applying
// call.Args). Spec §6: `nodes(call)`.
func (g *EGraph[N]) Nodes(call EClassCall) []ENode[N] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	canon := g.canonicalizeCallLocked(call)
	class := g.classes[canon.Ref.id]
	if class == nil {
		return nil
	}
	out := make([]ENode[N], 0, len(class.nodes))
	for _, n := range class.nodes {
		out = append(out, n.mapSlots(func(s slotted.Slot) slotted.Slot {
			if v, ok := canon.Args.Get(s); ok {
				return v
			}
			return s
		}))
	}
	return out
}

// Users returns the refs of every class owning at least one node that
// references ref's class as an argument, satisfying invariant I2. It is
// computed by scanning the graph rather than maintained incrementally
// (see DESIGN.md) — a deliberate simplification that keeps rebuild
// tractable at the cost of an O(graph size) scan per call.
func (g *EGraph[N]) Users(ref EClassRef) []EClassRef {
	g.mu.RLock()
	defer g.mu.RUnlock()
	root, _ := g.uf.find(ref)
	seen := map[int]struct{}{}
	var out []EClassRef
	for id, class := range g.classes {
		for _, n := range class.nodes {
			for _, a := range n.Args {
				argRoot, _ := g.uf.find(a.Ref)
				if argRoot.Equal(root) {
					if _, dup := seen[id]; !dup {
						seen[id] = struct{}{}
						out = append(out, EClassRef{id: id})
					}
				}
			}
		}
	}
	return out
}

// Slots returns the parameter slot set of the class ref currently
// canonicalizes to — the natural EClassCall for ref is
// NewEClassCall(ref, g.Slots(ref)).
func (g *EGraph[N]) Slots(ref EClassRef) slotted.SlotSet {
	g.mu.RLock()
	defer g.mu.RUnlock()
	root, _ := g.uf.find(ref)
	return g.classes[root.id].slots
}

// Permutations returns the current permutation group for the class
// call canonicalizes to.
func (g *EGraph[N]) Permutations(call EClassCall) PermutationGroup {
	g.mu.RLock()
	defer g.mu.RUnlock()
	canon := g.canonicalizeCallLocked(call)
	return g.classes[canon.Ref.id].permutation
}

// ApplyErr wraps an error from rule/command application with the rule
// name and a textual snapshot reference, per spec §7 kind 6.
func ApplyErr(ruleName string, egraphSnapshot fmt.Stringer, cause error) error {
	return errors.Wrapf(cause, "rule %q failed against e-graph %s", ruleName, egraphSnapshot)
}
