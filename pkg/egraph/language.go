// Package egraph implements the slotted hash-cons e-graph: canonical
// e-classes keyed by shape, a union-find whose edges carry slot
// renamings, congruence-closure rebuild, and the deferred-command
// layer used to batch adds and unions.
//
// The package is generic over a node-type parameter N satisfying
// Language — the Go-idiomatic substitute for the dynamic-dispatch
// node hierarchy a class-based implementation would use (see
// DESIGN.md, "dynamic dispatch / inheritance over node languages"):
// instead of subclassing a Node base type per language, callers supply
// one comparable tag type per language (arith.Op, matrixchain.Op, ...)
// and the engine carries it around inside ENode[N].
package egraph

import "github.com/foresight-lang/foresight/pkg/slotted"

// Language is the small vtable a node-type tag must provide: just
// enough to be used as a hash-cons/shape-key component (comparable)
// and rendered for debugging (String). It is the Go-idiomatic stand-in
// for the dynamic-dispatch node-kind hierarchy a class-based
// implementation would use (see DESIGN.md, "dynamic dispatch /
// inheritance over node languages") — each language defines its own
// tag type and arity is implicit in how that language's constructors
// build ENode.Args, not validated by this interface.
type Language interface {
	comparable

	// String renders the node kind for debugging/printing.
	String() string
}

// ENode is a term constructor applied to argument e-classes. Definitions
// are slots bound by the node (binders, e.g. a lambda's parameter),
// Uses are slots the node reads freely, and Args are the e-classes the
// node applies itself to, each already canonicalized relative to the
// context the node lives in.
//
// ENode is a plain, comparable-by-contents value once its Args are
// canonical; hash-consing uses its Shape (see shape.go) as the lookup
// key rather than the node itself, since two structurally different
// presentations (differing only by slot renaming) must hash-cons to
// the same class.
type ENode[N Language] struct {
	Kind        N
	Definitions []slotted.Slot
	Uses        []slotted.Slot
	Args        []EClassCall
}

// NewENode constructs an ENode, copying the provided slices so the
// caller's backing arrays can be reused safely.
func NewENode[N Language](kind N, definitions, uses []slotted.Slot, args []EClassCall) ENode[N] {
	return ENode[N]{
		Kind:        kind,
		Definitions: append([]slotted.Slot(nil), definitions...),
		Uses:        append([]slotted.Slot(nil), uses...),
		Args:        append([]EClassCall(nil), args...),
	}
}

// Leaf constructs a 0-ary node with no binders and no free uses — the
// common case for constants and variables-as-atoms in example
// languages.
func Leaf[N Language](kind N) ENode[N] {
	return ENode[N]{Kind: kind}
}

// allSlotOccurrences returns every slot occurrence in the node in the
// left-to-right order shape computation requires: definitions, then
// uses, then each argument's call-args in order (spec §4.1 step ii).
func (n ENode[N]) allSlotOccurrences() []slotted.Slot {
	total := len(n.Definitions) + len(n.Uses)
	for _, a := range n.Args {
		total += a.Args.Len()
	}
	out := make([]slotted.Slot, 0, total)
	out = append(out, n.Definitions...)
	out = append(out, n.Uses...)
	for _, a := range n.Args {
		out = append(out, a.Args.Values()...)
	}
	return out
}

// mapSlots returns a copy of n with every slot occurrence passed
// through f. Argument class refs are left untouched; only the
// SlotMap of each EClassCall and the node's own definitions/uses are
// rewritten.
func (n ENode[N]) mapSlots(f func(slotted.Slot) slotted.Slot) ENode[N] {
	out := ENode[N]{Kind: n.Kind}
	out.Definitions = mapSlice(n.Definitions, f)
	out.Uses = mapSlice(n.Uses, f)
	out.Args = make([]EClassCall, len(n.Args))
	for i, a := range n.Args {
		out.Args[i] = EClassCall{Ref: a.Ref, Args: mapSlotMapValues(a.Args, f)}
	}
	return out
}

func mapSlice(s []slotted.Slot, f func(slotted.Slot) slotted.Slot) []slotted.Slot {
	if s == nil {
		return nil
	}
	out := make([]slotted.Slot, len(s))
	for i, v := range s {
		out[i] = f(v)
	}
	return out
}

func mapSlotMapValues(m slotted.SlotMap, f func(slotted.Slot) slotted.Slot) slotted.SlotMap {
	out := slotted.EmptySlotMap
	for _, k := range m.Keys().Slots() {
		v, _ := m.Get(k)
		out = out.Set(k, f(v))
	}
	return out
}
