package egraph

import (
	"strconv"

	"github.com/foresight-lang/foresight/pkg/slotted"
)

// EClassRef is an opaque, equality-by-identity handle for an e-class.
// It is a stable index into the e-graph's class arena (see DESIGN
// NOTES, "cyclic ownership": e-classes reference their users and vice
// versa, so both sides are modeled as indices into an arena rather
// than as pointers chasing each other). A ref remains valid forever
// once minted, even after the class it names stops being canonical —
// canonicalizing it through the union-find yields the current
// representative.
type EClassRef struct {
	id int
}

// invalidRef carries id -1; it never names a real class and is
// used as a sentinel in a few internal bookkeeping spots.
var invalidRef = EClassRef{id: -1}

// Valid reports whether r could possibly name a class (it does not
// check the id is still in range for any particular graph).
func (r EClassRef) Valid() bool { return r.id >= 0 }

// Equal reports whether two refs name the same arena slot. This is
// identity equality, not "are these classes equivalent" — use
// EGraph.AreSame for the latter.
func (r EClassRef) Equal(other EClassRef) bool { return r.id == other.id }

func (r EClassRef) String() string {
	if !r.Valid() {
		return "<invalid-class>"
	}
	return "c" + strconv.Itoa(r.id)
}

// EClassCall is a canonicalized reference to an e-class: the class's
// ref paired with a SlotMap sending the class's canonical parameter
// slots to concrete argument slots in the caller's context.
//
// Invariant (spec §3): Args.Keys() is a superset of the referenced
// class's canonical parameter slots. It may be a strict superset
// immediately after a union shrinks the class's parameter set, until
// the next rebuild re-canonicalizes every user.
type EClassCall struct {
	Ref  EClassRef
	Args slotted.SlotMap
}

// NewEClassCall constructs a call to ref using the identity map on
// params — the natural call produced the moment a class is created
// (its own canonical form, before any caller renames it).
func NewEClassCall(ref EClassRef, params slotted.SlotSet) EClassCall {
	return EClassCall{Ref: ref, Args: slotted.Identity(params)}
}

// RenameWith composes c's argument map with rename, producing the call
// as seen from a context one level further removed — used when
// canonicalizing a node whose argument calls must be projected through
// the union-find edge's slot map.
func (c EClassCall) RenameWith(rename slotted.SlotMap) EClassCall {
	return EClassCall{Ref: c.Ref, Args: c.Args.ComposeRetain(rename)}
}

// Equal reports whether two calls reference the same class through
// the same argument map.
func (c EClassCall) Equal(other EClassCall) bool {
	return c.Ref.Equal(other.Ref) && c.Args.Equal(other.Args)
}

func (c EClassCall) String() string {
	return c.Ref.String() + "(" + c.Args.Key() + ")"
}
