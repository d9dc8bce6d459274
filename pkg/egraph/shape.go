package egraph

import "github.com/foresight-lang/foresight/pkg/slotted"

// Shape is an ENode with every slot occurrence renamed to its
// canonical numeric position: the hash-cons key (spec §4.1, Glossary).
// Two nodes that differ only by a slot renaming compute to the same
// Shape, which is exactly the property that lets the e-graph recognize
// them as "the same term" regardless of which fresh names the caller
// happened to use.
//
// This is the engine's analogue of the teacher's CallPattern
// (tabling.go): a CallPattern abstracts a subgoal call's variables
// into canonical positions ("X0,atom(a),X1") so that differently-named
// but structurally identical calls share one cached answer set; Shape
// does the same abstraction for e-nodes so they share one e-class.
type Shape[N Language] struct {
	node ENode[N]
	key  string
}

// Node returns the canonically-numbered node underlying the shape.
func (s Shape[N]) Node() ENode[N] { return s.node }

// Key returns a comparable value suitable for use as a Go map key,
// giving Shape the content-hash semantics a CallPattern gets from its
// precomputed hashValue.
func (s Shape[N]) Key() string { return s.key }

// Equal reports whether two shapes are identical.
func (s Shape[N]) Equal(other Shape[N]) bool { return s.key == other.key }

// ShapeCall pairs a Shape with the SlotMap that recovers the original
// (pre-canonicalization) slot names from the shape's canonical
// numbering — the "inverse of the mapping" spec §4.1 says must be kept
// so the original presentation can be reconstructed at extraction
// time.
type ShapeCall[N Language] struct {
	Shape    Shape[N]
	Renaming slotted.SlotMap // canonical slot -> original slot
}

// computeShape implements spec §4.1's shape algorithm: canonicalize
// each argument call (the caller is expected to have already done
// this — see EGraph.canonicalizeNodeLocked), collect first-occurrence slots
// left to right across definitions, uses, and argument call-args, map
// each to a fresh numeric slot in that order, and rewrite every
// occurrence through that map. The returned ShapeCall's Renaming is
// the map's inverse.
func computeShape[N Language](n ENode[N]) ShapeCall[N] {
	numbering := slotted.EmptySlotMap
	var next int64
	assign := func(s slotted.Slot) slotted.Slot {
		if v, ok := numbering.Get(s); ok {
			return v
		}
		fresh := slotted.Numbered(next)
		next++
		numbering = numbering.Set(s, fresh)
		return fresh
	}

	for _, s := range n.allSlotOccurrences() {
		assign(s)
	}

	canonical := n.mapSlots(func(s slotted.Slot) slotted.Slot {
		v, ok := numbering.Get(s)
		if !ok {
			// A slot that occurs nowhere in allSlotOccurrences (can't
			// happen given mapSlots only ever touches Definitions,
			// Uses and Args values, which is exactly what
			// allSlotOccurrences walks) would be a structural bug.
			panic("egraph: shape computation encountered an unnumbered slot")
		}
		return v
	})

	node := canonical
	key := shapeKey(node)
	return ShapeCall[N]{
		Shape:    Shape[N]{node: node, key: key},
		Renaming: numbering.Inverse(),
	}
}

// shapeKey builds the map key for a canonically-numbered node: kind,
// then definitions/uses/args in order, each slot rendered via its Key.
func shapeKey[N Language](n ENode[N]) string {
	buf := make([]byte, 0, 64)
	buf = append(buf, n.Kind.String()...)
	buf = append(buf, '|')
	for _, s := range n.Definitions {
		buf = append(buf, slotKeyByte(s)...)
	}
	buf = append(buf, '|')
	for _, s := range n.Uses {
		buf = append(buf, slotKeyByte(s)...)
	}
	for _, a := range n.Args {
		buf = append(buf, '|')
		buf = append(buf, a.Ref.String()...)
		buf = append(buf, ':')
		buf = append(buf, a.Args.Key()...)
	}
	return string(buf)
}

func slotKeyByte(s slotted.Slot) string {
	return s.String() + ","
}
