// Package pattern implements the pattern-matching virtual machine:
// MixedTree (the ENode-shaped tree template with pattern-variable
// holes), its compiler, and the BindNode/BindVar/Compare instruction
// set the compiler targets.
//
// This mirrors how the teacher's tabling.go turns a subgoal's argument
// structure into a CallPattern and how its pattern.go/search.go walk a
// Goal tree against a Substitution — here the "goal tree" is a Pattern
// and the "substitution" is the growing PatternMatch.
package pattern

import (
	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/slotted"
)

// PatternVar names a hole in a MixedTree. Two holes with equal
// PatternVars must bind to the same e-class call for a match to
// succeed (a non-linear pattern, e.g. `Add(x, x)`).
type PatternVar struct{ name string }

// NewPatternVar constructs a PatternVar. Names only need to be unique
// within one Pattern/template pair.
func NewPatternVar(name string) PatternVar { return PatternVar{name: name} }

func (v PatternVar) String() string { return v.name }

// MixedTree is an ENode-shaped tree whose leaves are either further
// Nodes or Holes carrying a value of type A (spec §3). Pattern
// instantiates A with PatternVar for the search side; an Applier's
// replacement template instantiates the same type, letting a rule's
// two halves share one representation and one instantiation routine.
type MixedTree[N egraph.Language, A comparable] struct {
	isHole      bool
	holeValue   A
	kind        N
	definitions []slotted.Slot
	uses        []slotted.Slot
	args        []MixedTree[N, A]
}

// Node constructs a MixedTree node: definitions/uses are the pattern's
// own placeholder slots at this position (matched structurally, not
// by identity, against whatever concrete slots a target node carries).
func Node[N egraph.Language, A comparable](kind N, definitions, uses []slotted.Slot, args ...MixedTree[N, A]) MixedTree[N, A] {
	return MixedTree[N, A]{kind: kind, definitions: definitions, uses: uses, args: args}
}

// Hole constructs a MixedTree leaf carrying value.
func Hole[N egraph.Language, A comparable](value A) MixedTree[N, A] {
	return MixedTree[N, A]{isHole: true, holeValue: value}
}

// IsHole reports whether t is a leaf hole rather than a node.
func (t MixedTree[N, A]) IsHole() bool { return t.isHole }

// HoleValue returns the leaf's value; only meaningful when IsHole.
func (t MixedTree[N, A]) HoleValue() A { return t.holeValue }

// Kind returns the node's tag; only meaningful when !IsHole.
func (t MixedTree[N, A]) Kind() N { return t.kind }

// Definitions returns the node's declared binder-slot placeholders.
func (t MixedTree[N, A]) Definitions() []slotted.Slot { return t.definitions }

// Uses returns the node's declared free-slot placeholders.
func (t MixedTree[N, A]) Uses() []slotted.Slot { return t.uses }

// Args returns the node's child subtrees.
func (t MixedTree[N, A]) Args() []MixedTree[N, A] { return t.args }

// Pattern is the search-side instantiation of MixedTree.
type Pattern[N egraph.Language] = MixedTree[N, PatternVar]

// PatternMatch is the result of a successful search: every pattern
// variable bound to a concrete e-class call, expressed in the match's
// root e-graph frame.
type PatternMatch[N egraph.Language] struct {
	Root     egraph.EClassCall
	Bindings map[PatternVar]egraph.EClassCall
}

// Merge combines two matches discovered independently — e.g. by the
// Searcher `product` combinator matching two sibling subpatterns
// against the same e-graph — failing if they disagree on a variable
// both bind.
func (m PatternMatch[N]) Merge(other PatternMatch[N]) (PatternMatch[N], bool) {
	out := PatternMatch[N]{
		Root:     m.Root,
		Bindings: make(map[PatternVar]egraph.EClassCall, len(m.Bindings)+len(other.Bindings)),
	}
	for k, v := range m.Bindings {
		out.Bindings[k] = v
	}
	for k, v := range other.Bindings {
		if existing, ok := out.Bindings[k]; ok {
			if !existing.Equal(v) {
				return PatternMatch[N]{}, false
			}
			continue
		}
		out.Bindings[k] = v
	}
	return out, true
}
