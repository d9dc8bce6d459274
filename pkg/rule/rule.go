// Package rule ties a Searcher (spec §4.3) to an Applier, and the two
// together into a Rule that a saturation Strategy can run to a
// fixpoint.
//
// Because pattern.MixedTree is used for both the search-side Pattern
// and the replacement-side template, a Rule's two halves are
// interchangeable: Reverse below builds the opposite-direction Rule by
// swapping which half is compiled into a Searcher and which is
// instantiated as a template, the same duality the teacher exploits
// when a miniKanren relation is defined symmetrically enough to run
// forward or backward.
package rule

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/pattern"
)

// ErrUnboundVariable is returned by an Applier when a template
// references a PatternVar the match did not bind — a malformed rule
// (spec §7 kind 4).
var ErrUnboundVariable = errors.New("rule: template references an unbound pattern variable")

// Applier instantiates a replacement into g given a successful match,
// returning the e-class call the replacement resolves to.
type Applier[N egraph.Language] func(g *egraph.EGraph[N], m pattern.PatternMatch[N]) (egraph.EClassCall, error)

// FromTemplate builds an Applier that adds template to g, substituting
// each Hole with its bound e-class call from the match (spec §4.4).
func FromTemplate[N egraph.Language](template pattern.MixedTree[N, pattern.PatternVar]) Applier[N] {
	return func(g *egraph.EGraph[N], m pattern.PatternMatch[N]) (egraph.EClassCall, error) {
		return instantiate(g, template, m)
	}
}

func instantiate[N egraph.Language](g *egraph.EGraph[N], t pattern.MixedTree[N, pattern.PatternVar], m pattern.PatternMatch[N]) (egraph.EClassCall, error) {
	if t.IsHole() {
		call, ok := m.Bindings[t.HoleValue()]
		if !ok {
			return egraph.EClassCall{}, errors.Wrapf(ErrUnboundVariable, "variable %q", t.HoleValue())
		}
		return call, nil
	}
	args := make([]egraph.EClassCall, len(t.Args()))
	for i, child := range t.Args() {
		call, err := instantiate(g, child, m)
		if err != nil {
			return egraph.EClassCall{}, err
		}
		args[i] = call
	}
	node := egraph.NewENode(t.Kind(), t.Definitions(), t.Uses(), args)
	call, _ := g.Add(node)
	return call, nil
}

// Rule is a named Searcher/Applier pair (spec §4.4).
type Rule[N egraph.Language] struct {
	Name   string
	Search pattern.Searcher[N]
	Apply  Applier[N]
}

// New constructs a Rule that rewrites lhs to rhs: the searcher is
// compiled from lhs, the applier instantiates rhs.
func New[N egraph.Language](name string, lhs, rhs pattern.Pattern[N]) Rule[N] {
	return Rule[N]{Name: name, Search: pattern.FromPattern(lhs), Apply: FromTemplate(rhs)}
}

// Reverse builds the opposite-direction rule: rhs becomes the new
// search pattern, lhs the new replacement template. Valid whenever
// both halves were built from Patterns (always true for rules
// constructed with New), since Pattern and template share one type.
func Reverse[N egraph.Language](name string, lhs, rhs pattern.Pattern[N]) Rule[N] {
	return New(name, rhs, lhs)
}

type snapshotString string

func (s snapshotString) String() string { return string(s) }

// Apply runs rule against every current match in g, instantiating and
// unioning each one's replacement, and returns the classes touched.
// The first Applier error stops the pass: Apply returns it wrapped with
// the rule's name and a short e-graph snapshot (spec §7 kind 6),
// together with the classes touched before it; matches after the
// failing one are not applied, and unions already made stay in g.
func Apply[N egraph.Language](rule Rule[N], g *egraph.EGraph[N]) ([]egraph.EClassRef, error) {
	matches := rule.Search(g)
	touched := make([]egraph.EClassRef, 0, len(matches))
	for _, m := range matches {
		result, err := rule.Apply(g, m)
		if err != nil {
			snap := snapshotString(fmt.Sprintf("%d classes", len(g.Classes())))
			return touched, egraph.ApplyErr(rule.Name, snap, err)
		}
		root := g.Union(m.Root, result)
		touched = append(touched, root)
	}
	return touched, nil
}
