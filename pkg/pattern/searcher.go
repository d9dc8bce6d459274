package pattern

import "github.com/foresight-lang/foresight/pkg/egraph"

// Searcher finds matches of some pattern against an e-graph. It is
// the Go-idiomatic substitute for the teacher's Goal/Stream
// evaluation: instead of a lazily-forced stream of substitutions, a
// Searcher eagerly returns every match it finds (e-graphs are small
// enough, and deterministic replay matters more than laziness here).
type Searcher[N egraph.Language] func(g *egraph.EGraph[N]) []PatternMatch[N]

// FromPattern compiles p once and returns a Searcher that runs the
// resulting program against every class currently in g — the
// MachineSearcherPhase of spec §4.3.
func FromPattern[N egraph.Language](p Pattern[N]) Searcher[N] {
	prog := Compile(p)
	return func(g *egraph.EGraph[N]) []PatternMatch[N] {
		var out []PatternMatch[N]
		for _, ref := range g.Classes() {
			root := egraph.NewEClassCall(ref, g.Slots(ref))
			out = append(out, Run(g, prog, root)...)
		}
		return out
	}
}

// MapSearcher transforms every match s finds through f.
func MapSearcher[N egraph.Language](s Searcher[N], f func(PatternMatch[N]) PatternMatch[N]) Searcher[N] {
	return func(g *egraph.EGraph[N]) []PatternMatch[N] {
		matches := s(g)
		out := make([]PatternMatch[N], len(matches))
		for i, m := range matches {
			out[i] = f(m)
		}
		return out
	}
}

// FilterSearcher keeps only the matches s finds that satisfy pred.
func FilterSearcher[N egraph.Language](s Searcher[N], pred func(PatternMatch[N]) bool) Searcher[N] {
	return func(g *egraph.EGraph[N]) []PatternMatch[N] {
		var out []PatternMatch[N]
		for _, m := range s(g) {
			if pred(m) {
				out = append(out, m)
			}
		}
		return out
	}
}

// ChainSearcher runs a and b independently and concatenates their
// matches — "try this pattern, or that one".
func ChainSearcher[N egraph.Language](a, b Searcher[N]) Searcher[N] {
	return func(g *egraph.EGraph[N]) []PatternMatch[N] {
		return append(a(g), b(g)...)
	}
}

// ProductSearcher runs a and b independently and returns every
// consistent merge of one match from each (spec §4.3's searcher
// combinators) — used to express a rule whose condition is "these two
// unrelated subpatterns both match, and agree on any variables they
// share".
func ProductSearcher[N egraph.Language](a, b Searcher[N]) Searcher[N] {
	return func(g *egraph.EGraph[N]) []PatternMatch[N] {
		as, bs := a(g), b(g)
		var out []PatternMatch[N]
		for _, x := range as {
			for _, y := range bs {
				if merged, ok := x.Merge(y); ok {
					out = append(out, merged)
				}
			}
		}
		return out
	}
}
