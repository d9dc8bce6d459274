// Package extraction implements spec §4.6: a minimum-cost-tree analysis
// over the e-graph, and the walk that unfolds a class's best fact into
// a concrete Tree.
//
// Extraction is itself just an Analysis (pkg/analysis) whose fact type
// is Best[N, C] — the same worklist-propagation machinery that keeps a
// constant-fold fact in sync under union also keeps "the cheapest tree
// known so far" in sync, which is exactly how the teacher's own
// constraint store treats "the tightest known domain for this
// variable" (pkg/minikanren/domain.go): both are a monotone fact that
// can only improve (shrink/cheapen) as more is learned, folded the same
// way under Join.
package extraction

import (
	"github.com/foresight-lang/foresight/pkg/analysis"
	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/slotted"
)

// Tree is a fully concrete MixedTree — spec §4.6's reconstructed output,
// pattern.MixedTree's sibling with no hole variant at all, since every
// leaf here is a 0-ary node.
type Tree[N egraph.Language] struct {
	Kind        N
	Definitions []slotted.Slot
	Uses        []slotted.Slot
	Args        []Tree[N]
}

// Leaf builds a 0-ary Tree, the common case for constants and
// variable-as-atom leaves in example languages.
func Leaf[N egraph.Language](kind N) Tree[N] { return Tree[N]{Kind: kind} }

// rename returns a copy of t with every slot occurrence passed through
// f — used both as the public Analysis.Rename hook and internally when
// a node's Make folds in an argument's generically-stored best tree.
func (t Tree[N]) rename(f func(slotted.Slot) slotted.Slot) Tree[N] {
	out := Tree[N]{Kind: t.Kind}
	if t.Definitions != nil {
		out.Definitions = make([]slotted.Slot, len(t.Definitions))
		for i, s := range t.Definitions {
			out.Definitions[i] = f(s)
		}
	}
	if t.Uses != nil {
		out.Uses = make([]slotted.Slot, len(t.Uses))
		for i, s := range t.Uses {
			out.Uses[i] = f(s)
		}
	}
	out.Args = make([]Tree[N], len(t.Args))
	for i, a := range t.Args {
		out.Args[i] = a.rename(f)
	}
	return out
}

func renameWithMap[N egraph.Language](t Tree[N], m slotted.SlotMap) Tree[N] {
	return t.rename(func(s slotted.Slot) slotted.Slot {
		if v, ok := m.Get(s); ok {
			return v
		}
		return s
	})
}

// size is the tree's node count, the first extraction tie-break (spec
// §4.6).
func size[N egraph.Language](t Tree[N]) int {
	n := 1
	for _, a := range t.Args {
		n += size(a)
	}
	return n
}

// depth is the tree's height, the second tie-break.
func depth[N egraph.Language](t Tree[N]) int {
	best := 0
	for _, a := range t.Args {
		if d := depth(a); d > best {
			best = d
		}
	}
	return best + 1
}

// Best is the per-class extraction fact (spec §4.6): the lowest-cost
// candidate found so far, with its Tree expressed generically in the
// class's own canonical parameter frame — Data (pkg/analysis) projects
// it into a caller's frame on read via Rename.
type Best[N egraph.Language, C any] struct {
	Cost C
	Tree Tree[N]
}

// CostFunction computes the cost contributed by a single node given the
// already-extracted costs of its argument classes' best trees (spec
// §4.6). Less must be a strict weak ordering over C.
type CostFunction[N egraph.Language, C any] struct {
	Eval func(node egraph.ENode[N], argCosts []C) C
	Less func(a, b C) bool
}

// compareSlots gives a deterministic lexicographic order over slot
// slices, part of extraction's total tie-break order (spec §4.6: "...
// then slot/use lists lexicographically").
func compareSlots(a, b []slotted.Slot) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].Less(b[i]) {
			return -1
		}
		if b[i].Less(a[i]) {
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// compareTrees gives the total, deterministic ordering extraction's
// Join uses to break cost ties: tree size, then depth, then node kind
// string (a stand-in for "node ordering", since N has no ordering of
// its own beyond String()), then definitions, then uses.
func compareTrees[N egraph.Language](a, b Tree[N]) int {
	if sa, sb := size(a), size(b); sa != sb {
		if sa < sb {
			return -1
		}
		return 1
	}
	if da, db := depth(a), depth(b); da != db {
		if da < db {
			return -1
		}
		return 1
	}
	ka, kb := a.Kind.String(), b.Kind.String()
	if ka != kb {
		if ka < kb {
			return -1
		}
		return 1
	}
	if c := compareSlots(a.Definitions, b.Definitions); c != 0 {
		return c
	}
	if c := compareSlots(a.Uses, b.Uses); c != 0 {
		return c
	}
	for i := 0; i < len(a.Args) && i < len(b.Args); i++ {
		if c := compareTrees(a.Args[i], b.Args[i]); c != 0 {
			return c
		}
	}
	return 0
}

func join[N egraph.Language, C any](cf CostFunction[N, C], a, b Best[N, C]) (Best[N, C], bool) {
	switch {
	case cf.Less(a.Cost, b.Cost):
		return a, false
	case cf.Less(b.Cost, a.Cost):
		return b, true
	default:
		if compareTrees(a.Tree, b.Tree) <= 0 {
			return a, false
		}
		return b, true
	}
}

// NewAnalysis builds the analysis.Analysis extraction runs as, for
// callers that want to compose it with pkg/analysis directly (e.g.
// alongside another analysis on the same e-graph) rather than through
// the Extractor convenience wrapper below.
func NewAnalysis[N egraph.Language, C any](meta **analysis.EGraphWithMetadata[N, Best[N, C]], cf CostFunction[N, C]) analysis.Analysis[N, Best[N, C]] {
	return analysis.Analysis[N, Best[N, C]]{
		Name: "extraction",
		Rename: func(d Best[N, C], args slotted.SlotMap) Best[N, C] {
			return Best[N, C]{Cost: d.Cost, Tree: renameWithMap(d.Tree, args)}
		},
		Make: func(_ *egraph.EGraph[N], node egraph.ENode[N]) Best[N, C] {
			return makeBest(*meta, cf, node)
		},
		Join: func(a, b Best[N, C]) (Best[N, C], bool) { return join(cf, a, b) },
	}
}

func makeBest[N egraph.Language, C any](m *analysis.EGraphWithMetadata[N, Best[N, C]], cf CostFunction[N, C], node egraph.ENode[N]) Best[N, C] {
	argCosts := make([]C, len(node.Args))
	argTrees := make([]Tree[N], len(node.Args))
	for i, a := range node.Args {
		if best, ok := m.Data(a); ok {
			argCosts[i] = best.Cost
			argTrees[i] = best.Tree
		}
	}
	return Best[N, C]{
		Cost: cf.Eval(node, argCosts),
		Tree: Tree[N]{Kind: node.Kind, Definitions: node.Definitions, Uses: node.Uses, Args: argTrees},
	}
}

// Extractor wraps an e-graph with the extraction analysis, the
// idiomatic entry point for callers who just want BestAt / Extract and
// don't need to compose extraction alongside other analyses.
type Extractor[N egraph.Language, C any] struct {
	meta *analysis.EGraphWithMetadata[N, Best[N, C]]
	cost CostFunction[N, C]
}

// New wraps g, maintaining cf's cost analysis for the nodes and unions
// made through Meta() from then on. Classes already in g, and nodes
// added to g directly, get no cost fact until a node of theirs is added
// through Meta(). The construction mirrors the
// declare-then-assign-then-close-over pattern pkg/analysis's own test
// uses, since Make must read its own wrapper's Data (see NewAnalysis).
func New[N egraph.Language, C any](g *egraph.EGraph[N], cf CostFunction[N, C]) *Extractor[N, C] {
	e := &Extractor[N, C]{cost: cf}
	a := NewAnalysis(&e.meta, cf)
	e.meta = analysis.New(g, a)
	return e
}

// Meta returns the wrapped EGraphWithMetadata, for callers that also
// want to add nodes/unions through the same metadata-tracking wrapper
// extraction observes.
func (e *Extractor[N, C]) Meta() *analysis.EGraphWithMetadata[N, Best[N, C]] { return e.meta }

// BestAt returns the current best (cost, tree) fact known for call's
// class, projected into call's own frame, and whether one has been
// computed yet.
func (e *Extractor[N, C]) BestAt(call egraph.EClassCall) (Best[N, C], bool) {
	return e.meta.Data(call)
}

// Extract reconstructs the minimum-cost concrete Tree for root (spec
// §4.6's `extract(root, eg, costFn) → Tree`). It panics if no fact has
// been computed for root's class yet — extraction is only meaningful
// once at least one node has been added to that class.
func (e *Extractor[N, C]) Extract(root egraph.EClassCall) Tree[N] {
	best, ok := e.BestAt(root)
	if !ok {
		panic(egraph.InvariantViolation{Message: "extraction: no cost fact for class " + root.String()})
	}
	return best.Tree
}

// TopK is the per-class fact TopKCostAnalysis (spec §4.6) maintains: up
// to K distinct candidates, sorted cheapest first. "Distinct" is by
// topKCompare (cost, then tree): candidates of equal cost with
// different trees are all kept, ordered by tree, and only a candidate
// equal in both cost and tree collapses to one entry.
type TopK[N egraph.Language, C any] struct {
	K          int
	Candidates []Best[N, C]
}

func topKCompare[N egraph.Language, C any](cf CostFunction[N, C], a, b Best[N, C]) int {
	switch {
	case cf.Less(a.Cost, b.Cost):
		return -1
	case cf.Less(b.Cost, a.Cost):
		return 1
	default:
		return compareTrees(a.Tree, b.Tree)
	}
}

// mergeTopK merges two sorted, distinct candidate vectors, keeping at
// most k results — spec §4.6's "merging sorted distinct vectors".
func mergeTopK[N egraph.Language, C any](cf CostFunction[N, C], k int, a, b []Best[N, C]) []Best[N, C] {
	out := make([]Best[N, C], 0, k)
	i, j := 0, 0
	for len(out) < k && (i < len(a) || j < len(b)) {
		switch {
		case i >= len(a):
			out = appendDistinct(cf, out, b[j])
			j++
		case j >= len(b):
			out = appendDistinct(cf, out, a[i])
			i++
		default:
			c := topKCompare(cf, a[i], b[j])
			switch {
			case c < 0:
				out = appendDistinct(cf, out, a[i])
				i++
			case c > 0:
				out = appendDistinct(cf, out, b[j])
				j++
			default:
				out = appendDistinct(cf, out, a[i])
				i++
				j++
			}
		}
	}
	return out
}

func appendDistinct[N egraph.Language, C any](cf CostFunction[N, C], out []Best[N, C], cand Best[N, C]) []Best[N, C] {
	if len(out) > 0 && topKCompare(cf, out[len(out)-1], cand) == 0 {
		return out
	}
	return append(out, cand)
}

// NewTopKAnalysis builds the K-best generalization of NewAnalysis,
// following the same declare-then-close-over wiring.
func NewTopKAnalysis[N egraph.Language, C any](meta **analysis.EGraphWithMetadata[N, TopK[N, C]], cf CostFunction[N, C], k int) analysis.Analysis[N, TopK[N, C]] {
	return analysis.Analysis[N, TopK[N, C]]{
		Name: "top-k-cost",
		Rename: func(d TopK[N, C], args slotted.SlotMap) TopK[N, C] {
			out := make([]Best[N, C], len(d.Candidates))
			for i, c := range d.Candidates {
				out[i] = Best[N, C]{Cost: c.Cost, Tree: renameWithMap(c.Tree, args)}
			}
			return TopK[N, C]{K: d.K, Candidates: out}
		},
		Make: func(_ *egraph.EGraph[N], node egraph.ENode[N]) TopK[N, C] {
			m := *meta
			argCosts := make([]C, len(node.Args))
			argTrees := make([]Tree[N], len(node.Args))
			for i, a := range node.Args {
				if topk, ok := m.Data(a); ok && len(topk.Candidates) > 0 {
					argCosts[i] = topk.Candidates[0].Cost
					argTrees[i] = topk.Candidates[0].Tree
				}
			}
			tree := Tree[N]{Kind: node.Kind, Definitions: node.Definitions, Uses: node.Uses, Args: argTrees}
			own := Best[N, C]{Cost: cf.Eval(node, argCosts), Tree: tree}
			return TopK[N, C]{K: k, Candidates: []Best[N, C]{own}}
		},
		Join: func(a, b TopK[N, C]) (TopK[N, C], bool) {
			kk := a.K
			if kk == 0 {
				kk = k
			}
			merged := mergeTopK(cf, kk, a.Candidates, b.Candidates)
			changed := len(merged) != len(a.Candidates)
			if !changed {
				for i := range merged {
					if topKCompare(cf, merged[i], a.Candidates[i]) != 0 {
						changed = true
						break
					}
				}
			}
			return TopK[N, C]{K: kk, Candidates: merged}, changed
		},
	}
}
