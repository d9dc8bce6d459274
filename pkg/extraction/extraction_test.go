package extraction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foresight-lang/foresight/pkg/analysis"
	"github.com/foresight-lang/foresight/pkg/egraph"
)

type numOp string

func (o numOp) String() string { return string(o) }

const (
	opConst1 numOp = "const:1"
	opConst9 numOp = "const:9"
	opAdd    numOp = "add"
)

// sizeCost counts nodes — the "size-minimal" cost function spec §8's
// round-trip property names.
var sizeCost = CostFunction[numOp, int]{
	Eval: func(_ egraph.ENode[numOp], argCosts []int) int {
		total := 1
		for _, c := range argCosts {
			total += c
		}
		return total
	},
	Less: func(a, b int) bool { return a < b },
}

func TestExtractSizeMinimalLeaf(t *testing.T) {
	g := egraph.New[numOp]()
	ex := New(g, sizeCost)
	call, _ := ex.Meta().Add(egraph.Leaf(opConst1))

	tree := ex.Extract(call)
	require.Equal(t, opConst1, tree.Kind)
	require.Empty(t, tree.Args)
}

func TestExtractPicksCheaperAlternativeAfterUnion(t *testing.T) {
	g := egraph.New[numOp]()
	ex := New(g, sizeCost)

	one, _ := ex.Meta().Add(egraph.Leaf(opConst1))
	nine, _ := ex.Meta().Add(egraph.Leaf(opConst9))
	sum, _ := ex.Meta().Add(egraph.NewENode(opAdd, nil, nil, []egraph.EClassCall{one, one}))

	// sum (cost 3: add+1+1) and nine (cost 1) become the same class;
	// the cheaper nine leaf must win extraction.
	ex.Meta().Union(sum, nine)

	tree := ex.Extract(nine)
	require.Equal(t, opConst9, tree.Kind)
}

func TestExtractRoundTripsTreeShape(t *testing.T) {
	g := egraph.New[numOp]()
	ex := New(g, sizeCost)

	one, _ := ex.Meta().Add(egraph.Leaf(opConst1))
	sum, _ := ex.Meta().Add(egraph.NewENode(opAdd, nil, nil, []egraph.EClassCall{one, one}))

	tree := ex.Extract(sum)
	require.Equal(t, opAdd, tree.Kind)
	require.Len(t, tree.Args, 2)
	require.Equal(t, opConst1, tree.Args[0].Kind)
	require.Equal(t, opConst1, tree.Args[1].Kind)
}

func TestTopKKeepsKCheapestDistinctCandidates(t *testing.T) {
	g := egraph.New[numOp]()
	var m *analysis.EGraphWithMetadata[numOp, TopK[numOp, int]]
	a := NewTopKAnalysis(&m, sizeCost, 2)
	m = analysis.New(g, a)

	one, _ := m.Add(egraph.Leaf(opConst1))
	nine, _ := m.Add(egraph.Leaf(opConst9))
	sum, _ := m.Add(egraph.NewENode(opAdd, nil, nil, []egraph.EClassCall{one, one}))
	m.Union(sum, nine)

	topk, ok := m.Data(nine)
	require.True(t, ok)
	require.LessOrEqual(t, len(topk.Candidates), 2)
	require.Equal(t, opConst9, topk.Candidates[0].Tree.Kind)
}

func TestMergeTopKIsOrderIndependentOfInputSide(t *testing.T) {
	cf := sizeCost
	a := []Best[numOp, int]{{Cost: 1, Tree: Leaf[numOp](opConst1)}}
	b := []Best[numOp, int]{{Cost: 1, Tree: Leaf[numOp](opConst9)}}
	merged := mergeTopK(cf, 2, a, b)
	require.Len(t, merged, 2)
	require.Equal(t, merged, mergeTopK(cf, 2, b, a))
}
