package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/slotted"
)

type testOp string

func (o testOp) String() string { return string(o) }

const (
	opLeaf testOp = "leaf"
	opAdd  testOp = "add"
)

func TestFromPatternMatchesLeaf(t *testing.T) {
	g := egraph.New[testOp]()
	leaf, _ := g.Add(egraph.Leaf(opLeaf))

	p := Node[testOp, PatternVar](opLeaf, nil, nil)
	matches := FromPattern(p)(g)
	require.Len(t, matches, 1)
	require.True(t, matches[0].Root.Ref.Equal(leaf.Ref))
}

func TestFromPatternBindsVariable(t *testing.T) {
	g := egraph.New[testOp]()
	leaf, _ := g.Add(egraph.Leaf(opLeaf))
	add, _ := g.Add(egraph.NewENode[testOp](opAdd, nil, nil, []egraph.EClassCall{leaf, leaf}))

	x := NewPatternVar("x")
	p := Node[testOp, PatternVar](opAdd, nil, nil,
		Hole[testOp, PatternVar](x),
		Hole[testOp, PatternVar](x),
	)
	matches := FromPattern(p)(g)
	require.Len(t, matches, 1)
	require.True(t, matches[0].Root.Ref.Equal(add.Ref))
	require.True(t, matches[0].Bindings[x].Ref.Equal(leaf.Ref))
}

func TestFromPatternRejectsNonLinearMismatch(t *testing.T) {
	g := egraph.New[testOp]()
	leafA, _ := g.Add(egraph.Leaf(opLeaf))
	leafB, _ := g.Add(egraph.NewENode[testOp]("other-leaf", nil, nil, nil))
	g.Add(egraph.NewENode[testOp](opAdd, nil, nil, []egraph.EClassCall{leafA, leafB}))

	x := NewPatternVar("x")
	p := Node[testOp, PatternVar](opAdd, nil, nil,
		Hole[testOp, PatternVar](x),
		Hole[testOp, PatternVar](x),
	)
	matches := FromPattern(p)(g)
	require.Empty(t, matches)
}

func TestFromPatternMatchesBinderSlots(t *testing.T) {
	g := egraph.New[testOp]()
	src := slotted.NewSource()
	b := src.Fresh()
	lam, _ := g.Add(egraph.NewENode[testOp]("lam", []slotted.Slot{b}, []slotted.Slot{b}, nil))

	pb := src.Fresh()
	p := Node[testOp, PatternVar]("lam", []slotted.Slot{pb}, []slotted.Slot{pb})
	matches := FromPattern(p)(g)
	require.Len(t, matches, 1)
	require.True(t, matches[0].Root.Ref.Equal(lam.Ref))
}

func TestProductSearcherMergesConsistentBindings(t *testing.T) {
	g := egraph.New[testOp]()
	leaf, _ := g.Add(egraph.Leaf(opLeaf))
	g.Add(egraph.NewENode[testOp](opAdd, nil, nil, []egraph.EClassCall{leaf, leaf}))

	x := NewPatternVar("x")
	left := FromPattern(Node[testOp, PatternVar](opAdd, nil, nil, Hole[testOp, PatternVar](x), Hole[testOp, PatternVar](x)))
	right := FromPattern(Node[testOp, PatternVar](opLeaf, nil, nil))

	merged := ProductSearcher(left, right)(g)
	require.Len(t, merged, 1)
}
