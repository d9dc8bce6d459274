package arith

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/extraction"
	"github.com/foresight-lang/foresight/pkg/rule"
	"github.com/foresight-lang/foresight/pkg/saturation"
	"github.com/foresight-lang/foresight/pkg/slotted"

	"github.com/foresight-lang/foresight/internal/parallelmap"
)

// Insert Add(x,y) and Add(y,x); running x+y -> y+x to a fixpoint
// unions both into one class after one round.
func TestAdditiveCommutativityConverges(t *testing.T) {
	g := egraph.New[Op]()
	x, _ := g.Add(Const(2))
	y, _ := g.Add(Const(3))
	xy, _ := g.Add(Add(x, y))
	yx, _ := g.Add(Add(y, x))
	require.False(t, g.AreSame(xy, yx))

	strat := saturation.RepeatUntilStable(
		saturation.MaximalRuleApplication([]rule.Rule[Op]{CommuteAdd()}, parallelmap.Sequential()),
		10,
	)
	changed, err := strat(g)
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, g.AreSame(xy, yx))
}

// Insert Lam(a, Var(a)) and Lam(b, Var(b)) with no rules at all; they
// hash-cons to the same class because shape computation canonically
// renumbers each node's own binder before the hash-cons lookup.
func TestAlphaEquivalentLambdasShareAClass(t *testing.T) {
	g := egraph.New[Op]()
	src := slotted.NewSource()

	a := src.Fresh()
	varA, _ := g.Add(Var(a))
	lamA, _ := g.Add(Lam(a, varA))

	b := src.Fresh()
	varB, _ := g.Add(Var(b))
	lamB, _ := g.Add(Lam(b, varB))

	require.True(t, g.AreSame(lamA, lamB))
}

// Union Add(2,3)'s class with a fresh Const(5) leaf: the constant-fold
// analysis already derived Some(5) for Add(2,3) before the union, and
// the constant-preferring cost function makes extraction prefer the
// bare leaf once the two classes share an identity.
func TestConstantPropagationFoldsAndExtracts(t *testing.T) {
	g := egraph.New[Op]()
	folder := NewConstantFolder(g)
	ex := extraction.New(g, ConstPreferringCost)

	// Both metadata wrappers observe every Add so each keeps its own
	// facts current; the underlying hash-cons dedups repeated Adds of
	// the same node to one class either way.
	two, _ := folder.Meta().Add(Const(2))
	ex.Meta().Add(Const(2))
	three, _ := folder.Meta().Add(Const(3))
	ex.Meta().Add(Const(3))
	sum, _ := folder.Meta().Add(Add(two, three))
	ex.Meta().Add(Add(two, three))

	value, ok := folder.FoldedValue(sum)
	require.True(t, ok)
	require.EqualValues(t, 5, value)

	five, _ := folder.Meta().Add(Const(5))
	ex.Meta().Add(Const(5))
	folder.Meta().Union(sum, five)
	ex.Meta().Union(sum, five)

	tree := ex.Extract(five)
	require.Equal(t, Op{Tag: TagConst, Value: 5}, tree.Kind)
}

// Tree -> e-graph -> extract with a size-minimal cost gives back the
// same tree shape.
func TestRoundTripsTreeShapeUnderSizeCost(t *testing.T) {
	g := egraph.New[Op]()
	ex := extraction.New(g, SizeCost)
	one, _ := ex.Meta().Add(Const(1))
	two, _ := ex.Meta().Add(Const(2))
	sum, _ := ex.Meta().Add(Add(one, two))

	tree := ex.Extract(sum)
	require.Equal(t, Op{Tag: TagAdd}, tree.Kind)
	require.Len(t, tree.Args, 2)
	require.Equal(t, Op{Tag: TagConst, Value: 1}, tree.Args[0].Kind)
	require.Equal(t, Op{Tag: TagConst, Value: 2}, tree.Args[1].Kind)
}
