package rule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/pattern"
)

type testOp string

func (o testOp) String() string { return string(o) }

const (
	opLeaf testOp = "leaf"
	opAdd  testOp = "add"
	opMul  testOp = "mul"
)

func TestApplyRewritesAddToMul(t *testing.T) {
	g := egraph.New[testOp]()
	leaf, _ := g.Add(egraph.Leaf(opLeaf))
	add, _ := g.Add(egraph.NewENode[testOp](opAdd, nil, nil, []egraph.EClassCall{leaf, leaf}))

	x := pattern.NewPatternVar("x")
	lhs := pattern.Node[testOp, pattern.PatternVar](opAdd, nil, nil,
		pattern.Hole[testOp, pattern.PatternVar](x),
		pattern.Hole[testOp, pattern.PatternVar](x),
	)
	rhs := pattern.Node[testOp, pattern.PatternVar](opMul, nil, nil,
		pattern.Hole[testOp, pattern.PatternVar](x),
		pattern.Hole[testOp, pattern.PatternVar](x),
	)
	r := New("add-to-mul", lhs, rhs)

	touched, err := Apply(r, g)
	require.NoError(t, err)
	require.Len(t, touched, 1)
	require.True(t, g.AreSame(add, egraph.NewEClassCall(touched[0], g.Slots(touched[0]))))
}

func TestReverseSwapsSearchAndTemplate(t *testing.T) {
	g := egraph.New[testOp]()
	leaf, _ := g.Add(egraph.Leaf(opLeaf))
	mul, _ := g.Add(egraph.NewENode[testOp](opMul, nil, nil, []egraph.EClassCall{leaf, leaf}))

	x := pattern.NewPatternVar("x")
	lhs := pattern.Node[testOp, pattern.PatternVar](opAdd, nil, nil,
		pattern.Hole[testOp, pattern.PatternVar](x),
		pattern.Hole[testOp, pattern.PatternVar](x),
	)
	rhs := pattern.Node[testOp, pattern.PatternVar](opMul, nil, nil,
		pattern.Hole[testOp, pattern.PatternVar](x),
		pattern.Hole[testOp, pattern.PatternVar](x),
	)
	reversed := Reverse("mul-to-add", lhs, rhs)

	touched, err := Apply(reversed, g)
	require.NoError(t, err)
	require.Len(t, touched, 1)
	require.True(t, g.AreSame(mul, egraph.NewEClassCall(touched[0], g.Slots(touched[0]))))
}

func TestApplyReportsUnboundVariable(t *testing.T) {
	g := egraph.New[testOp]()
	leaf, _ := g.Add(egraph.Leaf(opLeaf))
	g.Add(egraph.NewENode[testOp](opAdd, nil, nil, []egraph.EClassCall{leaf, leaf}))

	x := pattern.NewPatternVar("x")
	y := pattern.NewPatternVar("y")
	lhs := pattern.Node[testOp, pattern.PatternVar](opAdd, nil, nil,
		pattern.Hole[testOp, pattern.PatternVar](x),
		pattern.Hole[testOp, pattern.PatternVar](x),
	)
	rhs := pattern.Node[testOp, pattern.PatternVar](opMul, nil, nil,
		pattern.Hole[testOp, pattern.PatternVar](x),
		pattern.Hole[testOp, pattern.PatternVar](y),
	)
	r := New("broken", lhs, rhs)

	_, err := Apply(r, g)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnboundVariable)
}
