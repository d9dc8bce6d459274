// Package matrixchain is a tiny matrix-multiplication-chain language:
// a Leaf node names one input matrix by its row/column dimensions, and
// Mul multiplies two sub-chains. Associativity rules let the engine
// discover every re-parenthesization of a chain; an extraction cost
// function scores a Mul node by the scalar-multiplication count
// `rows(left) * cols(left) * cols(right)`, the standard matrix-chain
// cost spec's scenario 2 names.
package matrixchain

import (
	"strconv"

	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/extraction"
	"github.com/foresight-lang/foresight/pkg/pattern"
	"github.com/foresight-lang/foresight/pkg/rule"
)

// Tag is the node kind discriminant.
type Tag uint8

const (
	TagLeaf Tag = iota
	TagMul
)

// Op is matrixchain's node-kind tag. Rows/Cols only carry meaning for
// TagLeaf — a Mul node's output dimensions are implied by its
// children, not stored on the node itself, the same way the spec's
// cost function derives a product's shape from its operands rather
// than annotating it.
type Op struct {
	Tag  Tag
	Rows int
	Cols int
}

func (o Op) String() string {
	if o.Tag == TagLeaf {
		return "leaf:" + strconv.Itoa(o.Rows) + "x" + strconv.Itoa(o.Cols)
	}
	return "mul"
}

// Leaf builds a 0-ary node naming one input matrix's dimensions.
func Leaf(rows, cols int) egraph.ENode[Op] {
	return egraph.Leaf(Op{Tag: TagLeaf, Rows: rows, Cols: cols})
}

// Mul builds a two-argument chain-multiplication node.
func Mul(a, b egraph.EClassCall) egraph.ENode[Op] {
	return egraph.NewENode(Op{Tag: TagMul}, nil, nil, []egraph.EClassCall{a, b})
}

func node(tag Tag, args ...pattern.MixedTree[Op, pattern.PatternVar]) pattern.MixedTree[Op, pattern.PatternVar] {
	return pattern.Node[Op, pattern.PatternVar](Op{Tag: tag}, nil, nil, args...)
}

func hole(v pattern.PatternVar) pattern.MixedTree[Op, pattern.PatternVar] {
	return pattern.Hole[Op, pattern.PatternVar](v)
}

// AssociateLeft is `(x * y) * z -> x * (y * z)`.
func AssociateLeft() rule.Rule[Op] {
	x, y, z := pattern.NewPatternVar("x"), pattern.NewPatternVar("y"), pattern.NewPatternVar("z")
	lhs := node(TagMul, node(TagMul, hole(x), hole(y)), hole(z))
	rhs := node(TagMul, hole(x), node(TagMul, hole(y), hole(z)))
	return rule.New("associate-left", lhs, rhs)
}

// AssociateRight is the reverse: `x * (y * z) -> (x * y) * z`.
func AssociateRight() rule.Rule[Op] {
	x, y, z := pattern.NewPatternVar("x"), pattern.NewPatternVar("y"), pattern.NewPatternVar("z")
	lhs := node(TagMul, node(TagMul, hole(x), hole(y)), hole(z))
	rhs := node(TagMul, hole(x), node(TagMul, hole(y), hole(z)))
	return rule.Reverse("associate-right", lhs, rhs)
}

// DefaultRules explores every re-parenthesization of a chain.
func DefaultRules() []rule.Rule[Op] {
	return []rule.Rule[Op]{AssociateLeft(), AssociateRight()}
}

// dims reports the (rows, cols) a node's own shape yields, given its
// children's already-extracted shapes (a zero shape, not an error, for
// an argument whose shape isn't known).
func dims(n egraph.ENode[Op], argDims [][2]int) (int, int) {
	if n.Kind.Tag == TagLeaf {
		return n.Kind.Rows, n.Kind.Cols
	}
	return argDims[0][0], argDims[1][1]
}

// shapeCost is the extraction fact type: the multiplication count so
// far, plus this subtree's own (rows, cols) so a parent Mul can price
// itself without re-walking the tree.
type shapeCost struct {
	Mults int
	Shape [2]int
}

// MultiplicationCost is the cost function spec's scenario 2 names:
// sum of `rows(left) * cols(left) * cols(right)` over every Mul node
// in the extracted tree. extraction.CostFunction's Eval only ever sees
// argument costs, not argument shapes, so the cost type C itself
// (shapeCost) carries each subtree's shape forward alongside its
// multiplication count.
func MultiplicationCost() extraction.CostFunction[Op, shapeCost] {
	return extraction.CostFunction[Op, shapeCost]{
		Eval: func(n egraph.ENode[Op], argCosts []shapeCost) shapeCost {
			argDims := make([][2]int, len(argCosts))
			mults := 0
			for i, c := range argCosts {
				argDims[i] = c.Shape
				mults += c.Mults
			}
			rows, cols := dims(n, argDims)
			if n.Kind.Tag == TagMul {
				mults += argCosts[0].Shape[0] * argCosts[0].Shape[1] * argCosts[1].Shape[1]
			}
			return shapeCost{Mults: mults, Shape: [2]int{rows, cols}}
		},
		Less: func(a, b shapeCost) bool { return a.Mults < b.Mults },
	}
}

// TotalMultiplications reads the scalar-multiplication count back out
// of a cost computed by MultiplicationCost, for callers that only care
// about the number spec's scenario 2 checks (1,162,500 for its literal
// chain).
func TotalMultiplications(c shapeCost) int { return c.Mults }
