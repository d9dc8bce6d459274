package arith

import (
	"github.com/foresight-lang/foresight/pkg/pattern"
	"github.com/foresight-lang/foresight/pkg/rule"
)

func node(tag Tag, args ...pattern.MixedTree[Op, pattern.PatternVar]) pattern.MixedTree[Op, pattern.PatternVar] {
	return pattern.Node[Op, pattern.PatternVar](Op{Tag: tag}, nil, nil, args...)
}

func hole(v pattern.PatternVar) pattern.MixedTree[Op, pattern.PatternVar] {
	return pattern.Hole[Op, pattern.PatternVar](v)
}

// CommuteAdd is `x + y -> y + x` — spec's scenario-1 rewrite.
func CommuteAdd() rule.Rule[Op] {
	x, y := pattern.NewPatternVar("x"), pattern.NewPatternVar("y")
	lhs := node(TagAdd, hole(x), hole(y))
	rhs := node(TagAdd, hole(y), hole(x))
	return rule.New("commute-add", lhs, rhs)
}

// CommuteMul is `x * y -> y * x`.
func CommuteMul() rule.Rule[Op] {
	x, y := pattern.NewPatternVar("x"), pattern.NewPatternVar("y")
	lhs := node(TagMul, hole(x), hole(y))
	rhs := node(TagMul, hole(y), hole(x))
	return rule.New("commute-mul", lhs, rhs)
}

// AssociateAddLeft is `(x + y) + z -> x + (y + z)`.
func AssociateAddLeft() rule.Rule[Op] {
	x, y, z := pattern.NewPatternVar("x"), pattern.NewPatternVar("y"), pattern.NewPatternVar("z")
	lhs := node(TagAdd, node(TagAdd, hole(x), hole(y)), hole(z))
	rhs := node(TagAdd, hole(x), node(TagAdd, hole(y), hole(z)))
	return rule.New("associate-add-left", lhs, rhs)
}

// DefaultRules is the rule set the end-to-end scenarios run:
// commutativity for both operators plus left-associativity for Add.
func DefaultRules() []rule.Rule[Op] {
	return []rule.Rule[Op]{CommuteAdd(), CommuteMul(), AssociateAddLeft()}
}
