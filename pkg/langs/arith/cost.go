package arith

import (
	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/extraction"
)

// SizeCost counts nodes — the "size-minimal" cost function spec §8's
// round-trip property names.
var SizeCost = extraction.CostFunction[Op, int]{
	Eval: func(_ egraph.ENode[Op], argCosts []int) int {
		total := 1
		for _, c := range argCosts {
			total += c
		}
		return total
	},
	Less: func(a, b int) bool { return a < b },
}
