// Command foresight-bench runs a named set of saturate-then-extract
// workloads, each for a fixed wall-clock budget, and reports how many
// iterations it completed and their median duration — spec's
// peripheral benchmark harness, not part of the core e-graph contract.
package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/foresight-lang/foresight/internal/parallelmap"
	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/extraction"
	"github.com/foresight-lang/foresight/pkg/langs/arith"
	"github.com/foresight-lang/foresight/pkg/langs/matrixchain"
	"github.com/foresight-lang/foresight/pkg/saturation"
)

// benchmark is one named, repeatable unit of work. It builds a fresh
// e-graph and then saturates it, extracts from it, or both (see each
// workload's name), so each iteration's timing includes the graph
// construction as well.
type benchmark struct {
	name string
	run  func()
}

func main() {
	duration := flag.Duration("duration", 60*time.Second, "wall-clock budget per benchmark")
	only := flag.String("run", "", "only run benchmarks whose name contains this substring")
	flag.Parse()

	for _, b := range benchmarks() {
		if *only != "" && !strings.Contains(b.name, *only) {
			continue
		}
		runBenchmark(b, *duration)
	}
}

func runBenchmark(b benchmark, budget time.Duration) {
	fmt.Printf("## Benchmarking %s for %g seconds.\n", b.name, budget.Seconds())

	var samples []float64
	deadline := time.Now().Add(budget)
	iterations := 0
	for time.Now().Before(deadline) {
		start := time.Now()
		b.run()
		elapsed := time.Since(start)
		samples = append(samples, float64(elapsed.Microseconds())/1000)
		iterations++
	}

	median, err := stats.Median(samples)
	if err != nil {
		median = 0
	}
	fmt.Printf("Completed %d iterations of %s.\n", iterations, b.name)
	fmt.Printf("Median time per iteration: %.3f ms\n", median)
}

// benchmarks lists the workloads this harness knows how to run. Each
// one exercises a different corner of the core: arith's commutativity
// saturation, arith's constant-fold analysis plus extraction, and
// matrixchain's associativity search plus cost-minimal extraction.
func benchmarks() []benchmark {
	return []benchmark{
		{name: "arith-commute-saturate", run: benchArithCommute},
		{name: "arith-constant-fold-extract", run: benchArithConstantFold},
		{name: "matrixchain-associate-extract", run: benchMatrixChain},
	}
}

func benchArithCommute() {
	g := egraph.New[arith.Op]()
	x, _ := g.Add(arith.Const(2))
	y, _ := g.Add(arith.Const(3))
	g.Add(arith.Add(x, y))
	g.Add(arith.Add(y, x))

	strat := saturation.RepeatUntilStable(
		saturation.MaximalRuleApplication(arith.DefaultRules(), parallelmap.Sequential()),
		10,
	)
	_, _ = strat(g)
}

func benchArithConstantFold() {
	g := egraph.New[arith.Op]()
	folder := arith.NewConstantFolder(g)
	ex := extraction.New(g, arith.ConstPreferringCost)

	two, _ := folder.Meta().Add(arith.Const(2))
	ex.Meta().Add(arith.Const(2))
	three, _ := folder.Meta().Add(arith.Const(3))
	ex.Meta().Add(arith.Const(3))
	sum, _ := folder.Meta().Add(arith.Add(two, three))
	ex.Meta().Add(arith.Add(two, three))

	ex.Extract(sum)
}

func benchMatrixChain() {
	g := egraph.New[matrixchain.Op]()
	a, _ := g.Add(matrixchain.Leaf(200, 175))
	b, _ := g.Add(matrixchain.Leaf(175, 250))
	c, _ := g.Add(matrixchain.Leaf(250, 150))
	d, _ := g.Add(matrixchain.Leaf(150, 10))

	ab, _ := g.Add(matrixchain.Mul(a, b))
	bc, _ := g.Add(matrixchain.Mul(b, c))
	cd, _ := g.Add(matrixchain.Mul(c, d))
	abc, _ := g.Add(matrixchain.Mul(ab, c))

	chain, _ := g.Add(matrixchain.Mul(abc, d))
	g.Add(matrixchain.Mul(a, mustAdd(g, matrixchain.Mul(bc, d))))
	g.Add(matrixchain.Mul(ab, cd))

	strat := saturation.RepeatUntilStable(
		saturation.MaximalRuleApplication(matrixchain.DefaultRules(), parallelmap.Sequential()),
		50,
	)
	_, _ = strat(g)

	ex := extraction.New(g, matrixchain.MultiplicationCost())
	for _, n := range []egraph.ENode[matrixchain.Op]{
		matrixchain.Leaf(200, 175), matrixchain.Leaf(175, 250),
		matrixchain.Leaf(250, 150), matrixchain.Leaf(150, 10),
	} {
		ex.Meta().Add(n)
	}
	ex.Meta().Add(matrixchain.Mul(a, b))
	ex.Meta().Add(matrixchain.Mul(b, c))
	ex.Meta().Add(matrixchain.Mul(c, d))
	ex.Meta().Add(matrixchain.Mul(ab, c))
	ex.Meta().Add(matrixchain.Mul(abc, d))

	ex.Extract(chain)
}

func mustAdd(g *egraph.EGraph[matrixchain.Op], n egraph.ENode[matrixchain.Op]) egraph.EClassCall {
	call, _ := g.Add(n)
	return call
}
