package pattern

import (
	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/slotted"
)

type opCode uint8

const (
	opBindNode opCode = iota
	opBindVar
	opCompareVar
)

// instruction is one step of a compiled pattern program. The compiler
// (Compile below) never emits an instruction whose fields outside its
// own opCode's case are meaningful; the interpreter (Run below)
// switches on op.
type instruction[N egraph.Language] struct {
	op opCode

	// opBindNode: reg names the register holding the e-class call to
	// match against; kind/definitions/uses/childRegs describe the
	// pattern node expected there.
	reg         int
	kind        N
	definitions []slotted.Slot
	uses        []slotted.Slot
	childRegs   []int

	// opBindVar
	v PatternVar

	// opCompareVar: reg must hold the same e-class call as
	// firstOccurrenceReg (a non-linear pattern's repeated variable).
	firstOccurrenceReg int
}

// compiledProgram is the instruction sequence produced by compiling a
// Pattern, plus the register its root is matched into.
type compiledProgram[N egraph.Language] struct {
	instructions []instruction[N]
	root         int
	numRegs      int
}

// Compile lowers a Pattern into a linear instruction sequence via a
// left-first traversal (spec §4.3's "compiled pattern"), assigning one
// register per tree position.
func Compile[N egraph.Language](p Pattern[N]) compiledProgram[N] {
	c := &compiler[N]{firstOcc: map[PatternVar]int{}}
	root := c.compileNode(p)
	return compiledProgram[N]{instructions: c.instrs, root: root, numRegs: c.nextReg}
}

type compiler[N egraph.Language] struct {
	instrs   []instruction[N]
	nextReg  int
	firstOcc map[PatternVar]int
}

func (c *compiler[N]) alloc() int {
	r := c.nextReg
	c.nextReg++
	return r
}

func (c *compiler[N]) compileNode(t Pattern[N]) int {
	reg := c.alloc()

	if t.IsHole() {
		v := t.HoleValue()
		if first, seen := c.firstOcc[v]; seen {
			c.instrs = append(c.instrs, instruction[N]{op: opCompareVar, reg: reg, firstOccurrenceReg: first})
		} else {
			c.firstOcc[v] = reg
			c.instrs = append(c.instrs, instruction[N]{op: opBindVar, reg: reg, v: v})
		}
		return reg
	}

	idx := len(c.instrs)
	c.instrs = append(c.instrs, instruction[N]{
		op: opBindNode, reg: reg, kind: t.Kind(),
		definitions: t.Definitions(), uses: t.Uses(),
	})
	childRegs := make([]int, len(t.Args()))
	for i, arg := range t.Args() {
		childRegs[i] = c.compileNode(arg)
	}
	c.instrs[idx].childRegs = childRegs
	return reg
}

// state is the machine's mutable execution context: one e-class call
// per register bound so far, the pattern-slot -> target-slot
// environment BindNode accumulates, and the variable bindings
// BindVar accumulates.
type state[N egraph.Language] struct {
	regs map[int]egraph.EClassCall
	env  map[slotted.Slot]slotted.Slot
	vars map[PatternVar]egraph.EClassCall
}

func (s state[N]) clone() state[N] {
	regs := make(map[int]egraph.EClassCall, len(s.regs))
	for k, v := range s.regs {
		regs[k] = v
	}
	env := make(map[slotted.Slot]slotted.Slot, len(s.env))
	for k, v := range s.env {
		env[k] = v
	}
	vars := make(map[PatternVar]egraph.EClassCall, len(s.vars))
	for k, v := range s.vars {
		vars[k] = v
	}
	return state[N]{regs: regs, env: env, vars: vars}
}

// Run executes prog against root, returning every consistent binding
// the backtracking search finds (spec §4.3: an e-class may contain
// more than one node satisfying a given BindNode, each a branch point).
func Run[N egraph.Language](g *egraph.EGraph[N], prog compiledProgram[N], root egraph.EClassCall) []PatternMatch[N] {
	init := state[N]{
		regs: map[int]egraph.EClassCall{prog.root: root},
		env:  map[slotted.Slot]slotted.Slot{},
		vars: map[PatternVar]egraph.EClassCall{},
	}
	var out []PatternMatch[N]
	for _, final := range step(g, prog.instructions, 0, init) {
		out = append(out, PatternMatch[N]{Root: root, Bindings: final.vars})
	}
	return out
}

func step[N egraph.Language](g *egraph.EGraph[N], instrs []instruction[N], i int, st state[N]) []state[N] {
	if i >= len(instrs) {
		return []state[N]{st}
	}
	ins := instrs[i]

	switch ins.op {
	case opBindVar:
		next := st.clone()
		next.vars[ins.v] = st.regs[ins.reg]
		return step(g, instrs, i+1, next)

	case opCompareVar:
		if !g.AreSame(st.regs[ins.reg], st.regs[ins.firstOccurrenceReg]) {
			return nil
		}
		return step(g, instrs, i+1, st)

	case opBindNode:
		target := st.regs[ins.reg]
		var results []state[N]
		for _, candidate := range g.Nodes(target) {
			if candidate.Kind != ins.kind {
				continue
			}
			if len(candidate.Definitions) != len(ins.definitions) ||
				len(candidate.Uses) != len(ins.uses) ||
				len(candidate.Args) != len(ins.childRegs) {
				continue
			}
			next, ok := st.clone(), true
			bind := func(patSlot, concrete slotted.Slot) bool {
				if existing, seen := next.env[patSlot]; seen {
					return existing.Equal(concrete)
				}
				next.env[patSlot] = concrete
				return true
			}
			for k := range ins.definitions {
				if !bind(ins.definitions[k], candidate.Definitions[k]) {
					ok = false
					break
				}
			}
			if ok {
				for k := range ins.uses {
					if !bind(ins.uses[k], candidate.Uses[k]) {
						ok = false
						break
					}
				}
			}
			if !ok {
				continue
			}
			for k, childReg := range ins.childRegs {
				next.regs[childReg] = candidate.Args[k]
			}
			results = append(results, step(g, instrs, i+1, next)...)
		}
		return results
	}
	return nil
}
