package egraph

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/foresight-lang/foresight/pkg/slotted"
)

// EClassSymbol names either an already-existing class (Real) or a
// not-yet-inserted one introduced earlier in the same Queue (Virtual).
// Commands reference classes through symbols so a batch of adds whose
// members reference each other — a rewrite that both replaces a node
// and adds new subterms built from the replacement — can be fully
// described before any of them touch the e-graph (spec §4.2).
type EClassSymbol struct {
	real    bool
	ref     EClassRef
	virtual int
}

// RealSymbol wraps an already-present class ref.
func RealSymbol(ref EClassRef) EClassSymbol { return EClassSymbol{real: true, ref: ref} }

// VirtualSymbol names the id-th not-yet-added class within a Queue.
// Obtain ids from Queue.Fresh rather than inventing them directly.
func VirtualSymbol(id int) EClassSymbol { return EClassSymbol{virtual: id} }

// IsVirtual reports whether the symbol still awaits resolution.
func (s EClassSymbol) IsVirtual() bool { return !s.real }

func (s EClassSymbol) String() string {
	if s.real {
		return s.ref.String()
	}
	return fmt.Sprintf("v%d", s.virtual)
}

// SymbolCall is EClassCall generalized to reference a symbol instead
// of a concrete ref, so it can name a virtual class before it exists.
type SymbolCall struct {
	Symbol EClassSymbol
	Args   slotted.SlotMap
}

// PendingNode is ENode generalized the same way: its arguments are
// SymbolCalls rather than EClassCalls.
type PendingNode[N Language] struct {
	Kind        N
	Definitions []slotted.Slot
	Uses        []slotted.Slot
	Args        []SymbolCall
}

// AddManyEntry binds a virtual symbol to the node it resolves to once
// the owning Queue is applied.
type AddManyEntry[N Language] struct {
	Symbol EClassSymbol
	Node   PendingNode[N]
}

// UnionEntry asserts that two symbol calls denote the same term once
// resolved.
type UnionEntry struct {
	A, B SymbolCall
}

// Command is one deferred mutation: a batch of adds, or a batch of
// unions (spec §4.2). A Queue sequences Commands; none of them touch
// an EGraph until Queue.Apply runs.
type Command[N Language] struct {
	adds   []AddManyEntry[N]
	unions []UnionEntry
}

// AddMany constructs a Command that, once applied, adds every entry.
func AddMany[N Language](entries ...AddManyEntry[N]) Command[N] {
	return Command[N]{adds: entries}
}

// UnionManyCommand constructs a Command that, once applied, unions
// every entry. (Named distinctly from EGraph.UnionMany, which
// operates on already-resolved EClassCalls directly.)
func UnionManyCommand[N Language](entries ...UnionEntry) Command[N] {
	return Command[N]{unions: entries}
}

// Queue is an ordered batch of Commands together with the virtual
// symbols they introduce. Building and Simplifying a Queue never
// touches an EGraph; only Apply does (spec §4.2).
type Queue[N Language] struct {
	commands []Command[N]
	nextVirt int
}

// NewQueue returns an empty Queue.
func NewQueue[N Language]() *Queue[N] { return &Queue[N]{} }

// Fresh mints a new virtual symbol and reserves it for a later
// AddManyEntry in this Queue.
func (q *Queue[N]) Fresh() EClassSymbol {
	s := VirtualSymbol(q.nextVirt)
	q.nextVirt++
	return s
}

// Push appends cmd to the queue.
func (q *Queue[N]) Push(cmd Command[N]) { q.commands = append(q.commands, cmd) }

// Simplify drops AddMany entries whose virtual symbol is never
// referenced by any Args or Union in the queue — dead adds that would
// otherwise still cost a hash-cons lookup for no observable effect
// (spec §4.2, "optimization"). It is a pure rewrite over the queue's
// own data and never touches an EGraph.
func (q *Queue[N]) Simplify() {
	used := make(map[int]bool)
	mark := func(sym EClassSymbol) {
		if sym.IsVirtual() {
			used[sym.virtual] = true
		}
	}
	for _, cmd := range q.commands {
		for _, e := range cmd.adds {
			for _, a := range e.Node.Args {
				mark(a.Symbol)
			}
		}
		for _, u := range cmd.unions {
			mark(u.A.Symbol)
			mark(u.B.Symbol)
		}
	}
	for i := range q.commands {
		var kept []AddManyEntry[N]
		for _, e := range q.commands[i].adds {
			if used[e.Symbol.virtual] {
				kept = append(kept, e)
			}
		}
		q.commands[i].adds = kept
	}
}

// Apply resolves every virtual symbol's dependency order via a
// topological sort (gonum's Kahn's-algorithm implementation, spec
// §4.2) and replays the queue's adds and unions against g in that
// order, returning each virtual symbol's resolved call.
func (q *Queue[N]) Apply(g *EGraph[N]) (map[int]EClassCall, error) {
	entries := make(map[int]AddManyEntry[N])
	for _, cmd := range q.commands {
		for _, e := range cmd.adds {
			if !e.Symbol.IsVirtual() {
				return nil, errors.New("egraph: AddMany entry must target a virtual symbol")
			}
			entries[e.Symbol.virtual] = e
		}
	}

	dg := simple.NewDirectedGraph()
	for id := range entries {
		dg.AddNode(simple.Node(int64(id)))
	}
	for id, e := range entries {
		for _, a := range e.Node.Args {
			if !a.Symbol.IsVirtual() {
				continue
			}
			if _, ok := entries[a.Symbol.virtual]; !ok {
				return nil, errors.Errorf("egraph: virtual symbol v%d referenced but never defined", a.Symbol.virtual)
			}
			dg.SetEdge(dg.NewEdge(simple.Node(int64(a.Symbol.virtual)), simple.Node(int64(id))))
		}
	}

	order, err := topo.Sort(dg)
	if err != nil {
		return nil, errors.Wrap(err, "egraph: command queue has a cyclic virtual-symbol dependency")
	}

	resolved := make(map[int]EClassCall, len(entries))
	resolveCall := func(sc SymbolCall) EClassCall {
		if sc.Symbol.IsVirtual() {
			base := resolved[sc.Symbol.virtual]
			return EClassCall{Ref: base.Ref, Args: base.Args.ComposeRetain(sc.Args)}
		}
		return EClassCall{Ref: sc.Symbol.ref, Args: sc.Args}
	}

	for _, n := range order {
		id := int(n.ID())
		entry := entries[id]
		args := make([]EClassCall, len(entry.Node.Args))
		for i, a := range entry.Node.Args {
			args[i] = resolveCall(a)
		}
		node := ENode[N]{
			Kind:        entry.Node.Kind,
			Definitions: entry.Node.Definitions,
			Uses:        entry.Node.Uses,
			Args:        args,
		}
		call, _ := g.Add(node)
		resolved[id] = call
	}

	for _, cmd := range q.commands {
		for _, u := range cmd.unions {
			g.Union(resolveCall(u.A), resolveCall(u.B))
		}
	}

	return resolved, nil
}
