package egraph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foresight-lang/foresight/pkg/slotted"
)

type testOp string

func (o testOp) String() string { return string(o) }

const (
	opLeaf testOp = "leaf"
	opPair testOp = "pair"
	opAdd  testOp = "add"
)

func TestAddDeduplicatesLeaf(t *testing.T) {
	g := New[testOp]()
	c1, r1 := g.Add(Leaf(opLeaf))
	c2, r2 := g.Add(Leaf(opLeaf))
	require.Equal(t, Added, r1)
	require.Equal(t, AlreadyThere, r2)
	require.True(t, c1.Ref.Equal(c2.Ref))
}

func TestAddDeduplicatesRepeatedCompoundNode(t *testing.T) {
	g := New[testOp]()

	leaf, _ := g.Add(Leaf(opLeaf))

	node1 := NewENode(opAdd, nil, nil, []EClassCall{
		{Ref: leaf.Ref, Args: slotted.EmptySlotMap},
		{Ref: leaf.Ref, Args: slotted.EmptySlotMap},
	})
	c1, r1 := g.Add(node1)
	c2, r2 := g.Add(node1)
	require.Equal(t, Added, r1)
	require.Equal(t, AlreadyThere, r2)
	require.True(t, c1.Ref.Equal(c2.Ref))
	require.True(t, c1.Args.Equal(c2.Args))
}

func TestAddBuildsCorrectClassParams(t *testing.T) {
	src := slotted.NewSource()
	g := New[testOp]()

	p, q := src.Fresh(), src.Fresh()
	node := NewENode[testOp](opPair, nil, []slotted.Slot{p, q}, nil)
	call, result := g.Add(node)
	require.Equal(t, Added, result)
	require.True(t, call.Args.Keys().Equal(slotted.NewSlotSet(p, q)))
}

func TestUnionOfSameClassWithSwappedArgsRecordsPermutation(t *testing.T) {
	src := slotted.NewSource()
	g := New[testOp]()

	p, q := src.Fresh(), src.Fresh()
	node := NewENode[testOp](opPair, nil, []slotted.Slot{p, q}, nil)
	call, _ := g.Add(node)

	identity := EClassCall{Ref: call.Ref, Args: slotted.NewSlotMap([2]slotted.Slot{p, p}, [2]slotted.Slot{q, q})}
	swapped := EClassCall{Ref: call.Ref, Args: slotted.NewSlotMap([2]slotted.Slot{p, q}, [2]slotted.Slot{q, p})}

	g.Union(identity, swapped)

	group := g.Permutations(identity)
	swap := slotted.NewSlotMap([2]slotted.Slot{p, q}, [2]slotted.Slot{q, p})
	require.True(t, group.Contains(swap))
	require.Equal(t, 2, group.Size())
}

func TestUnionMergesTwoDistinctClasses(t *testing.T) {
	g := New[testOp]()

	a, _ := g.Add(Leaf(opLeaf))
	b, _ := g.Add(NewENode[testOp](opAdd, nil, nil, []EClassCall{a, a}))
	c, _ := g.Add(NewENode[testOp](opPair, nil, nil, nil))

	require.False(t, g.AreSame(b, c))
	g.Union(b, c)
	require.True(t, g.AreSame(b, c))
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	g := New[testOp]()
	a, _ := g.Add(Leaf(opLeaf))
	b, _ := g.Add(NewENode[testOp](opAdd, nil, nil, []EClassCall{a, a}))
	c, _ := g.Add(NewENode[testOp](opPair, nil, nil, nil))
	g.Union(b, c)

	once := g.Canonicalize(b)
	twice := g.Canonicalize(once)
	require.True(t, once.Equal(twice))
}

func TestQueueAppliesAddsInDependencyOrder(t *testing.T) {
	g := New[testOp]()
	q := NewQueue[testOp]()

	vLeaf := q.Fresh()
	vAdd := q.Fresh()
	q.Push(AddMany(
		AddManyEntry[testOp]{Symbol: vAdd, Node: PendingNode[testOp]{
			Kind: opAdd,
			Args: []SymbolCall{
				{Symbol: vLeaf, Args: slotted.EmptySlotMap},
				{Symbol: vLeaf, Args: slotted.EmptySlotMap},
			},
		}},
		AddManyEntry[testOp]{Symbol: vLeaf, Node: PendingNode[testOp]{Kind: opLeaf}},
	))

	resolved, err := q.Apply(g)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	require.True(t, resolved[vAdd.virtual].Ref.Valid())

	nodes := g.Nodes(resolved[vAdd.virtual])
	require.Len(t, nodes, 1)
	require.Equal(t, opAdd, nodes[0].Kind)
}

func TestQueueSimplifyDropsDeadAdds(t *testing.T) {
	q := NewQueue[testOp]()
	live := q.Fresh()
	dead := q.Fresh()
	q.Push(AddMany(
		AddManyEntry[testOp]{Symbol: live, Node: PendingNode[testOp]{Kind: opLeaf}},
		AddManyEntry[testOp]{Symbol: dead, Node: PendingNode[testOp]{Kind: opLeaf}},
	))
	q.Push(UnionManyCommand[testOp](UnionEntry{A: SymbolCall{Symbol: live}, B: SymbolCall{Symbol: live}}))
	q.Simplify()
	require.Len(t, q.commands[0].adds, 1)
	require.Equal(t, live, q.commands[0].adds[0].Symbol)
}
