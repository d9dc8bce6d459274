package analysis

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foresight-lang/foresight/pkg/egraph"
)

type numOp string

func (o numOp) String() string { return string(o) }

const opAdd numOp = "add"

func constOp(n int) numOp { return numOp("const:" + strconv.Itoa(n)) }

// newConstantFolder builds a metadata-wrapped e-graph tracking, for
// each class, the constant value its nodes fold to (spec §4.5's
// running example, a constant-propagation analysis). Make closes over
// the wrapper itself to read its already-computed children's facts,
// which is why m is declared before the Analysis that references it.
func newConstantFolder(t *testing.T) (*egraph.EGraph[numOp], *EGraphWithMetadata[numOp, int]) {
	t.Helper()
	g := egraph.New[numOp]()
	var m *EGraphWithMetadata[numOp, int]
	a := Analysis[numOp, int]{
		Name: "constant-fold",
		Make: func(_ *egraph.EGraph[numOp], node egraph.ENode[numOp]) int {
			if strings.HasPrefix(string(node.Kind), "const:") {
				n, _ := strconv.Atoi(strings.TrimPrefix(string(node.Kind), "const:"))
				return n
			}
			if node.Kind == opAdd {
				left, _ := m.Data(node.Args[0])
				right, _ := m.Data(node.Args[1])
				return left + right
			}
			return 0
		},
		// max is commutative, so the merged fact is independent of
		// which node or which union side is visited first — a real
		// constant-propagation analysis would instead flag the
		// conflict, but that is beside the point being tested here.
		Join: func(a, b int) (int, bool) {
			if b > a {
				return b, true
			}
			return a, false
		},
	}
	m = New(g, a)
	return g, m
}

func TestAddComputesFactForFreshClass(t *testing.T) {
	_, m := newConstantFolder(t)
	five, _ := m.Add(egraph.Leaf(constOp(5)))
	d, ok := m.Data(five)
	require.True(t, ok)
	require.Equal(t, 5, d)
}

func TestAddFoldsConstantAddition(t *testing.T) {
	g, m := newConstantFolder(t)
	five, _ := m.Add(egraph.Leaf(constOp(5)))
	three, _ := m.Add(egraph.Leaf(constOp(3)))
	sum, _ := m.Add(egraph.NewENode[numOp](opAdd, nil, nil, []egraph.EClassCall{five, three}))

	d, ok := m.Data(sum)
	require.True(t, ok)
	require.Equal(t, 8, d)
	require.Len(t, g.Classes(), 3)
}

func TestUnionPropagatesFactChangeToUsers(t *testing.T) {
	_, m := newConstantFolder(t)
	five, _ := m.Add(egraph.Leaf(constOp(5)))
	three, _ := m.Add(egraph.Leaf(constOp(3)))
	eight, _ := m.Add(egraph.Leaf(constOp(8)))
	sum, _ := m.Add(egraph.NewENode[numOp](opAdd, nil, nil, []egraph.EClassCall{five, three}))

	d, ok := m.Data(sum)
	require.True(t, ok)
	require.Equal(t, 8, d)

	m.Union(five, eight)

	d, ok = m.Data(sum)
	require.True(t, ok)
	require.Equal(t, 11, d)
}
