package egraph

import (
	"testing"

	"pgregory.net/rapid"
)

// genTree builds a random testOp tree (leaf/pair/add) of bounded depth,
// inserting each subterm as it's built so shared structure sometimes
// hash-conses to the same class, then returns the root call.
func genTree(t *rapid.T, g *EGraph[testOp], depth int) EClassCall {
	if depth <= 0 || rapid.Bool().Draw(t, "leaf") {
		call, _ := g.Add(Leaf(opLeaf))
		return call
	}
	kind := opAdd
	if rapid.Bool().Draw(t, "kind") {
		kind = opPair
	}
	left := genTree(t, g, depth-1)
	right := genTree(t, g, depth-1)
	call, _ := g.Add(NewENode[testOp](kind, nil, nil, []EClassCall{left, right}))
	return call
}

// TestCanonicalizeIsIdempotentProperty generalizes
// TestCanonicalizeIsIdempotent (spec §8: "canonicalize(canonicalize(x))
// = canonicalize(x)") across randomly built trees and randomly chosen
// unions among their roots, rather than one fixed 3-node graph.
func TestCanonicalizeIsIdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := New[testOp]()

		roots := make([]EClassCall, rapid.IntRange(1, 5).Draw(t, "numRoots"))
		for i := range roots {
			roots[i] = genTree(t, g, rapid.IntRange(0, 3).Draw(t, "depth"))
		}

		numUnions := rapid.IntRange(0, 4).Draw(t, "numUnions")
		for i := 0; i < numUnions; i++ {
			a := roots[rapid.IntRange(0, len(roots)-1).Draw(t, "unionA")]
			b := roots[rapid.IntRange(0, len(roots)-1).Draw(t, "unionB")]
			g.Union(a, b)
		}

		for _, r := range roots {
			once := g.Canonicalize(r)
			twice := g.Canonicalize(once)
			if !once.Equal(twice) {
				t.Fatalf("canonicalize not idempotent: once=%v twice=%v", once, twice)
			}
		}
	})
}

// TestHashConsIntegrityProperty checks spec §8's hash-cons integrity
// invariant after a random sequence of adds and unions: every
// currently canonical class's stored shapes all hash-cons back to that
// same class, and no two distinct canonical classes share a shape.
func TestHashConsIntegrityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := New[testOp]()

		roots := make([]EClassCall, rapid.IntRange(1, 6).Draw(t, "numRoots"))
		for i := range roots {
			roots[i] = genTree(t, g, rapid.IntRange(0, 3).Draw(t, "depth"))
		}
		numUnions := rapid.IntRange(0, 5).Draw(t, "numUnions")
		for i := 0; i < numUnions; i++ {
			a := roots[rapid.IntRange(0, len(roots)-1).Draw(t, "unionA")]
			b := roots[rapid.IntRange(0, len(roots)-1).Draw(t, "unionB")]
			g.Union(a, b)
		}

		seenShapes := map[string]int{}
		for id, class := range g.classes {
			root, _ := g.uf.find(EClassRef{id: id})
			if root.id != id {
				continue // not currently canonical
			}
			for key := range class.nodes {
				if owner, ok := g.hashcons[key]; !ok || owner.id != id {
					t.Fatalf("shape %q stored in class %d but hash-cons points to %v", key, id, owner)
				}
				if prev, dup := seenShapes[key]; dup && prev != id {
					t.Fatalf("shape %q owned by two canonical classes %d and %d", key, prev, id)
				}
				seenShapes[key] = id
			}
		}
	})
}
