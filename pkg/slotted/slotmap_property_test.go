package slotted

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// genPermutation draws a uniformly random permutation of 0..n-1 via
// Fisher-Yates, each swap index drawn through rapid so shrinking still
// applies.
func genPermutation(t *rapid.T, n int, label string) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rapid.IntRange(0, i).Draw(t, fmt.Sprintf("%s.swap%d", label, i))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// genSlotMap draws a small bijective SlotMap over numeric slots
// 0..n-1 mapped to a random permutation of offset..offset+n-1, so
// every drawn map satisfies spec §3's IsBijection precondition for
// Inverse without the generator having to retry on a failed shot.
func genSlotMap(t *rapid.T, label string) SlotMap {
	n := rapid.IntRange(0, 6).Draw(t, label+".n")
	offset := rapid.IntRange(0, 20).Draw(t, label+".offset")
	perm := genPermutation(t, n, label+".perm")

	m := EmptySlotMap
	for i := 0; i < n; i++ {
		m = m.Set(Numbered(int64(i)), Numbered(int64(offset+perm[i])))
	}
	return m
}

// TestSlotMapAlgebraProperties checks the SlotMap algebra identities
// spec §8 names: identity-compose, inverse-of-inverse, and
// compose-with-inverse-is-identity-on-keys, over randomly drawn
// bijective maps.
func TestSlotMapAlgebraProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := genSlotMap(t, "m")

		if !m.IsBijection() {
			t.Fatalf("genSlotMap produced a non-bijection: %v", m)
		}

		// identity(S).compose(m) = m whenever m.keys ⊆ S.
		id := Identity(m.Keys())
		if !id.Compose(m).Equal(m) {
			t.Fatalf("Identity(m.Keys()).Compose(m) != m: got %v want %v", id.Compose(m), m)
		}

		// m.inverse.inverse = m.
		inv := m.Inverse()
		if !inv.Inverse().Equal(m) {
			t.Fatalf("m.Inverse().Inverse() != m: got %v want %v", inv.Inverse(), m)
		}

		// m.compose(m.inverse) = identity(m.keys).
		composed := m.Compose(inv)
		want := Identity(m.Keys())
		if !composed.Equal(want) {
			t.Fatalf("m.Compose(m.Inverse()) != Identity(m.Keys()): got %v want %v", composed, want)
		}
	})
}

// TestSlotSetAlgebraProperties checks SlotSet's set-algebra identities
// over randomly drawn sets: union/intersect/minus agree with a plain
// map-based reference implementation, and subsetOf is consistent with
// union/intersect.
func TestSlotSetAlgebraProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		araw := rapid.SliceOfN(rapid.IntRange(0, 15), 0, 10).Draw(t, "a")
		braw := rapid.SliceOfN(rapid.IntRange(0, 15), 0, 10).Draw(t, "b")

		a := toSlotSet(araw)
		b := toSlotSet(braw)

		union := a.Union(b)
		inter := a.Intersect(b)
		minus := a.Minus(b)

		refUnion := refSet(araw, braw, func(inA, inB bool) bool { return inA || inB })
		refInter := refSet(araw, braw, func(inA, inB bool) bool { return inA && inB })
		refMinus := refSet(araw, braw, func(inA, inB bool) bool { return inA && !inB })

		if !union.Equal(refUnion) {
			t.Fatalf("Union mismatch: got %v want %v", union, refUnion)
		}
		if !inter.Equal(refInter) {
			t.Fatalf("Intersect mismatch: got %v want %v", inter, refInter)
		}
		if !minus.Equal(refMinus) {
			t.Fatalf("Minus mismatch: got %v want %v", minus, refMinus)
		}
		if !inter.SubsetOf(a) || !inter.SubsetOf(b) {
			t.Fatalf("Intersect(a,b) must be a subset of both a and b")
		}
	})
}

func toSlotSet(nums []int) SlotSet {
	slots := make([]Slot, len(nums))
	for i, n := range nums {
		slots[i] = Numbered(int64(n))
	}
	return NewSlotSet(slots...)
}

func refSet(araw, braw []int, keep func(inA, inB bool) bool) SlotSet {
	inA := map[int]bool{}
	inB := map[int]bool{}
	for _, n := range araw {
		inA[n] = true
	}
	for _, n := range braw {
		inB[n] = true
	}
	seen := map[int]bool{}
	var out []int
	for n := range inA {
		seen[n] = true
	}
	for n := range inB {
		seen[n] = true
	}
	for n := range seen {
		if keep(inA[n], inB[n]) {
			out = append(out, n)
		}
	}
	return toSlotSet(out)
}
