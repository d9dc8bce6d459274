package parallelmap

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplyPreservesOrderSequential(t *testing.T) {
	pm := Sequential()
	items := []int{5, 4, 3, 2, 1}
	out := Apply(pm, items, func(n int) int { return n * n })
	require.Equal(t, []int{25, 16, 9, 4, 1}, out)
}

func TestApplyPreservesOrderParallel(t *testing.T) {
	pm := Parallel()
	items := make([]int, 200)
	for i := range items {
		items[i] = i
	}
	out := Apply(pm, items, func(n int) int { return n * 2 })
	for i, v := range out {
		require.Equal(t, i*2, v)
	}
}

func TestFixedThreadParallelCollapsesToSequentialAtOne(t *testing.T) {
	pm := FixedThreadParallel(1)
	var active int32
	var maxActive int32
	Apply(pm, []int{1, 2, 3}, func(n int) int {
		cur := atomic.AddInt32(&active, 1)
		if cur > maxActive {
			maxActive = cur
		}
		atomic.AddInt32(&active, -1)
		return n
	})
	require.EqualValues(t, 1, maxActive)
}

func TestFixedThreadParallelBoundsConcurrency(t *testing.T) {
	pm := FixedThreadParallel(2)
	var active int32
	var maxActive int32
	items := make([]int, 20)
	Apply(pm, items, func(n int) int {
		cur := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if cur <= m || atomic.CompareAndSwapInt32(&maxActive, m, cur) {
				break
			}
		}
		atomic.AddInt32(&active, -1)
		return n
	})
	require.LessOrEqual(t, maxActive, int32(2))
}

func TestCancelablePanicsOnCanceledToken(t *testing.T) {
	token := NewCancellationToken()
	token.Cancel()
	pm := Sequential().Cancelable(token)
	require.PanicsWithValue(t, OperationCanceled{}, func() {
		Apply(pm, []int{1, 2, 3}, func(n int) int { return n })
	})
}

func TestCancelableMidDispatchStopsEarly(t *testing.T) {
	token := NewCancellationToken()
	pm := Sequential().Cancelable(token)
	var seen []int
	require.Panics(t, func() {
		Apply(pm, []int{1, 2, 3, 4}, func(n int) int {
			if n == 3 {
				token.Cancel()
			}
			seen = append(seen, n)
			return n
		})
	})
	require.Equal(t, []int{1, 2, 3}, seen)
}

func TestCollectFromGathersVariableCounts(t *testing.T) {
	pm := Sequential()
	items := []int{1, 2, 3}
	out := CollectFrom(pm, items, func(n int, sink func(int)) {
		for i := 0; i < n; i++ {
			sink(n)
		}
	})
	require.Len(t, out, 1+2+3)
}

func TestTimedRecordsRunAndApplyWindows(t *testing.T) {
	pm, tim := Sequential().Timed()
	pm.Run(func() {})
	Apply(pm, []int{1, 2, 3}, func(n int) int { return n })
	require.GreaterOrEqual(t, tim.Total(), time.Duration(0))
}

func TestChildNestsUnderParentTiming(t *testing.T) {
	pm, tim := Sequential().Timed()
	child := pm.Child("search")
	child.Run(func() {})
	children := tim.Children()
	_, ok := children["search"]
	require.True(t, ok)
}
