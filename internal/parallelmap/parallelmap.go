// Package parallelmap is the single dispatch point for parallel work in
// the core (spec §4.7, §5): an order-preserving Apply, a thread-safe
// CollectFrom, named Child sub-dispatchers for Timed's wall-clock
// windows, and cooperative Cancelable checkpoints.
//
// This replaces the teacher's internal/parallel.WorkerPool — a
// hand-rolled, dynamically-scaling channel/goroutine pool with its own
// backpressure controller and deadlock detector. That machinery fits a
// long-lived goal-evaluation pool; the e-graph's embarrassingly-parallel
// fan-out (canonicalize these nodes, search these rules) is better
// served by the standard extended-stdlib idiom the wider pack reaches
// for the same shape of problem: golang.org/x/sync/errgroup for
// cancellation-aware fan-out, golang.org/x/sync/semaphore to bound
// concurrency for the fixed-thread variant. The teacher's
// panic-recover-into-stats pattern is not carried over: this package
// recovers nothing, and a panic from fn (including OperationCanceled)
// propagates out of the dispatch.
package parallelmap

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// OperationCanceled is raised at a cancellation checkpoint (spec §7
// kind 5). It is propagated by panic/recover rather than a threaded
// error return: Apply's callers (searchers, TryAddMany's canonicalize
// step) have no natural error channel of their own, and the spec
// requires every enclosing strategy to simply let it propagate rather
// than inspect it mid-dispatch.
type OperationCanceled struct{}

func (OperationCanceled) Error() string { return "parallelmap: operation canceled" }

// CancellationToken is an atomic, cooperative cancel flag. It is safe
// for concurrent use; Cancel may be called from any goroutine,
// including one never returned to the caller of the cancelable
// ParallelMap.
type CancellationToken struct {
	canceled atomic.Bool
}

// NewCancellationToken returns a token in the not-canceled state.
func NewCancellationToken() *CancellationToken { return &CancellationToken{} }

// Cancel flips the token to canceled. Idempotent.
func (t *CancellationToken) Cancel() { t.canceled.Store(true) }

// Canceled reports the token's current state.
func (t *CancellationToken) Canceled() bool { return t.canceled.Load() }

// mode selects how ParallelMap.Apply/Run dispatch work.
type mode uint8

const (
	modeSequential mode = iota
	modeParallel
	modeFixedThread
)

// ParallelMap is the uniform dispatch point described in spec §4.7.
// The zero value is not usable; construct one with Sequential, Parallel,
// or FixedThreadParallel.
type ParallelMap struct {
	mode  mode
	limit int // only meaningful for modeFixedThread; n=1 collapses to sequential
	name  string
	token *CancellationToken
	tim   *Timing
}

// Sequential returns a ParallelMap that runs everything on the calling
// goroutine, in input order — the baseline every other variant must
// behave identically to when parallelism can't change the observable
// result (spec §5: "parallel execution preserves determinism").
func Sequential() *ParallelMap { return &ParallelMap{mode: modeSequential, name: "root"} }

// Parallel returns a ParallelMap that fans work out across up to
// runtime.NumCPU() goroutines via errgroup, collecting results back in
// input order.
func Parallel() *ParallelMap { return &ParallelMap{mode: modeParallel, name: "root"} }

// FixedThreadParallel returns a ParallelMap bounded to n concurrent
// goroutines via a weighted semaphore. n=1 collapses to Sequential, per
// spec §4.7.
func FixedThreadParallel(n int) *ParallelMap {
	if n <= 1 {
		return Sequential()
	}
	return &ParallelMap{mode: modeFixedThread, limit: n, name: "root"}
}

// Child returns a ParallelMap with the same dispatch mode and
// cancellation token as p, but its own named Timing node nested under
// p's (only observable once Timed has been called somewhere in the
// chain) — spec §4.7's `child(name)`.
func (p *ParallelMap) Child(name string) *ParallelMap {
	child := &ParallelMap{mode: p.mode, limit: p.limit, name: name, token: p.token}
	if p.tim != nil {
		child.tim = p.tim.child(name)
	}
	return child
}

// Cancelable returns a ParallelMap that checks token at every dispatch
// checkpoint and before every element invocation, panicking with
// OperationCanceled (spec §7 kind 5) the first time it observes token
// canceled.
func (p *ParallelMap) Cancelable(token *CancellationToken) *ParallelMap {
	c := *p
	c.token = token
	return &c
}

// Timed returns a ParallelMap that records wall-clock windows for Run
// and Apply calls made through it (and its descendants via Child) into
// a shared Timing tree, queryable concurrently — spec §4.7's
// TimedParallelMap, §5's "mutable timing state behind a mutex."
func (p *ParallelMap) Timed() (*ParallelMap, *Timing) {
	tim := newTiming(p.name)
	c := *p
	c.tim = tim
	return &c, tim
}

func (p *ParallelMap) checkpoint() {
	if p.token != nil && p.token.Canceled() {
		panic(OperationCanceled{})
	}
}

// Run executes block under p's timing window (a no-op if p is not
// Timed), checking p's cancellation checkpoint first.
func (p *ParallelMap) Run(block func()) {
	p.checkpoint()
	if p.tim == nil {
		block()
		return
	}
	start := time.Now()
	defer func() { p.tim.record(time.Since(start)) }()
	block()
}

// Apply maps fn over items, preserving input order in the result
// regardless of dispatch mode (spec §5: ordering is a correctness
// requirement, not an optimization detail — union-merge ordering and
// extraction tie-breaks depend on it). The cancellation checkpoint is
// checked once before dispatch and once more before each element's
// invocation; a panic from fn on one element is allowed to propagate
// and cancels the remaining elements the same way a real exception
// would (this function does not swallow Applier panics — callers that
// need kind-6 wrapping do that at the rule layer, see pkg/rule).
func Apply[T, R any](p *ParallelMap, items []T, fn func(T) R) []R {
	p.checkpoint()
	out := make([]R, len(items))
	if len(items) == 0 {
		return out
	}

	start := time.Now()
	if p.tim != nil {
		defer func() { p.tim.record(time.Since(start)) }()
	}

	switch p.mode {
	case modeSequential:
		for i, item := range items {
			p.checkpoint()
			out[i] = fn(item)
		}
		return out
	case modeFixedThread:
		applyBounded(p, items, fn, out, int64(p.limit))
		return out
	default: // modeParallel
		applyBounded(p, items, fn, out, int64(runtime.NumCPU()))
		return out
	}
}

func applyBounded[T, R any](p *ParallelMap, items []T, fn func(T) R, out []R, weight int64) {
	sem := semaphore.NewWeighted(weight)
	g, ctx := errgroup.WithContext(context.Background())
	for i, item := range items {
		i, item := i, item
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			p.checkpoint()
			out[i] = fn(item)
			return nil
		})
	}
	_ = g.Wait()
}

// CollectFrom runs fn once per item (dispatched the same way Apply
// dispatches), handing each invocation a thread-safe sink to push zero
// or more results of type R. Unlike Apply, the result count need not
// match len(items) — this is spec §4.7's `collectFrom(callback→sink)`,
// used where a single input can contribute any number of outputs (a
// searcher producing a variable number of matches per class, say)
// rather than exactly one.
func CollectFrom[T, R any](p *ParallelMap, items []T, fn func(item T, sink func(R))) []R {
	p.checkpoint()
	var mu sync.Mutex
	var out []R
	push := func(r R) {
		mu.Lock()
		out = append(out, r)
		mu.Unlock()
	}
	Apply(p, items, func(item T) struct{} {
		fn(item, push)
		return struct{}{}
	})
	return out
}

// Timing is a wall-clock window tree: one node per named ParallelMap
// (root plus every distinct Child name reached through it), its own
// accumulated self time, and child nodes for nested dispatch. Safe for
// concurrent recording and querying (spec §5: "timing can be queried
// concurrently").
type Timing struct {
	mu       sync.Mutex
	name     string
	total    time.Duration
	children map[string]*Timing
}

func newTiming(name string) *Timing {
	return &Timing{name: name, children: map[string]*Timing{}}
}

func (t *Timing) child(name string) *Timing {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.children[name]; ok {
		return c
	}
	c := newTiming(name)
	t.children[name] = c
	return c
}

func (t *Timing) record(d time.Duration) {
	t.mu.Lock()
	t.total += d
	t.mu.Unlock()
}

// Total returns the accumulated wall-clock time recorded at this node
// (not including children).
func (t *Timing) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Name returns the node's ParallelMap name ("root" for the top level).
func (t *Timing) Name() string { return t.name }

// Children returns a snapshot of the node's named child windows.
func (t *Timing) Children() map[string]*Timing {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]*Timing, len(t.children))
	for k, v := range t.children {
		out[k] = v
	}
	return out
}
