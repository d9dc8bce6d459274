// Package saturation runs rules to a fixpoint (spec §4.8): a Strategy
// decides which matches of which rules get applied in a round, and
// RepeatUntilStable repeats rounds until nothing changes or an
// iteration cap is hit.
//
// The default strategy mirrors the teacher's own "stage everything,
// commit once" discipline (pkg/minikanren/engine.go's staged goal
// evaluation): every rule is searched against the same frozen snapshot
// of the graph, every replacement gets added, and only then are the
// resulting unions applied as one batch — so a round's matches never
// see another match's union land mid-round, the same determinism
// guarantee the teacher's engine gives a staged conjunction of goals.
package saturation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/pattern"
	"github.com/foresight-lang/foresight/pkg/rule"

	"github.com/foresight-lang/foresight/internal/parallelmap"
)

// Strategy runs one round of rule application against g, mutating it
// in place, and reports whether the round changed anything (spec
// §4.8: "apply returns the new e-graph, or none if nothing changed" —
// since EGraph is a mutable engine rather than a persistent structure
// here, "none" is expressed as changed=false rather than a nil graph).
type Strategy[N egraph.Language] func(g *egraph.EGraph[N]) (changed bool, err error)

type snapshotString string

func (s snapshotString) String() string { return string(s) }

// edit pairs a match's root with its instantiated replacement, the
// unit a round batches before committing any unions.
type edit[N egraph.Language] struct {
	rule   string
	root   egraph.EClassCall
	result egraph.EClassCall
}

func applyMatches[N egraph.Language](g *egraph.EGraph[N], r rule.Rule[N], matches []pattern.PatternMatch[N]) ([]edit[N], error) {
	edits := make([]edit[N], 0, len(matches))
	for _, m := range matches {
		result, err := r.Apply(g, m)
		if err != nil {
			snap := snapshotString(fmt.Sprintf("%d classes", len(g.Classes())))
			return edits, egraph.ApplyErr(r.Name, snap, err)
		}
		edits = append(edits, edit[N]{rule: r.Name, root: m.Root, result: result})
	}
	return edits, nil
}

// commitEdits drops any edit whose root and result already canonicalize
// to the same class before unioning the rest as one batch, so a round
// that only rediscovers matches it already acted on correctly reports
// no change instead of looping until RepeatUntilStable's iteration cap
// — a trivial `Union(a, a)` is a real call but never an observable one.
func commitEdits[N egraph.Language](g *egraph.EGraph[N], edits []edit[N]) bool {
	pairs := make([][2]egraph.EClassCall, 0, len(edits))
	for _, e := range edits {
		if g.AreSame(e.root, e.result) {
			continue
		}
		pairs = append(pairs, [2]egraph.EClassCall{e.root, e.result})
	}
	if len(pairs) == 0 {
		return false
	}
	g.UnionMany(pairs)
	return true
}

// MaximalRuleApplication searches every rule in rules against the
// current graph, instantiates every match's replacement, and unions
// all of them in a single batch (spec §4.8's default strategy): rule
// order only affects the order replacements are added in, never which
// matches are found, since searching happens before any union lands.
//
// pm dispatches the per-rule search phase (Parallel or
// FixedThreadParallel is the common choice; Sequential is
// deterministic single-threaded replay for tests).
func MaximalRuleApplication[N egraph.Language](rules []rule.Rule[N], pm *parallelmap.ParallelMap) Strategy[N] {
	return func(g *egraph.EGraph[N]) (bool, error) {
		matchSets := parallelmap.Apply(pm, rules, func(r rule.Rule[N]) []pattern.PatternMatch[N] {
			return r.Search(g)
		})

		var edits []edit[N]
		for i, r := range rules {
			found, err := applyMatches(g, r, matchSets[i])
			edits = append(edits, found...)
			if err != nil {
				commitEdits(g, edits)
				return len(edits) > 0, err
			}
		}
		return commitEdits(g, edits), nil
	}
}

// RepeatUntilStable repeats inner's rounds until a round reports no
// change or maxIterations rounds have run (maxIterations<=0 means no
// cap), returning whether any round ever changed the graph — spec
// §4.8's `saturate(eg, strategy, maxIterations) → (eg, reachedFixpoint)`.
// The returned bool is not reachedFixpoint: whether the loop stopped
// at a fixpoint or at the cap is not reported.
func RepeatUntilStable[N egraph.Language](inner Strategy[N], maxIterations int) Strategy[N] {
	return func(g *egraph.EGraph[N]) (bool, error) {
		any := false
		for i := 0; maxIterations <= 0 || i < maxIterations; i++ {
			changed, err := inner(g)
			if changed {
				any = true
			}
			if err != nil {
				return any, err
			}
			if !changed {
				break
			}
		}
		return any, nil
	}
}

// matchKey builds a deterministic identity for a match, canonicalized
// through g so a match re-found after unrelated unions compares equal
// to its earlier self (spec §4.8: "already-applied matches are ported
// across rebuilds rather than forgotten").
func matchKey[N egraph.Language](g *egraph.EGraph[N], m pattern.PatternMatch[N]) string {
	type binding struct{ name, call string }
	bindings := make([]binding, 0, len(m.Bindings))
	for v, call := range m.Bindings {
		bindings = append(bindings, binding{v.String(), g.Canonicalize(call).String()})
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].name < bindings[j].name })

	var b strings.Builder
	b.WriteString(g.Canonicalize(m.Root).String())
	for _, kv := range bindings {
		b.WriteByte('|')
		b.WriteString(kv.name)
		b.WriteByte('=')
		b.WriteString(kv.call)
	}
	return b.String()
}

// CachingStrategy wraps MaximalRuleApplication's per-rule search with
// an already-applied set, keyed per rule name so two different rules
// matching the same shape don't shadow each other. A match whose
// canonical key has already been seen for its rule is skipped before
// instantiation — the common case once a rule set approaches
// saturation, where most of a round's search rediscovers matches
// already acted on in an earlier round.
//
// Grounded on the teacher's pkg/minikanren/tabling.go: a tabled goal
// remembers which argument shapes it has already resolved so repeated
// calls short-circuit instead of re-deriving the same answer: here the
// "argument shape" is a match's canonicalized root and bindings, and
// the "table" is reset only by constructing a new CachingStrategy.
func CachingStrategy[N egraph.Language](rules []rule.Rule[N], pm *parallelmap.ParallelMap) Strategy[N] {
	seen := make(map[string]map[string]struct{}, len(rules))
	for _, r := range rules {
		seen[r.Name] = map[string]struct{}{}
	}

	return func(g *egraph.EGraph[N]) (bool, error) {
		matchSets := parallelmap.Apply(pm, rules, func(r rule.Rule[N]) []pattern.PatternMatch[N] {
			return r.Search(g)
		})

		var edits []edit[N]
		for i, r := range rules {
			table := seen[r.Name]
			fresh := make([]pattern.PatternMatch[N], 0, len(matchSets[i]))
			keys := make([]string, 0, len(matchSets[i]))
			for _, m := range matchSets[i] {
				key := matchKey(g, m)
				if _, ok := table[key]; ok {
					continue
				}
				fresh = append(fresh, m)
				keys = append(keys, key)
			}

			found, err := applyMatches(g, r, fresh)
			edits = append(edits, found...)
			for _, k := range keys {
				table[k] = struct{}{}
			}
			if err != nil {
				commitEdits(g, edits)
				return len(edits) > 0, err
			}
		}
		return commitEdits(g, edits), nil
	}
}

// MatchPriorities assigns a nonnegative sampling weight to a rule's
// match and decides how many of the pooled candidates across all
// rules a round should draw (spec §4.8's stochastic strategy). Weight
// zero means "never draw this match"; BatchSize is given the total
// number of candidates pooled across every rule this round.
type MatchPriorities[N egraph.Language] interface {
	Weight(ruleName string, m pattern.PatternMatch[N]) float64
	BatchSize(total int) int
}

// UniformPriorities is the simplest MatchPriorities: every match
// weighs 1, and each round draws a fixed count (or every candidate, if
// fewer are available).
type UniformPriorities[N egraph.Language] struct{ Count int }

func (u UniformPriorities[N]) Weight(string, pattern.PatternMatch[N]) float64 { return 1 }

func (u UniformPriorities[N]) BatchSize(total int) int {
	if u.Count <= 0 || u.Count > total {
		return total
	}
	return u.Count
}

// candidate pools a rule and one of its matches for weighted sampling.
type candidate[N egraph.Language] struct {
	rule  rule.Rule[N]
	match pattern.PatternMatch[N]
}

// StochasticStrategy pools every rule's matches for the round, draws a
// weighted sample without replacement sized by priorities.BatchSize,
// and applies only the drawn matches — spec §4.8's open question on
// "what does a stochastic round even mean" resolved as: the batch size
// policy operates on the pooled candidate count across all rules
// (rather than per-rule), so a rule producing many more matches than
// another is correspondingly more likely to be drawn; weighting is left
// entirely to MatchPriorities.Weight to compensate for that if a
// caller wants per-rule emphasis instead.
//
// Sampling without replacement uses the weighted-reservoir identity
// (draw an exponential key u^(1/w) per candidate from rng, keep the
// top batchSize by key) rather than repeated weighted draws with
// removal, since it needs only one pass and one sort and gives the
// same distribution.
func StochasticStrategy[N egraph.Language](rules []rule.Rule[N], priorities MatchPriorities[N], rng *rand.Rand, pm *parallelmap.ParallelMap) Strategy[N] {
	return func(g *egraph.EGraph[N]) (bool, error) {
		matchSets := parallelmap.Apply(pm, rules, func(r rule.Rule[N]) []pattern.PatternMatch[N] {
			return r.Search(g)
		})

		var pool []candidate[N]
		for i, r := range rules {
			for _, m := range matchSets[i] {
				pool = append(pool, candidate[N]{rule: r, match: m})
			}
		}
		if len(pool) == 0 {
			return false, nil
		}

		k := priorities.BatchSize(len(pool))
		if k <= 0 {
			return false, nil
		}
		if k > len(pool) {
			k = len(pool)
		}

		type keyed struct {
			key float64
			c   candidate[N]
		}
		keys := make([]keyed, 0, len(pool))
		for _, c := range pool {
			w := priorities.Weight(c.rule.Name, c.match)
			if w <= 0 {
				continue
			}
			u := rng.Float64()
			// u^(1/w): higher weight compresses u toward 1, so heavier
			// candidates systematically rank ahead without ever being
			// guaranteed a slot over a merely-unlucky one.
			key := math.Pow(u, 1/w)
			keys = append(keys, keyed{key: key, c: c})
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].key > keys[j].key })
		if k > len(keys) {
			k = len(keys)
		}

		var edits []edit[N]
		var firstErr error
		for _, kc := range keys[:k] {
			result, err := kc.c.rule.Apply(g, kc.c.match)
			if err != nil {
				snap := snapshotString(fmt.Sprintf("%d classes", len(g.Classes())))
				firstErr = egraph.ApplyErr(kc.c.rule.Name, snap, err)
				break
			}
			edits = append(edits, edit[N]{rule: kc.c.rule.Name, root: kc.c.match.Root, result: result})
		}
		return commitEdits(g, edits), firstErr
	}
}
