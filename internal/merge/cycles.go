package merge

import (
	"sort"

	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// CycleResolver validates deferred candidate pairs whose merge legitimacy
// depends on connections that may themselves merge (feedback dataflow
// loops), and breaks structural cycles in the candidate graph.
type CycleResolver struct {
	g *network.Graph
}

// NewCycleResolver creates a resolver over the given network.
func NewCycleResolver(g *network.Graph) *CycleResolver {
	return &CycleResolver{g: g}
}

// Resolve checks a deferred pair by recursively comparing the input
// connections of its endpoints, matched by sink port name. Differing sources
// are admitted only when they are themselves a deferred pair (the cycle
// closes on itself) or already assumed merged in the substitution map being
// built. The check terminates because the substitution map strictly grows
// over a finite instance set.
func (r *CycleResolver) Resolve(pair CyclePair, deferred []CyclePair) bool {
	subst := map[string]string{pair.Removed: pair.Survivor}
	return r.check(pair.Survivor, pair.Removed, deferred, subst)
}

func (r *CycleResolver) check(survivor, removed string, deferred []CyclePair, subst map[string]string) bool {
	remIns := r.g.InputsOf(removed)
	surIns := r.g.InputsOf(survivor)

	// Ports must match exactly on both sides.
	if len(remIns) != len(surIns) {
		return false
	}
	byPort := make(map[string]network.Connection, len(surIns))
	for _, in := range surIns {
		byPort[in.SinkPort] = in
	}

	for _, rin := range remIns {
		sin, ok := byPort[rin.SinkPort]
		if !ok {
			return false
		}
		if sin.SourcePort != rin.SourcePort {
			return false
		}
		if sin.SourceID == rin.SourceID {
			continue
		}
		// Sources differ: they must already be assumed merged, or be
		// substitutable themselves. A source already assumed merged into
		// someone else cannot be assumed merged a second time.
		if prior, ok := subst[rin.SourceID]; ok {
			if prior == sin.SourceID {
				continue
			}
			return false
		}
		if !pairDeferred(deferred, sin.SourceID, rin.SourceID) {
			return false
		}
		subst[rin.SourceID] = sin.SourceID
		if !r.check(sin.SourceID, rin.SourceID, deferred, subst) {
			return false
		}
	}
	return true
}

// pairDeferred reports whether survivor -> removed is among the deferred
// pairs.
func pairDeferred(deferred []CyclePair, survivor, removed string) bool {
	for _, p := range deferred {
		if p.Survivor == survivor && p.Removed == removed {
			return true
		}
	}
	return false
}

// BreakLocalCycles resolves reciprocal candidate edges (A can replace B and
// B can replace A) with the deterministic total order: the better-ranked
// node keeps its outgoing edge, the other's is dropped. Ties fall back to
// ID order so the result is always total.
func (r *CycleResolver) BreakLocalCycles(cg *CandidateGraph) {
	for _, a := range cg.Nodes() {
		for _, b := range cg.Children(a) {
			if !cg.HasEdge(b, a) {
				continue
			}
			ta, tb := r.g.Task(a), r.g.Task(b)
			keepA := a < b
			if ta != nil && tb != nil {
				switch Rank(ta, tb) {
				case RankKeepFirst:
					keepA = true
				case RankKeepSecond:
					keepA = false
				}
			}
			if keepA {
				cg.RemoveEdge(b, a)
			} else {
				cg.RemoveEdge(a, b)
			}
		}
	}
}

// BreakStructuralCycles removes edges until the candidate graph is acyclic.
// Among all nodes participating in any cycle it picks the one reachable from
// the most other cyclic nodes, drops its outgoing edges that re-enter the
// cyclic set, and iterates.
func (r *CycleResolver) BreakStructuralCycles(cg *CandidateGraph) {
	for {
		cyclic := cg.cyclicNodes()
		if len(cyclic) == 0 {
			return
		}

		// Count, for each cyclic node, how many other cyclic nodes reach it.
		reachedBy := make(map[string]int, len(cyclic))
		ids := make([]string, 0, len(cyclic))
		for id := range cyclic {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, start := range ids {
			for reached := range cg.reachableFrom(start) {
				if cyclic[reached] && reached != start {
					reachedBy[reached]++
				}
			}
		}

		victim := ids[0]
		for _, id := range ids {
			if reachedBy[id] > reachedBy[victim] {
				victim = id
			}
		}
		for _, child := range cg.Children(victim) {
			if cyclic[child] {
				cg.RemoveEdge(victim, child)
			}
		}
	}
}

// cyclicNodes returns the nodes on at least one candidate-graph cycle,
// found by DFS with white/gray/black coloring.
func (cg *CandidateGraph) cyclicNodes() map[string]bool {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int)
	result := make(map[string]bool)
	var stack []string

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = gray
		stack = append(stack, node)
		for _, child := range cg.Children(node) {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				// Everything on the stack from child onward is cyclic.
				for i := len(stack) - 1; i >= 0; i-- {
					result[stack[i]] = true
					if stack[i] == child {
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = black
	}

	for _, node := range cg.Nodes() {
		if color[node] == white {
			dfs(node)
		}
	}
	return result
}

// reachableFrom returns all nodes reachable from start along candidate
// edges, excluding start unless it lies on a cycle through itself.
func (cg *CandidateGraph) reachableFrom(start string) map[string]bool {
	visited := make(map[string]bool)
	queue := []string{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, child := range cg.Children(node) {
			if !visited[child] {
				visited[child] = true
				queue = append(queue, child)
			}
		}
	}
	return visited
}
