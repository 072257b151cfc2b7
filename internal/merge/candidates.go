package merge

import (
	"fmt"
	"sort"

	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// CandidateGraph is the transient directed graph of legal merges, recomputed
// each pass. An edge survivor -> removed records "removed can be replaced by
// survivor". Self-edges are a programming error.
type CandidateGraph struct {
	out map[string]map[string]bool // survivor -> removed set
	in  map[string]map[string]bool // removed -> survivor set
}

// NewCandidateGraph returns an empty candidate graph.
func NewCandidateGraph() *CandidateGraph {
	return &CandidateGraph{
		out: make(map[string]map[string]bool),
		in:  make(map[string]map[string]bool),
	}
}

// AddEdge records that survivor may absorb removed.
func (cg *CandidateGraph) AddEdge(survivor, removed string) {
	if survivor == removed {
		panic(fmt.Sprintf("merge: candidate self-edge on %q", survivor))
	}
	if cg.out[survivor] == nil {
		cg.out[survivor] = make(map[string]bool)
	}
	cg.out[survivor][removed] = true
	if cg.in[removed] == nil {
		cg.in[removed] = make(map[string]bool)
	}
	cg.in[removed][survivor] = true
}

// RemoveEdge drops a single candidate edge if present.
func (cg *CandidateGraph) RemoveEdge(survivor, removed string) {
	delete(cg.out[survivor], removed)
	delete(cg.in[removed], survivor)
}

// RemoveNode drops an instance and all its incident candidate edges.
func (cg *CandidateGraph) RemoveNode(id string) {
	for removed := range cg.out[id] {
		delete(cg.in[removed], id)
	}
	delete(cg.out, id)
	for survivor := range cg.in[id] {
		delete(cg.out[survivor], id)
	}
	delete(cg.in, id)
}

// HasEdge reports whether survivor -> removed is present.
func (cg *CandidateGraph) HasEdge(survivor, removed string) bool {
	return cg.out[survivor][removed]
}

// Parents returns the sorted survivor candidates pointing at removed.
func (cg *CandidateGraph) Parents(removed string) []string {
	out := make([]string, 0, len(cg.in[removed]))
	for s := range cg.in[removed] {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Children returns the sorted removal candidates of survivor.
func (cg *CandidateGraph) Children(survivor string) []string {
	out := make([]string, 0, len(cg.out[survivor]))
	for r := range cg.out[survivor] {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Nodes returns every instance mentioned by any edge, sorted.
func (cg *CandidateGraph) Nodes() []string {
	seen := make(map[string]bool)
	for s, removed := range cg.out {
		if len(removed) > 0 {
			seen[s] = true
		}
		for r := range removed {
			seen[r] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// EdgeCount returns the number of candidate edges.
func (cg *CandidateGraph) EdgeCount() int {
	n := 0
	for _, removed := range cg.out {
		n += len(removed)
	}
	return n
}

// Empty reports whether the graph has no edges.
func (cg *CandidateGraph) Empty() bool { return cg.EdgeCount() == 0 }

// CandidateBuilder finds direct merge candidates among a working set of
// instances and assembles the candidate graph for one pass.
type CandidateBuilder struct {
	g          *network.Graph
	comparator Comparator
}

// NewCandidateBuilder creates a builder over the given network, using the
// comparator for the final interchangeability decision.
func NewCandidateBuilder(g *network.Graph, comparator Comparator) *CandidateBuilder {
	return &CandidateBuilder{g: g, comparator: comparator}
}

// Build assembles candidate edges for the working set. It returns the
// candidate graph (not necessarily acyclic) plus the deferred pairs for
// which the comparator reported a possible cycle.
func (b *CandidateBuilder) Build(workingSet []string) (*CandidateGraph, []CyclePair) {
	cg := NewCandidateGraph()
	var deferred []CyclePair

	sorted := make([]string, len(workingSet))
	copy(sorted, workingSet)
	sort.Strings(sorted)

	for _, removedID := range sorted {
		t := b.g.Task(removedID)
		if t == nil || !b.removable(t) {
			continue
		}
		for _, survivorID := range sorted {
			if survivorID == removedID {
				continue
			}
			u := b.g.Task(survivorID)
			if u == nil || u.RequiredModel != t.RequiredModel {
				continue
			}
			if !b.pairAllowed(u, t) {
				continue
			}
			switch b.comparator.CanReplace(u, t) {
			case VerdictYes:
				cg.AddEdge(survivorID, removedID)
			case VerdictCycle:
				deferred = append(deferred, CyclePair{Survivor: survivorID, Removed: removedID})
			}
		}
	}

	return cg, deferred
}

// removable applies the per-instance pre-checks: transaction proxies are
// never removed, unresolved placeholders have no model to match on, and a
// deployed non-pending instance may only ever be the survivor.
func (b *CandidateBuilder) removable(t *network.TaskInstance) bool {
	if t.TransactionProxy {
		return false
	}
	if t.PlaceholderProxy && t.RequiredModel == "" {
		return false
	}
	if t.Deployed && !t.Pending() {
		return false
	}
	return true
}

// pairAllowed applies the structural pair pre-checks before the comparator
// is consulted.
func (b *CandidateBuilder) pairAllowed(survivor, removed *network.TaskInstance) bool {
	if !survivor.Reusable {
		return false
	}
	// A concrete instance must not be absorbed by an abstract one.
	if !removed.Abstract && survivor.Abstract {
		return false
	}
	if survivor.Deployed && removed.Deployed {
		return false
	}
	if survivor.Composition && removed.Composition {
		return b.dependencySetsMatch(survivor.ID, removed.ID)
	}
	return true
}

// dependencySetsMatch reports whether two compositions resolve to the same
// dependency-child set, with no unresolved placeholder among the children.
func (b *CandidateBuilder) dependencySetsMatch(a, c string) bool {
	ca := b.g.DependencyChildren(a)
	cc := b.g.DependencyChildren(c)
	if len(ca) != len(cc) {
		return false
	}
	for i := range ca {
		if ca[i] != cc[i] {
			return false
		}
		child := b.g.Task(ca[i])
		if child == nil || child.PlaceholderProxy {
			return false
		}
	}
	return true
}
