package merge

import (
	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// Compile-time check.
var _ Comparator = (*StructuralComparator)(nil)

// StructuralComparator is the default Comparator. It compares two instances
// by concrete model and by their input connections, matched by sink port
// name. It works on a snapshot of the network taken at construction time, so
// graph mutations during a pass cannot change its answers.
type StructuralComparator struct {
	inputs   map[string]map[string]network.Connection // instance -> sink port -> connection
	children map[string][]string                      // instance -> dependency children
}

// NewStructuralComparator snapshots the comparator inputs (input connection
// sets and dependency-child sets) from the current graph state.
func NewStructuralComparator(g *network.Graph) *StructuralComparator {
	c := &StructuralComparator{
		inputs:   make(map[string]map[string]network.Connection),
		children: make(map[string][]string),
	}
	for _, id := range g.TaskIDs() {
		byPort := make(map[string]network.Connection)
		for _, in := range g.InputsOf(id) {
			byPort[in.SinkPort] = in
		}
		c.inputs[id] = byPort
		c.children[id] = g.DependencyChildren(id)
	}
	return c
}

// liveStructuralComparator re-snapshots the graph on every call. The
// applicator uses it to re-validate a survivor's candidate edges after a
// merge changed the survivor's connection set; the builder keeps working on
// its pass-start snapshot.
type liveStructuralComparator struct {
	g *network.Graph
}

var _ Comparator = liveStructuralComparator{}

func (c liveStructuralComparator) CanReplace(survivor, removed *network.TaskInstance) Verdict {
	return NewStructuralComparator(c.g).CanReplace(survivor, removed)
}

// CanReplace compares survivor and removed. Ports present on both sides must
// carry identical source ports and compatible policies; a matching port
// whose sources differ makes the answer VerdictCycle, since those sources
// may themselves merge. Ports present on only one side do not block a merge:
// the connection simply moves onto the survivor.
func (c *StructuralComparator) CanReplace(survivor, removed *network.TaskInstance) Verdict {
	if survivor.RequiredModel != removed.RequiredModel {
		return VerdictNo
	}
	if !survivor.Abstract && !removed.Abstract && survivor.ConcreteModel != removed.ConcreteModel {
		return VerdictNo
	}

	verdict := VerdictYes
	surIns := c.inputs[survivor.ID]
	remIns := c.inputs[removed.ID]
	for port, rin := range remIns {
		sin, ok := surIns[port]
		if !ok {
			continue
		}
		if sin.SourcePort != rin.SourcePort {
			return VerdictNo
		}
		if _, err := network.MergePolicies(sin.Policy, rin.Policy); err != nil {
			return VerdictNo
		}
		if sin.SourceID != rin.SourceID {
			verdict = VerdictCycle
		}
	}
	return verdict
}
