package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// newApplicator wires an Applicator with live comparison, no-op state
// transfer and a fresh in-memory tracker.
func newApplicator(t *testing.T, g *network.Graph) (*Applicator, *MemTracker) {
	t.Helper()
	tracker := NewMemTracker()
	a := NewApplicator(g, liveStructuralComparator{g: g}, NopMerger{}, tracker, NewDisambiguator(g, nil), false)
	return a, tracker
}

func TestApplicator_SingleParentMerge(t *testing.T) {
	g := buildGraph(t, task("p", "Src"), task("f1", "Flt"), task("f2", "Flt"))
	connect(t, g, "p", "out", "f1", "in")
	connect(t, g, "p", "out", "f2", "in")

	cg := NewCandidateGraph()
	cg.AddEdge("f1", "f2")

	a, tracker := newApplicator(t, g)
	merged, leftovers, err := a.Apply(context.Background(), cg)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"f2": "f1"}, merged)
	assert.Empty(t, leftovers)
	assert.Nil(t, g.Task("f2"))

	// The duplicate input collapsed onto the survivor.
	assert.Len(t, g.Connections(), 1)

	got, err := tracker.Resolve(context.Background(), "f2")
	require.NoError(t, err)
	assert.Equal(t, "f1", got)
}

func TestApplicator_ReciprocalEdgesCollapse(t *testing.T) {
	// Both directions are legal; exactly one merge is realized and the
	// better-ranked instance survives.
	g := buildGraph(t, task("f1", "Flt"), task("f2", "Flt"))
	g.Task("f2").Deployed = true

	cg := NewCandidateGraph()
	cg.AddEdge("f1", "f2")
	cg.AddEdge("f2", "f1")

	a, _ := newApplicator(t, g)
	merged, _, err := a.Apply(context.Background(), cg)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"f1": "f2"}, merged)
	assert.NotNil(t, g.Task("f2"))
	assert.Nil(t, g.Task("f1"))
}

func TestApplicator_ConnectionsConserved(t *testing.T) {
	// f2's distinct output moves onto f1; its duplicate input collapses.
	g := buildGraph(t, task("p", "Src"), task("f1", "Flt"), task("f2", "Flt"), task("c", "Snk"))
	connect(t, g, "p", "out", "f1", "in")
	connect(t, g, "p", "out", "f2", "in")
	connect(t, g, "f1", "out", "c", "in1")
	connect(t, g, "f2", "out", "c", "in2")

	cg := NewCandidateGraph()
	cg.AddEdge("f1", "f2")

	a, _ := newApplicator(t, g)
	merged, _, err := a.Apply(context.Background(), cg)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"f2": "f1"}, merged)

	conns := g.Connections()
	require.Len(t, conns, 3)
	assert.Len(t, g.OutputsOf("f1"), 2, "f2's output now originates from f1")
	assert.Len(t, g.InputsOf("c"), 2, "the consumer keeps both inputs")
}

func TestApplicator_DependencyOwnershipTransfers(t *testing.T) {
	g := buildGraph(t, task("root", "Cmp"), task("f1", "Flt"), task("f2", "Flt"))
	g.Task("root").Composition = true
	require.NoError(t, g.AddDependency(network.DependencyEdge{ParentID: "root", ChildID: "f2", Role: "filter"}))

	cg := NewCandidateGraph()
	cg.AddEdge("f1", "f2")

	a, _ := newApplicator(t, g)
	merged, _, err := a.Apply(context.Background(), cg)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"f2": "f1"}, merged)

	assert.Equal(t, []string{"f1"}, g.DependencyChildren("root"))
}

func TestApplicator_MergeIntoOwnParentNotRealized(t *testing.T) {
	// Merging a child into its dependency parent would create a
	// self-dependency; the merge is skipped and both instances survive.
	g := buildGraph(t, task("root", "M"), task("child", "M"))
	require.NoError(t, g.AddDependency(network.DependencyEdge{ParentID: "root", ChildID: "child"}))

	cg := NewCandidateGraph()
	cg.AddEdge("root", "child")

	a, _ := newApplicator(t, g)
	merged, _, err := a.Apply(context.Background(), cg)
	require.NoError(t, err)

	assert.Empty(t, merged)
	assert.NotNil(t, g.Task("child"))
	assert.Equal(t, []string{"child"}, g.DependencyChildren("root"))
}

func TestApplicator_FailedMergeKeepsDependencyParents(t *testing.T) {
	// a and b feed the same sink port with conflicting policies, so the
	// connection move fails and the merge is not realized. The failure must
	// leave b's dependency parents untouched as well.
	g := buildGraph(t, task("a", "M"), task("b", "M"), task("s", "Snk"), task("root", "Cmp"))
	g.Task("root").Composition = true
	require.NoError(t, g.AddConnection(network.Connection{
		SourceID: "a", SourcePort: "out", SinkID: "s", SinkPort: "in",
		Policy: network.Policy{"type": "data"},
	}))
	require.NoError(t, g.AddConnection(network.Connection{
		SourceID: "b", SourcePort: "out", SinkID: "s", SinkPort: "in",
		Policy: network.Policy{"type": "buffer"},
	}))
	require.NoError(t, g.AddDependency(network.DependencyEdge{ParentID: "root", ChildID: "b", Role: "writer"}))

	cg := NewCandidateGraph()
	cg.AddEdge("a", "b")

	a, _ := newApplicator(t, g)
	merged, _, err := a.Apply(context.Background(), cg)
	require.NoError(t, err)

	assert.Empty(t, merged)
	assert.NotNil(t, g.Task("b"))
	assert.Equal(t, []string{"b"}, g.DependencyChildren("root"))
}

func TestApplicator_EmptiedMultiParentNotLeftover(t *testing.T) {
	// Merging r1 into a retargets p's output onto a, which then conflicts
	// with r2's input from q, so revalidation strips both of r2's remaining
	// candidate edges mid-round. r2 was never ambiguous and must not be
	// reported as a leftover.
	g := buildGraph(t, task("a", "M"), task("b", "M"), task("r1", "M"), task("r2", "M"),
		task("p", "Src"), task("q", "Src"))
	connect(t, g, "p", "out", "r1", "in")
	connect(t, g, "q", "out", "r2", "in")

	cg := NewCandidateGraph()
	cg.AddEdge("a", "r1")
	cg.AddEdge("b", "r1")
	cg.AddEdge("r1", "r2")
	cg.AddEdge("a", "r2")

	a, _ := newApplicator(t, g)
	merged, leftovers, err := a.Apply(context.Background(), cg)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"r1": "a"}, merged)
	assert.Empty(t, leftovers)
	assert.NotNil(t, g.Task("r2"))
}

func TestApplicator_AmbiguousLeftUnmerged(t *testing.T) {
	// Two indistinguishable survivors for a resource-named instance: no
	// heuristic separates them, so the instance is left unmerged.
	g := buildGraph(t, task("r", "M"), task("c1", "M"), task("c2", "M"))
	g.Task("r").DeviceName = "gps"

	cg := NewCandidateGraph()
	cg.AddEdge("c1", "r")
	cg.AddEdge("c2", "r")

	a, _ := newApplicator(t, g)
	merged, leftovers, err := a.Apply(context.Background(), cg)
	require.NoError(t, err)

	assert.Empty(t, merged)
	assert.Equal(t, []string{"r"}, leftovers)
	assert.NotNil(t, g.Task("r"))
}

func TestApplicator_DisambiguatedMultiParent(t *testing.T) {
	g := buildGraph(t, task("r", "M"), task("c1", "M"), task("c2", "M"))
	g.Task("c1").Deployed = true

	cg := NewCandidateGraph()
	cg.AddEdge("c1", "r")
	cg.AddEdge("c2", "r")

	a, _ := newApplicator(t, g)
	merged, leftovers, err := a.Apply(context.Background(), cg)
	require.NoError(t, err)

	assert.Equal(t, "c1", merged["r"], "the deployed candidate wins disambiguation")
	assert.Empty(t, leftovers)
}

func TestApplicator_SelfMergePanics(t *testing.T) {
	g := buildGraph(t, task("a", "M"))
	a, _ := newApplicator(t, g)

	assert.Panics(t, func() {
		_ = a.doMerge(context.Background(), "a", "a")
	})
}

func TestApplicator_UnknownInstancePanics(t *testing.T) {
	g := buildGraph(t, task("a", "M"))
	a, _ := newApplicator(t, g)

	assert.Panics(t, func() {
		_ = a.doMerge(context.Background(), "a", "ghost")
	})
}

func TestApplicator_ChainCollapsesInOneInvocation(t *testing.T) {
	// a can absorb b, b can absorb c: after b merges into a, c's candidate
	// edge transfers to a and the chain collapses fully.
	g := buildGraph(t, task("a", "M"), task("b", "M"), task("c", "M"))

	cg := NewCandidateGraph()
	cg.AddEdge("a", "b")
	cg.AddEdge("b", "c")

	a, tracker := newApplicator(t, g)
	merged, _, err := a.Apply(context.Background(), cg)
	require.NoError(t, err)

	assert.Len(t, merged, 2)
	assert.Equal(t, []string{"a"}, g.TaskIDs())

	got, err := tracker.Resolve(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}
