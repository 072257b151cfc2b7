package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// task builds a plain pending concrete task with loader defaults.
func task(id, model string) *network.TaskInstance {
	return &network.TaskInstance{
		ID:                id,
		Name:              id,
		RequiredModel:     model,
		ConcreteModel:     model,
		State:             network.StatePending,
		Reusable:          true,
		FullyInstantiated: true,
	}
}

// buildGraph inserts the given tasks into a fresh network graph.
func buildGraph(t *testing.T, tasks ...*network.TaskInstance) *network.Graph {
	t.Helper()
	g := network.NewGraph("test")
	for _, tk := range tasks {
		require.NoError(t, g.AddTask(tk))
	}
	return g
}

func connect(t *testing.T, g *network.Graph, src, srcPort, sink, sinkPort string) {
	t.Helper()
	require.NoError(t, g.AddConnection(network.Connection{
		SourceID: src, SourcePort: srcPort, SinkID: sink, SinkPort: sinkPort,
	}))
}

func TestCandidateGraph_Edges(t *testing.T) {
	cg := NewCandidateGraph()
	cg.AddEdge("a", "b")
	cg.AddEdge("a", "c")
	cg.AddEdge("b", "c")

	assert.True(t, cg.HasEdge("a", "b"))
	assert.False(t, cg.HasEdge("b", "a"))
	assert.Equal(t, []string{"a", "b"}, cg.Parents("c"))
	assert.Equal(t, []string{"b", "c"}, cg.Children("a"))
	assert.Equal(t, 3, cg.EdgeCount())

	cg.RemoveEdge("a", "b")
	assert.False(t, cg.HasEdge("a", "b"))

	cg.RemoveNode("c")
	assert.True(t, cg.Empty())
}

func TestCandidateGraph_SelfEdgePanics(t *testing.T) {
	cg := NewCandidateGraph()
	assert.Panics(t, func() { cg.AddEdge("a", "a") })
}

func TestCandidateBuilder_IdenticalSiblings(t *testing.T) {
	// Two filters fed from the same producer port are interchangeable in
	// both directions.
	g := buildGraph(t, task("p", "Src"), task("f1", "Flt"), task("f2", "Flt"))
	connect(t, g, "p", "out", "f1", "in")
	connect(t, g, "p", "out", "f2", "in")

	builder := NewCandidateBuilder(g, NewStructuralComparator(g))
	cg, deferred := builder.Build(g.TaskIDs())

	assert.Empty(t, deferred)
	assert.True(t, cg.HasEdge("f1", "f2"))
	assert.True(t, cg.HasEdge("f2", "f1"))
	assert.False(t, cg.HasEdge("p", "f1"), "different models never pair")
}

func TestCandidateBuilder_TransactionProxyProtected(t *testing.T) {
	g := buildGraph(t, task("f1", "Flt"), task("f2", "Flt"))
	g.Task("f2").TransactionProxy = true

	builder := NewCandidateBuilder(g, NewStructuralComparator(g))
	cg, _ := builder.Build(g.TaskIDs())

	// f2 may absorb f1 but can never be removed itself.
	assert.True(t, cg.HasEdge("f2", "f1"))
	assert.False(t, cg.HasEdge("f1", "f2"))
}

func TestCandidateBuilder_DeployedRunningProtected(t *testing.T) {
	g := buildGraph(t, task("f1", "Flt"), task("f2", "Flt"))
	g.Task("f2").Deployed = true
	g.Task("f2").State = network.StateRunning

	builder := NewCandidateBuilder(g, NewStructuralComparator(g))
	cg, _ := builder.Build(g.TaskIDs())

	assert.True(t, cg.HasEdge("f2", "f1"))
	assert.False(t, cg.HasEdge("f1", "f2"), "a deployed non-pending instance is never removed")
}

func TestCandidateBuilder_DeployedPendingRemovable(t *testing.T) {
	g := buildGraph(t, task("f1", "Flt"), task("f2", "Flt"))
	g.Task("f2").Deployed = true // still pending

	builder := NewCandidateBuilder(g, NewStructuralComparator(g))
	cg, _ := builder.Build(g.TaskIDs())

	assert.True(t, cg.HasEdge("f1", "f2"))
}

func TestCandidateBuilder_BothDeployedNeverPair(t *testing.T) {
	g := buildGraph(t, task("f1", "Flt"), task("f2", "Flt"))
	g.Task("f1").Deployed = true
	g.Task("f2").Deployed = true

	builder := NewCandidateBuilder(g, NewStructuralComparator(g))
	cg, _ := builder.Build(g.TaskIDs())

	assert.True(t, cg.Empty())
}

func TestCandidateBuilder_AbstractCannotAbsorbConcrete(t *testing.T) {
	g := buildGraph(t, task("f1", "Flt"), task("f2", "Flt"))
	g.Task("f1").Abstract = true
	g.Task("f1").ConcreteModel = ""

	builder := NewCandidateBuilder(g, NewStructuralComparator(g))
	cg, _ := builder.Build(g.TaskIDs())

	// The concrete instance may absorb the abstract one, never the reverse.
	assert.True(t, cg.HasEdge("f2", "f1"))
	assert.False(t, cg.HasEdge("f1", "f2"))
}

func TestCandidateBuilder_NonReusableSurvivor(t *testing.T) {
	g := buildGraph(t, task("f1", "Flt"), task("f2", "Flt"))
	g.Task("f1").Reusable = false

	builder := NewCandidateBuilder(g, NewStructuralComparator(g))
	cg, _ := builder.Build(g.TaskIDs())

	assert.False(t, cg.HasEdge("f1", "f2"), "a non-reusable instance cannot absorb anything")
	assert.True(t, cg.HasEdge("f2", "f1"), "but it may still be absorbed")
}

func TestCandidateBuilder_UnresolvedPlaceholderSkipped(t *testing.T) {
	g := buildGraph(t, task("f1", "Flt"))
	placeholder := &network.TaskInstance{
		ID: "ph", Name: "ph", PlaceholderProxy: true,
		State: network.StatePending, Reusable: true, FullyInstantiated: true,
	}
	require.NoError(t, g.AddTask(placeholder))

	builder := NewCandidateBuilder(g, NewStructuralComparator(g))
	cg, deferred := builder.Build(g.TaskIDs())

	assert.True(t, cg.Empty())
	assert.Empty(t, deferred)
}

func TestCandidateBuilder_CompositionDependencySets(t *testing.T) {
	// Two compositions pair only when their dependency-child sets resolve
	// to the same instances.
	g := buildGraph(t,
		task("c1", "Cmp"), task("c2", "Cmp"), task("c3", "Cmp"),
		task("shared", "M"), task("other", "M"))
	for _, id := range []string{"c1", "c2", "c3"} {
		g.Task(id).Composition = true
	}
	require.NoError(t, g.AddDependency(network.DependencyEdge{ParentID: "c1", ChildID: "shared"}))
	require.NoError(t, g.AddDependency(network.DependencyEdge{ParentID: "c2", ChildID: "shared"}))
	require.NoError(t, g.AddDependency(network.DependencyEdge{ParentID: "c3", ChildID: "other"}))

	builder := NewCandidateBuilder(g, NewStructuralComparator(g))
	cg, _ := builder.Build([]string{"c1", "c2", "c3"})

	assert.True(t, cg.HasEdge("c1", "c2"))
	assert.True(t, cg.HasEdge("c2", "c1"))
	assert.False(t, cg.HasEdge("c1", "c3"), "different child sets do not pair")
	assert.False(t, cg.HasEdge("c3", "c1"))
}

func TestCandidateBuilder_DefersOnDifferingSources(t *testing.T) {
	// f1 and f2 share a sink port fed from different producers; the
	// producers may themselves merge, so the pair is deferred.
	g := buildGraph(t, task("p1", "Src"), task("p2", "Src"), task("f1", "Flt"), task("f2", "Flt"))
	connect(t, g, "p1", "out", "f1", "in")
	connect(t, g, "p2", "out", "f2", "in")

	builder := NewCandidateBuilder(g, NewStructuralComparator(g))
	cg, deferred := builder.Build([]string{"f1", "f2"})

	assert.False(t, cg.HasEdge("f1", "f2"))
	assert.Contains(t, deferred, CyclePair{Survivor: "f1", Removed: "f2"})
	assert.Contains(t, deferred, CyclePair{Survivor: "f2", Removed: "f1"})
}
