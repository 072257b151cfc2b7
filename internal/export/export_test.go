package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rock-core/tools-syskit-sub003/internal/merge"
	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// reducedNetwork builds a small network, runs the reduction, and returns
// both the reduced graph and the report.
func reducedNetwork(t *testing.T) (*network.Graph, *merge.Report) {
	t.Helper()
	g, err := network.Load([]byte(`
name: vision
tasks:
  - id: cam
    requiredModel: CameraSrv
    deployment: cam_proc
  - id: f1
    requiredModel: Flt
  - id: f2
    requiredModel: Flt
connections:
  - source: cam
    sourcePort: frame
    sink: f1
    sinkPort: in
  - source: cam
    sourcePort: frame
    sink: f2
    sinkPort: in
`))
	require.NoError(t, err)

	report, err := merge.NewEngine(g, merge.Options{}).Reduce(context.Background())
	require.NoError(t, err)
	return g, report
}

func TestBuildExport(t *testing.T) {
	g, report := reducedNetwork(t)

	out := BuildExport(g, report)

	assert.Equal(t, "vision", out.Name)
	assert.Equal(t, 3, out.InstancesBefore)
	assert.Equal(t, 2, out.InstancesAfter)
	require.Len(t, out.Merges, 1)
	assert.Equal(t, MergeExport{Removed: "f2", Survivor: "f1"}, out.Merges[0])
	assert.Len(t, out.Tasks, 2)
	assert.Len(t, out.Connections, 1)
	assert.NotEmpty(t, out.ExportedAt)
}

func TestWriteJSON(t *testing.T) {
	g, report := reducedNetwork(t)
	path := filepath.Join(t.TempDir(), "nested", "vision.reduced.json")

	require.NoError(t, WriteJSON(path, BuildExport(g, report)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var roundtrip ReductionExport
	require.NoError(t, json.Unmarshal(data, &roundtrip))
	assert.Equal(t, "vision", roundtrip.Name)
	assert.Equal(t, 1, roundtrip.Passes)
}

func TestGenerateMermaid(t *testing.T) {
	g, _ := reducedNetwork(t)

	mermaid := GenerateMermaid(g)

	assert.Contains(t, mermaid, "graph TD")
	assert.Contains(t, mermaid, "subgraph", "deployed instances are grouped by deployment")
	assert.Contains(t, mermaid, "cam_proc")
	assert.Contains(t, mermaid, "frame:in", "connections are labeled with their ports")
	assert.NotContains(t, mermaid, "f2", "merged instances do not appear")
}

func TestGenerateMermaid_EmptyNetwork(t *testing.T) {
	g := network.NewGraph("empty")
	mermaid := GenerateMermaid(g)
	assert.Equal(t, "graph TD\n", mermaid)
}
