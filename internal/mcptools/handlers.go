package mcptools

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rock-core/tools-syskit-sub003/internal/export"
	"github.com/rock-core/tools-syskit-sub003/internal/merge"
	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// NetworkService handles MCP tool calls against a single loaded network.
// The merge engine itself is single-threaded; the service serializes tool
// calls so concurrent MCP clients cannot interleave graph mutations.
type NetworkService struct {
	mu       sync.Mutex
	graph    *network.Graph
	registry *network.Registry
	tracker  merge.Tracker
	report   *merge.Report
}

// NewNetworkService creates a NetworkService backed by the given tracker.
// A nil tracker falls back to an in-memory one.
func NewNetworkService(tracker merge.Tracker) *NetworkService {
	if tracker == nil {
		tracker = merge.NewMemTracker()
	}
	return &NetworkService{tracker: tracker}
}

// LoadNetwork reads a YAML network description and makes it the current
// network. Any previously loaded network and its reduction report are
// discarded.
func (s *NetworkService) LoadNetwork(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input LoadNetworkInput,
) (*mcp.CallToolResult, LoadNetworkOutput, error) {
	if input.Path == "" {
		return nil, LoadNetworkOutput{}, fmt.Errorf("path is required")
	}

	g, err := network.LoadFile(input.Path)
	if err != nil {
		return nil, LoadNetworkOutput{}, fmt.Errorf("load network: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = g
	s.registry = network.NewRegistry(g)
	s.report = nil

	return nil, LoadNetworkOutput{Name: g.Name(), Stats: g.Stats()}, nil
}

// ReduceNetwork runs the reduction engine on the current network and
// returns the merge report.
func (s *NetworkService) ReduceNetwork(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReduceNetworkInput,
) (*mcp.CallToolResult, ReduceNetworkOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil, ReduceNetworkOutput{}, fmt.Errorf("no network loaded, call load_network first")
	}

	engine := merge.NewEngine(s.graph, merge.Options{
		Tracker:        s.tracker,
		DevicePatterns: input.DevicePatterns,
		MaxPasses:      input.MaxPasses,
	})

	report, err := engine.Reduce(ctx)
	if err != nil {
		return nil, ReduceNetworkOutput{}, fmt.Errorf("reduce: %w", err)
	}
	s.report = report
	s.registry = network.NewRegistry(s.graph)

	return nil, ReduceNetworkOutput{
		Passes:          report.Passes,
		InstancesBefore: report.InstancesBefore,
		InstancesAfter:  report.InstancesAfter,
		Merged:          report.Merged,
		Leftovers:       report.Leftovers,
	}, nil
}

// ReplacementFor resolves an instance ID through the replacement record,
// following chains of merges to the final survivor.
func (s *NetworkService) ReplacementFor(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReplacementForInput,
) (*mcp.CallToolResult, ReplacementForOutput, error) {
	if input.InstanceID == "" {
		return nil, ReplacementForOutput{}, fmt.Errorf("instanceId is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	resolved, err := s.tracker.Resolve(ctx, input.InstanceID)
	if err != nil {
		return nil, ReplacementForOutput{}, fmt.Errorf("resolve %s: %w", input.InstanceID, err)
	}

	return nil, ReplacementForOutput{
		InstanceID: input.InstanceID,
		ResolvesTo: resolved,
		Replaced:   resolved != input.InstanceID,
	}, nil
}

// NetworkStats reports instance, connection and dependency counts for the
// current network.
func (s *NetworkService) NetworkStats(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ NetworkStatsInput,
) (*mcp.CallToolResult, NetworkStatsOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil, NetworkStatsOutput{}, fmt.Errorf("no network loaded, call load_network first")
	}

	return nil, NetworkStatsOutput{
		Name:        s.graph.Name(),
		Stats:       s.graph.Stats(),
		Deployments: s.registry.Deployments(),
	}, nil
}

// ExportDiagram renders the current network as a Mermaid diagram.
func (s *NetworkService) ExportDiagram(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ExportDiagramInput,
) (*mcp.CallToolResult, ExportDiagramOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil, ExportDiagramOutput{}, fmt.Errorf("no network loaded, call load_network first")
	}

	return nil, ExportDiagramOutput{Mermaid: export.GenerateMermaid(s.graph)}, nil
}
