package mcptools

import "github.com/rock-core/tools-syskit-sub003/internal/network"

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// LoadNetworkInput is the input for the load_network MCP tool.
type LoadNetworkInput struct {
	Path string `json:"path" jsonschema:"the path to a YAML network description file"`
}

// LoadNetworkOutput is the result of the load_network MCP tool.
type LoadNetworkOutput struct {
	Name  string        `json:"name"`
	Stats network.Stats `json:"stats"`
}

// ReduceNetworkInput is the input for the reduce_network MCP tool.
type ReduceNetworkInput struct {
	DevicePatterns []string `json:"devicePatterns,omitempty" jsonschema:"device name patterns used to disambiguate merge targets, checked in order"`
	MaxPasses      int      `json:"maxPasses,omitempty" jsonschema:"maximum number of reduction passes (default: instance count + 1)"`
}

// ReduceNetworkOutput is the result of the reduce_network MCP tool.
type ReduceNetworkOutput struct {
	Passes          int               `json:"passes"`
	InstancesBefore int               `json:"instancesBefore"`
	InstancesAfter  int               `json:"instancesAfter"`
	Merged          map[string]string `json:"merged,omitempty"`
	Leftovers       []string          `json:"leftovers,omitempty"`
}

// ReplacementForInput is the input for the replacement_for MCP tool.
type ReplacementForInput struct {
	InstanceID string `json:"instanceId" jsonschema:"the ID of a task instance, merged or surviving"`
}

// ReplacementForOutput is the result of the replacement_for MCP tool.
type ReplacementForOutput struct {
	InstanceID string `json:"instanceId"`
	ResolvesTo string `json:"resolvesTo"`
	Replaced   bool   `json:"replaced"`
}

// NetworkStatsInput is the input for the network_stats MCP tool.
type NetworkStatsInput struct{}

// NetworkStatsOutput is the result of the network_stats MCP tool.
type NetworkStatsOutput struct {
	Name        string        `json:"name"`
	Stats       network.Stats `json:"stats"`
	Deployments []string      `json:"deployments,omitempty"`
}

// ExportDiagramInput is the input for the export_diagram MCP tool.
type ExportDiagramInput struct{}

// ExportDiagramOutput is the result of the export_diagram MCP tool.
type ExportDiagramOutput struct {
	Mermaid string `json:"mermaid"`
}
