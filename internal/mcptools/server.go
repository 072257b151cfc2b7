package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewNetworkMCPServer creates an MCP server with the 5 network reduction
// tools registered.
func NewNetworkMCPServer(svc *NetworkService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "netreduce",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_network",
		Description: "Load a YAML network description file and make it the current network.",
	}, svc.LoadNetwork)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reduce_network",
		Description: "Run the merge engine on the current network: find interchangeable task instances, merge them, and report which instances were replaced by which survivors.",
	}, svc.ReduceNetwork)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "replacement_for",
		Description: "Resolve a task instance ID through the replacement record to the instance that ultimately stands in for it.",
	}, svc.ReplacementFor)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "network_stats",
		Description: "Report instance, connection and dependency counts for the current network, plus the deployments it spans.",
	}, svc.NetworkStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "export_diagram",
		Description: "Render the current network as a Mermaid graph, grouping instances by deployment.",
	}, svc.ExportDiagram)

	return server
}

// RunMCPServer starts an HTTP server exposing the network reduction MCP tools.
func RunMCPServer(ctx context.Context, svc *NetworkService, addr string) error {
	server := NewNetworkMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
