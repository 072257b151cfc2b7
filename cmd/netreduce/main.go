package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rock-core/tools-syskit-sub003/internal/config"
	"github.com/rock-core/tools-syskit-sub003/internal/mcptools"
	"github.com/rock-core/tools-syskit-sub003/internal/merge"
)

// CLI flags parsed from command line.
type cliFlags struct {
	Input          string
	OutputDir      string
	Mermaid        bool
	ServeMCP       bool
	MCPAddr        string
	TrackerDB      string
	DevicePatterns string
	MaxPasses      int
	Verbose        bool
	Version        bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("netreduce", flag.ContinueOnError)
	fs.StringVar(&flags.Input, "input", "", "comma-separated YAML network description files")
	fs.StringVar(&flags.OutputDir, "output-dir", "", "output directory for reduction reports")
	fs.BoolVar(&flags.Mermaid, "mermaid", false, "also write a Mermaid diagram of each reduced network")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server instead of reducing files")
	fs.StringVar(&flags.MCPAddr, "mcp-addr", "localhost:8123", "listen address for the MCP server")
	fs.StringVar(&flags.TrackerDB, "tracker-db", "", "path to a persistent replacement tracker database")
	fs.StringVar(&flags.DevicePatterns, "device-patterns", "", "comma-separated device name patterns for disambiguation")
	fs.IntVar(&flags.MaxPasses, "max-passes", 0, "maximum reduction passes (0 = instance count + 1)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable verbose output")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyConfig(&flags, cfg)

	if flags.ServeMCP {
		tracker, err := openTracker(flags.TrackerDB)
		if err != nil {
			return err
		}
		defer tracker.Close()

		svc := mcptools.NewNetworkService(tracker)
		return mcptools.RunMCPServer(context.Background(), svc, flags.MCPAddr)
	}

	if flags.Input == "" {
		return fmt.Errorf("no input files, use -input or -serve-mcp")
	}

	inputs := splitList(flags.Input)
	return reduceFiles(context.Background(), inputs, flags)
}

// applyConfig fills flag values left at their zero value from the project
// config file. Explicit flags win.
func applyConfig(flags *cliFlags, cfg *config.ProjectConfig) {
	if flags.OutputDir == "" {
		flags.OutputDir = cfg.OutputDir
	}
	if flags.OutputDir == "" {
		flags.OutputDir = "."
	}
	if flags.TrackerDB == "" {
		flags.TrackerDB = cfg.TrackerDB
	}
	if flags.DevicePatterns == "" {
		flags.DevicePatterns = strings.Join(cfg.DevicePatterns, ",")
	}
	if flags.MaxPasses == 0 {
		flags.MaxPasses = cfg.MaxPasses
	}
	if cfg.Verbose {
		flags.Verbose = true
	}
}

// openTracker opens the persistent tracker when a database path is set and
// falls back to the in-memory tracker otherwise.
func openTracker(dbPath string) (merge.Tracker, error) {
	if dbPath == "" {
		return merge.NewMemTracker(), nil
	}
	tracker, err := merge.NewPersistentTracker(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db %s: %w", dbPath, err)
	}
	return tracker, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
