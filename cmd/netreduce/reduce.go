package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rock-core/tools-syskit-sub003/internal/export"
	"github.com/rock-core/tools-syskit-sub003/internal/merge"
	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// reduceFiles reduces each input network in parallel. Each file gets its own
// graph and tracker; only the persistent tracker (when configured) is shared
// state, so it is opened per file to keep the engine single-threaded.
func reduceFiles(ctx context.Context, inputs []string, flags cliFlags) error {
	patterns := splitList(flags.DevicePatterns)

	g, ctx := errgroup.WithContext(ctx)
	for _, input := range inputs {
		g.Go(func() error {
			return reduceOne(ctx, input, patterns, flags)
		})
	}
	return g.Wait()
}

func reduceOne(ctx context.Context, input string, patterns []string, flags cliFlags) error {
	net, err := network.LoadFile(input)
	if err != nil {
		return fmt.Errorf("load %s: %w", input, err)
	}

	tracker, err := trackerFor(input, flags.TrackerDB)
	if err != nil {
		return err
	}
	defer tracker.Close()

	engine := merge.NewEngine(net, merge.Options{
		Tracker:        tracker,
		DevicePatterns: patterns,
		MaxPasses:      flags.MaxPasses,
		Verbose:        flags.Verbose,
	})

	report, err := engine.Reduce(ctx)
	if err != nil {
		return fmt.Errorf("reduce %s: %w", input, err)
	}

	if flags.Verbose {
		log.Printf("netreduce: %s: %d passes, %d -> %d instances, %d merges",
			input, report.Passes, report.InstancesBefore, report.InstancesAfter, len(report.Merged))
	}

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	jsonPath := filepath.Join(flags.OutputDir, base+".reduced.json")
	if err := export.WriteJSON(jsonPath, export.BuildExport(net, report)); err != nil {
		return err
	}

	if flags.Mermaid {
		mmdPath := filepath.Join(flags.OutputDir, base+".reduced.mmd")
		if err := os.WriteFile(mmdPath, []byte(export.GenerateMermaid(net)), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", mmdPath, err)
		}
	}

	return nil
}

// trackerFor opens a per-input tracker. With a base database path configured,
// each input gets its own database next to it so parallel reductions do not
// contend on a single store.
func trackerFor(input, dbPath string) (merge.Tracker, error) {
	if dbPath == "" {
		return merge.NewMemTracker(), nil
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	path := filepath.Join(dbPath, base)
	tracker, err := merge.NewPersistentTracker(path)
	if err != nil {
		log.Printf("WARNING: tracker db unavailable for %s, using in-memory tracker: %v", input, err)
		return merge.NewMemTracker(), nil
	}
	return tracker, nil
}
