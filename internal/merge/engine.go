package merge

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// Options configures an Engine. Zero values select the structural
// comparator, a no-op merger, an in-memory tracker, and unbounded passes.
type Options struct {
	// Comparator overrides the default structural comparator. Custom
	// comparators must snapshot whatever graph state they read; the engine
	// mutates the graph between passes.
	Comparator Comparator

	// Merger performs model-specific state transfer on realized merges.
	Merger Merger

	// Tracker receives the replacement record. Defaults to a MemTracker.
	Tracker Tracker

	// DevicePatterns extends the naming disambiguation stage with glob
	// patterns ("{}" expands to the device name).
	DevicePatterns []string

	// MaxPasses bounds the outer reduction loop; 0 means bounded only by
	// the instance count.
	MaxPasses int

	// Verbose enables per-merge logging.
	Verbose bool
}

// Report summarizes one reduction invocation.
type Report struct {
	// Passes is the number of outer passes executed.
	Passes int `json:"passes"`

	// Merged maps each removed instance to its direct survivor.
	Merged map[string]string `json:"merged"`

	// Leftovers are the instances whose ambiguity no heuristic resolved;
	// they survive unmerged.
	Leftovers []string `json:"leftovers,omitempty"`

	InstancesBefore int `json:"instancesBefore"`
	InstancesAfter  int `json:"instancesAfter"`
}

// Engine runs the network reduction: it repeatedly builds merge candidates
// over a working set, resolves cycles, applies merges, and expands the
// frontier until a fixed point. One Engine invocation owns its graph
// exclusively; the engine is synchronous and never suspends.
type Engine struct {
	g       *network.Graph
	opts    Options
	tracker Tracker
}

// NewEngine creates an Engine over the given network graph.
func NewEngine(g *network.Graph, opts Options) *Engine {
	if opts.Merger == nil {
		opts.Merger = NopMerger{}
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewMemTracker()
	}
	return &Engine{g: g, opts: opts, tracker: tracker}
}

// Tracker returns the replacement tracker, queryable after Reduce returns.
func (e *Engine) Tracker() Tracker { return e.tracker }

// ReplacementFor resolves an instance through however many merges occurred,
// including merges from previous invocations sharing the same tracker.
func (e *Engine) ReplacementFor(ctx context.Context, id string) (string, error) {
	return e.tracker.Resolve(ctx, id)
}

// Reduce merges all functionally redundant instances in the network. It
// mutates the graph in place and returns a report with the replacement
// record of this invocation.
func (e *Engine) Reduce(ctx context.Context) (*Report, error) {
	report := &Report{
		Merged:          make(map[string]string),
		InstancesBefore: len(e.g.TaskIDs()),
	}

	if err := e.tracker.Init(ctx); err != nil {
		return nil, fmt.Errorf("engine: init tracker: %w", err)
	}

	maxPasses := e.opts.MaxPasses
	if maxPasses <= 0 {
		// Every pass removes at least one instance, so the instance count
		// bounds the loop.
		maxPasses = report.InstancesBefore + 1
	}

	workingSet := e.g.TaskIDs()
	leftover := make(map[string]bool)

	for pass := 1; pass <= maxPasses; pass++ {
		merged, leftovers, err := e.runPass(ctx, workingSet)
		if err != nil {
			return nil, err
		}
		// A pass without merges can still leave instances behind that
		// disambiguation gave up on; record them before stopping.
		for _, id := range leftovers {
			leftover[id] = true
		}
		if len(merged) == 0 {
			break
		}
		report.Passes = pass

		for removed, survivor := range merged {
			report.Merged[removed] = survivor
			delete(leftover, removed)
		}

		workingSet = e.frontier(merged)
		if len(workingSet) == 0 {
			break
		}
	}

	report.Leftovers = sortedKeys(leftover)
	report.InstancesAfter = len(e.g.TaskIDs())
	if e.opts.Verbose {
		log.Printf("engine: reduced %d instances to %d in %d passes (%d leftover)",
			report.InstancesBefore, report.InstancesAfter, report.Passes, len(report.Leftovers))
	}
	return report, nil
}

// runPass executes one build / resolve / apply round over the working set.
func (e *Engine) runPass(ctx context.Context, workingSet []string) (map[string]string, []string, error) {
	// The builder works on a snapshot of comparator inputs taken now, so
	// graph mutations during apply cannot skew its answers.
	comparator := e.opts.Comparator
	if comparator == nil {
		comparator = NewStructuralComparator(e.g)
	}

	builder := NewCandidateBuilder(e.g, comparator)
	cg, deferred := builder.Build(workingSet)

	// Promote deferred pairs whose cyclic dependency chain validates. When
	// nothing else was found, a single resolved pair is enough to retry the
	// pass; if none resolves either, the pass is exhausted.
	resolver := NewCycleResolver(e.g)
	var remaining []CyclePair
	for _, pair := range deferred {
		if resolver.Resolve(pair, deferred) {
			cg.AddEdge(pair.Survivor, pair.Removed)
			if e.opts.Verbose {
				log.Printf("engine: cycle pair %s -> %s validated", pair.Survivor, pair.Removed)
			}
		} else {
			remaining = append(remaining, pair)
		}
	}
	if cg.Empty() {
		if e.opts.Verbose && len(remaining) > 0 {
			log.Printf("engine: %d deferred pairs could not be validated, pass exhausted", len(remaining))
		}
		return nil, nil, nil
	}

	revalidator := e.opts.Comparator
	if revalidator == nil {
		revalidator = liveStructuralComparator{g: e.g}
	}
	disamb := NewDisambiguator(e.g, e.opts.DevicePatterns)
	applicator := NewApplicator(e.g, revalidator, e.opts.Merger, e.tracker, disamb, e.opts.Verbose)
	return applicator.Apply(ctx, cg)
}

// frontier computes the next working set: when a merged survivor now fans
// out to several readers, those readers have become structurally comparable
// and are candidates for the next pass; dependency parents of merged
// survivors that are compositions join them. Merges thus propagate outward
// from structurally identical leaves instead of requiring global pairwise
// comparison every pass.
func (e *Engine) frontier(merged map[string]string) []string {
	next := make(map[string]bool)
	for _, survivor := range merged {
		if e.g.Task(survivor) == nil {
			continue // survivor itself merged later in the same pass
		}
		if succs := e.g.DataflowSuccessors(survivor); len(succs) > 1 {
			for _, succ := range succs {
				next[succ] = true
			}
		}
		for _, parent := range e.g.DependencyParents(survivor) {
			if p := e.g.Task(parent); p != nil && p.Composition {
				next[parent] = true
			}
		}
	}
	return sortedKeys(next)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
