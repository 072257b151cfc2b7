package merge

import (
	"context"
	"fmt"
	"log"

	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// Applicator realizes the merges described by an acyclic candidate graph:
// it rewrites the network, records replacements, and hands ambiguous nodes
// to the Disambiguator.
type Applicator struct {
	g          *network.Graph
	comparator Comparator
	merger     Merger
	tracker    Tracker
	disamb     *Disambiguator
	resolver   *CycleResolver
	verbose    bool
}

// NewApplicator wires an Applicator over the network graph.
func NewApplicator(g *network.Graph, comparator Comparator, merger Merger, tracker Tracker, disamb *Disambiguator, verbose bool) *Applicator {
	return &Applicator{
		g:          g,
		comparator: comparator,
		merger:     merger,
		tracker:    tracker,
		disamb:     disamb,
		resolver:   NewCycleResolver(g),
		verbose:    verbose,
	}
}

// Apply consumes the candidate graph until no node has parents. It returns
// the realized removed -> survivor mapping for this invocation plus the IDs
// left unmerged because disambiguation failed.
func (a *Applicator) Apply(ctx context.Context, cg *CandidateGraph) (map[string]string, []string, error) {
	// Reciprocal edges (true 2-cycles promoted by the cycle resolver, or
	// structural ones) must be collapsed to a single direction before the
	// in-degree partitioning below can terminate.
	a.resolver.BreakLocalCycles(cg)
	a.resolver.BreakStructuralCycles(cg)

	merged := make(map[string]string)
	var leftovers []string

	for {
		single, multi := a.partition(cg)
		if len(single) == 0 && len(multi) == 0 {
			break
		}

		progressed := false
		for _, removed := range single {
			parents := cg.Parents(removed)
			if len(parents) != 1 {
				continue // changed by an earlier merge in this round
			}
			survivor := parents[0]
			cg.RemoveEdge(survivor, removed)
			if err := a.doMerge(ctx, survivor, removed); err != nil {
				log.Printf("WARNING: merge of %s into %s not realized: %v", removed, survivor, err)
				continue
			}
			merged[removed] = survivor
			a.afterMerge(cg, survivor, removed)
			progressed = true
		}
		if progressed {
			continue
		}

		// No single-parent node was realized; let the disambiguator make
		// progress on the multi-parent ones.
		for _, removed := range multi {
			candidates := cg.Parents(removed)
			if len(candidates) == 0 {
				continue // emptied by an earlier merge in this round
			}
			survivor, ok := a.disamb.Resolve(removed, candidates)
			if !ok {
				if a.verbose {
					log.Printf("apply: %s is ambiguous between %v, left unmerged", removed, candidates)
				}
				leftovers = append(leftovers, removed)
				cg.RemoveNode(removed)
				continue
			}
			for _, other := range candidates {
				if other != survivor {
					cg.RemoveEdge(other, removed)
				}
			}
			cg.RemoveEdge(survivor, removed)
			if err := a.doMerge(ctx, survivor, removed); err != nil {
				log.Printf("WARNING: merge of %s into %s not realized: %v", removed, survivor, err)
				continue
			}
			merged[removed] = survivor
			a.afterMerge(cg, survivor, removed)
			progressed = true
		}
		if !progressed {
			break // fixed point for this pass
		}
	}

	return merged, leftovers, nil
}

// partition splits the candidate graph's nodes by in-degree: exactly one
// parent (apply directly) and more than one (defer to the Disambiguator).
// Nodes without parents are survivors-only and are ignored.
func (a *Applicator) partition(cg *CandidateGraph) (single, multi []string) {
	for _, node := range cg.Nodes() {
		switch len(cg.Parents(node)) {
		case 0:
		case 1:
			single = append(single, node)
		default:
			multi = append(multi, node)
		}
	}
	return single, multi
}

// doMerge realizes one merge: model-specific state transfer, dataflow
// connection retargeting, dependency ownership transfer, node removal, and
// replacement recording. A failure before graph mutation leaves the network
// untouched and the merge simply is not realized.
func (a *Applicator) doMerge(ctx context.Context, survivor, removed string) error {
	if survivor == removed {
		panic(fmt.Sprintf("merge: attempted to merge %q into itself", survivor))
	}
	surTask := a.g.Task(survivor)
	remTask := a.g.Task(removed)
	if surTask == nil || remTask == nil {
		panic(fmt.Sprintf("merge: %q -> %q references an instance absent from the graph", survivor, removed))
	}

	if err := a.merger.Merge(surTask, remTask); err != nil {
		return fmt.Errorf("state transfer: %w", err)
	}
	// Both graph rewrites validate before mutating, but each can only see
	// its own half. Check the dependency transfer up front so a connection
	// move that later fails never leaves half-rewritten dependency edges.
	if err := a.g.CanTransferDependencies(removed, survivor); err != nil {
		return err
	}
	portMap := a.merger.PortMap(surTask, remTask)
	if err := a.g.MoveConnections(removed, survivor, portMap); err != nil {
		return err
	}
	if err := a.g.TransferDependencies(removed, survivor); err != nil {
		return err
	}
	if err := a.g.RemoveTask(removed); err != nil {
		return err
	}
	if err := a.tracker.Record(ctx, removed, survivor); err != nil {
		return err
	}
	if a.verbose {
		log.Printf("apply: merged %s into %s", removed, survivor)
	}
	return nil
}

// afterMerge updates the candidate graph once removed has disappeared: the
// removed node's own outgoing candidates transfer to the survivor, and the
// survivor's outgoing edges are re-validated with the comparator since its
// connection set just changed.
func (a *Applicator) afterMerge(cg *CandidateGraph, survivor, removed string) {
	transferred := cg.Children(removed)
	cg.RemoveNode(removed)

	surTask := a.g.Task(survivor)
	for _, child := range transferred {
		if child == survivor {
			continue
		}
		childTask := a.g.Task(child)
		if childTask == nil {
			continue
		}
		if a.comparator.CanReplace(surTask, childTask) == VerdictYes {
			cg.AddEdge(survivor, child)
		}
	}
	for _, child := range cg.Children(survivor) {
		childTask := a.g.Task(child)
		if childTask == nil || a.comparator.CanReplace(surTask, childTask) != VerdictYes {
			cg.RemoveEdge(survivor, child)
		}
	}
}
