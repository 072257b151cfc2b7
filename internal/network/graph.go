package network

import (
	"fmt"
	"sort"
)

// Graph is the mutable network of task instances, dataflow connections and
// dependency edges. It is owned exclusively by one reduction invocation at a
// time; no locking is performed.
type Graph struct {
	name        string
	tasks       map[string]*TaskInstance
	connections []*Connection
	deps        []DependencyEdge
}

// NewGraph returns an empty network graph.
func NewGraph(name string) *Graph {
	return &Graph{
		name:  name,
		tasks: make(map[string]*TaskInstance),
	}
}

// Name returns the network name.
func (g *Graph) Name() string { return g.name }

// AddTask inserts an instance keyed by its ID.
func (g *Graph) AddTask(t *TaskInstance) error {
	if t == nil {
		return fmt.Errorf("network: cannot add nil task")
	}
	if t.ID == "" {
		return fmt.Errorf("network: cannot add task with empty ID")
	}
	if _, exists := g.tasks[t.ID]; exists {
		return fmt.Errorf("network: duplicate task ID %q", t.ID)
	}
	g.tasks[t.ID] = t
	return nil
}

// Task returns the instance with the given ID, or nil if not present.
func (g *Graph) Task(id string) *TaskInstance {
	return g.tasks[id]
}

// Tasks returns all instances sorted by ID.
func (g *Graph) Tasks() []*TaskInstance {
	out := make([]*TaskInstance, 0, len(g.tasks))
	for _, t := range g.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TaskIDs returns all instance IDs sorted.
func (g *Graph) TaskIDs() []string {
	out := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AddConnection inserts a dataflow edge. Both endpoints must exist.
func (g *Graph) AddConnection(c Connection) error {
	if g.tasks[c.SourceID] == nil {
		return fmt.Errorf("network: connection references unknown source %q", c.SourceID)
	}
	if g.tasks[c.SinkID] == nil {
		return fmt.Errorf("network: connection references unknown sink %q", c.SinkID)
	}
	if c.SourcePort == "" || c.SinkPort == "" {
		return fmt.Errorf("network: connection %s -> %s has empty port name", c.SourceID, c.SinkID)
	}
	cc := c
	cc.Policy = c.Policy.Clone()
	g.connections = append(g.connections, &cc)
	return nil
}

// Connections returns a copy of all dataflow edges.
func (g *Graph) Connections() []Connection {
	out := make([]Connection, 0, len(g.connections))
	for _, c := range g.connections {
		out = append(out, *c)
	}
	return out
}

// InputsOf returns the dataflow edges whose sink is the given instance.
func (g *Graph) InputsOf(id string) []Connection {
	var out []Connection
	for _, c := range g.connections {
		if c.SinkID == id {
			out = append(out, *c)
		}
	}
	return out
}

// OutputsOf returns the dataflow edges whose source is the given instance.
func (g *Graph) OutputsOf(id string) []Connection {
	var out []Connection
	for _, c := range g.connections {
		if c.SourceID == id {
			out = append(out, *c)
		}
	}
	return out
}

// AddDependency inserts a dependency edge. Both endpoints must exist and a
// composition may not depend on itself.
func (g *Graph) AddDependency(d DependencyEdge) error {
	if g.tasks[d.ParentID] == nil {
		return fmt.Errorf("network: dependency references unknown parent %q", d.ParentID)
	}
	if g.tasks[d.ChildID] == nil {
		return fmt.Errorf("network: dependency references unknown child %q", d.ChildID)
	}
	if d.ParentID == d.ChildID {
		return fmt.Errorf("network: dependency self-loop on %q", d.ParentID)
	}
	for _, e := range g.deps {
		if e == d {
			return nil // already present
		}
	}
	g.deps = append(g.deps, d)
	return nil
}

// Dependencies returns a copy of all dependency edges.
func (g *Graph) Dependencies() []DependencyEdge {
	out := make([]DependencyEdge, len(g.deps))
	copy(out, g.deps)
	return out
}

// DependencyChildren returns the sorted child IDs of the given instance.
func (g *Graph) DependencyChildren(id string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range g.deps {
		if d.ParentID == id && !seen[d.ChildID] {
			seen[d.ChildID] = true
			out = append(out, d.ChildID)
		}
	}
	sort.Strings(out)
	return out
}

// DependencyParents returns the sorted parent IDs of the given instance.
func (g *Graph) DependencyParents(id string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range g.deps {
		if d.ChildID == id && !seen[d.ParentID] {
			seen[d.ParentID] = true
			out = append(out, d.ParentID)
		}
	}
	sort.Strings(out)
	return out
}

// IsDependencyAncestor reports whether ancestor transitively requires id
// through dependency edges.
func (g *Graph) IsDependencyAncestor(ancestor, id string) bool {
	if ancestor == id {
		return false
	}
	visited := map[string]bool{ancestor: true}
	queue := []string{ancestor}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, child := range g.DependencyChildren(node) {
			if child == id {
				return true
			}
			if !visited[child] {
				visited[child] = true
				queue = append(queue, child)
			}
		}
	}
	return false
}

// RemoveTask deletes an instance and every dependency edge mentioning it.
// Dataflow connections must have been moved off the instance first.
func (g *Graph) RemoveTask(id string) error {
	if g.tasks[id] == nil {
		return fmt.Errorf("network: remove of unknown task %q", id)
	}
	for _, c := range g.connections {
		if c.SourceID == id || c.SinkID == id {
			return fmt.Errorf("network: task %q still has dataflow connections", id)
		}
	}
	delete(g.tasks, id)
	kept := g.deps[:0]
	for _, d := range g.deps {
		if d.ParentID != id && d.ChildID != id {
			kept = append(kept, d)
		}
	}
	g.deps = kept
	return nil
}

// MergePolicies validates that two connection policies are compatible and
// returns their union. Policies conflict when they assign different values
// to the same key.
func MergePolicies(a, b Policy) (Policy, error) {
	if a == nil {
		return b.Clone(), nil
	}
	out := a.Clone()
	for k, v := range b {
		if existing, ok := out[k]; ok && existing != v {
			return nil, fmt.Errorf("network: incompatible policies: key %q is %q vs %q", k, existing, v)
		}
		out[k] = v
	}
	return out, nil
}

// MoveConnections retargets every dataflow edge incident on from to the to
// instance, renaming ports through portMap (old name to new name, identity
// for absent keys). Duplicate connections produced by the rewrite have their
// policies validated and merged; a policy conflict aborts before any
// mutation.
func (g *Graph) MoveConnections(from, to string, portMap map[string]string) error {
	if from == to {
		return fmt.Errorf("network: move connections from %q onto itself", from)
	}
	if g.tasks[from] == nil || g.tasks[to] == nil {
		return fmt.Errorf("network: move connections %q -> %q: unknown endpoint", from, to)
	}

	mapPort := func(p string) string {
		if portMap != nil {
			if mapped, ok := portMap[p]; ok {
				return mapped
			}
		}
		return p
	}

	// Phase 1: compute the rewritten connection set and validate policy
	// compatibility without touching the graph.
	type key struct {
		src, srcPort, sink, sinkPort string
	}
	rewritten := make(map[key]Policy, len(g.connections))
	order := make([]key, 0, len(g.connections))
	for _, c := range g.connections {
		nc := *c
		if nc.SourceID == from {
			nc.SourceID = to
			nc.SourcePort = mapPort(nc.SourcePort)
		}
		if nc.SinkID == from {
			nc.SinkID = to
			nc.SinkPort = mapPort(nc.SinkPort)
		}
		k := key{nc.SourceID, nc.SourcePort, nc.SinkID, nc.SinkPort}
		if existing, ok := rewritten[k]; ok {
			merged, err := MergePolicies(existing, nc.Policy)
			if err != nil {
				return fmt.Errorf("network: merging connections onto %s.%s: %w", k.sink, k.sinkPort, err)
			}
			rewritten[k] = merged
			continue
		}
		rewritten[k] = nc.Policy.Clone()
		order = append(order, k)
	}

	// Phase 2: replace the connection set.
	g.connections = g.connections[:0]
	for _, k := range order {
		g.connections = append(g.connections, &Connection{
			SourceID:   k.src,
			SourcePort: k.srcPort,
			SinkID:     k.sink,
			SinkPort:   k.sinkPort,
			Policy:     rewritten[k],
		})
	}
	return nil
}

// CanTransferDependencies reports whether TransferDependencies(from, to)
// would succeed. It never mutates the graph, so callers can validate the
// transfer before performing other rewrites.
func (g *Graph) CanTransferDependencies(from, to string) error {
	if from == to {
		return fmt.Errorf("network: transfer dependencies from %q onto itself", from)
	}
	for _, d := range g.deps {
		if (d.ParentID == from && d.ChildID == to) || (d.ParentID == to && d.ChildID == from) {
			return fmt.Errorf("network: cannot transfer dependencies of %q onto %q: would create a self-dependency", from, to)
		}
	}
	return nil
}

// TransferDependencies rewrites every dependency edge mentioning from so it
// mentions to instead. The transfer is structurally impossible when it would
// create a self-dependency (an instance merging into its own parent or
// child); in that case nothing is mutated.
func (g *Graph) TransferDependencies(from, to string) error {
	if err := g.CanTransferDependencies(from, to); err != nil {
		return err
	}

	rewritten := make([]DependencyEdge, 0, len(g.deps))
	seen := make(map[DependencyEdge]bool, len(g.deps))
	for _, d := range g.deps {
		if d.ParentID == from {
			d.ParentID = to
		}
		if d.ChildID == from {
			d.ChildID = to
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		rewritten = append(rewritten, d)
	}
	g.deps = rewritten
	return nil
}

// DataflowSuccessors returns the sorted distinct IDs reachable from id
// through one outgoing dataflow edge.
func (g *Graph) DataflowSuccessors(id string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range g.connections {
		if c.SourceID == id && !seen[c.SinkID] {
			seen[c.SinkID] = true
			out = append(out, c.SinkID)
		}
	}
	sort.Strings(out)
	return out
}

// Distance returns the dataflow hop distance between two instances, walking
// connections in both directions (BFS). ok is false when they are not
// connected at all.
func (g *Graph) Distance(from, to string) (int, bool) {
	if from == to {
		return 0, true
	}
	if g.tasks[from] == nil || g.tasks[to] == nil {
		return 0, false
	}

	adj := make(map[string]map[string]bool)
	link := func(a, b string) {
		if adj[a] == nil {
			adj[a] = make(map[string]bool)
		}
		adj[a][b] = true
	}
	for _, c := range g.connections {
		link(c.SourceID, c.SinkID)
		link(c.SinkID, c.SourceID)
	}

	visited := map[string]bool{from: true}
	queue := []string{from}
	for depth := 1; len(queue) > 0; depth++ {
		var next []string
		for _, node := range queue {
			for nb := range adj[node] {
				if visited[nb] {
					continue
				}
				if nb == to {
					return depth, true
				}
				visited[nb] = true
				next = append(next, nb)
			}
		}
		queue = next
	}
	return 0, false
}

// Stats returns counts of tasks, connections, dependencies and deployments.
func (g *Graph) Stats() Stats {
	deployments := make(map[string]bool)
	for _, t := range g.tasks {
		if t.Deployment != "" {
			deployments[t.Deployment] = true
		}
	}
	return Stats{
		TaskCount:       len(g.tasks),
		ConnectionCount: len(g.connections),
		DependencyCount: len(g.deps),
		DeploymentCount: len(deployments),
	}
}
