package network

import (
	"fmt"
	"sort"
)

// UnknownTaskError is returned when a name lookup finds no live instance.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("task %q does not exist or has the wrong type", e.Name)
}

// Registry indexes a network's instances by name and by hosting deployment.
// It is rebuilt from the graph whenever lookups are needed after a reduction
// pass, since merges remove instances.
type Registry struct {
	byName      map[string]string   // task name -> instance ID
	deployments map[string][]string // deployment name -> instance IDs
}

// NewRegistry builds a Registry from the current state of the graph.
func NewRegistry(g *Graph) *Registry {
	r := &Registry{
		byName:      make(map[string]string),
		deployments: make(map[string][]string),
	}
	for _, t := range g.Tasks() {
		r.byName[t.Name] = t.ID
		if t.Deployment != "" {
			r.deployments[t.Deployment] = append(r.deployments[t.Deployment], t.ID)
		}
	}
	return r
}

// KnownTasks enumerates the names of all registered instances, sorted.
func (r *Registry) KnownTasks() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FindByName resolves a task name to an instance ID.
func (r *Registry) FindByName(name string) (string, error) {
	id, ok := r.byName[name]
	if !ok {
		return "", &UnknownTaskError{Name: name}
	}
	return id, nil
}

// Deployments enumerates the known deployment names, sorted.
func (r *Registry) Deployments() []string {
	out := make([]string, 0, len(r.deployments))
	for name := range r.deployments {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TasksOfDeployment returns the instance IDs hosted by a deployment.
func (r *Registry) TasksOfDeployment(name string) []string {
	out := make([]string, len(r.deployments[name]))
	copy(out, r.deployments[name])
	sort.Strings(out)
	return out
}
