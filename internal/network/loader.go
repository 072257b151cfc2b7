package network

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// networkFile is the YAML representation of a planned network.
type networkFile struct {
	Name         string           `yaml:"name"`
	Tasks        []taskEntry      `yaml:"tasks"`
	Connections  []connEntry      `yaml:"connections"`
	Dependencies []DependencyYAML `yaml:"dependencies"`
}

type taskEntry struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name,omitempty"`
	RequiredModel     string `yaml:"requiredModel"`
	ConcreteModel     string `yaml:"concreteModel,omitempty"`
	Abstract          bool   `yaml:"abstract,omitempty"`
	Deployed          bool   `yaml:"deployed,omitempty"`
	Deployment        string `yaml:"deployment,omitempty"`
	State             string `yaml:"state,omitempty"`
	TransactionProxy  bool   `yaml:"transactionProxy,omitempty"`
	PlaceholderProxy  bool   `yaml:"placeholderProxy,omitempty"`
	Reusable          *bool  `yaml:"reusable,omitempty"`
	FullyInstantiated *bool  `yaml:"fullyInstantiated,omitempty"`
	Composition       bool   `yaml:"composition,omitempty"`
	DeviceName        string `yaml:"deviceName,omitempty"`
}

type connEntry struct {
	Source     string            `yaml:"source"`
	SourcePort string            `yaml:"sourcePort"`
	Sink       string            `yaml:"sink"`
	SinkPort   string            `yaml:"sinkPort"`
	Policy     map[string]string `yaml:"policy,omitempty"`
}

// DependencyYAML is the YAML form of a dependency edge.
type DependencyYAML struct {
	Parent string `yaml:"parent"`
	Child  string `yaml:"child"`
	Role   string `yaml:"role,omitempty"`
}

// LoadFile reads a planned network description from a YAML file.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("network: read %s: %w", path, err)
	}
	g, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("network: %s: %w", path, err)
	}
	return g, nil
}

// Load parses a planned network description from YAML bytes and validates
// it (known endpoints, unique instance IDs, valid lifecycle states).
func Load(data []byte) (*Graph, error) {
	var file networkFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse network description: %w", err)
	}

	name := file.Name
	if name == "" {
		name = "network"
	}
	g := NewGraph(name)

	for _, e := range file.Tasks {
		state := LifecycleState(e.State)
		switch state {
		case "":
			state = StatePending
		case StatePending, StateRunning, StateFinished:
		default:
			return nil, fmt.Errorf("task %q: unknown state %q", e.ID, e.State)
		}

		// Reusable and fullyInstantiated default to true when omitted.
		reusable := true
		if e.Reusable != nil {
			reusable = *e.Reusable
		}
		instantiated := true
		if e.FullyInstantiated != nil {
			instantiated = *e.FullyInstantiated
		}

		taskName := e.Name
		if taskName == "" {
			taskName = e.ID
		}

		t := &TaskInstance{
			ID:                e.ID,
			Name:              taskName,
			RequiredModel:     e.RequiredModel,
			ConcreteModel:     e.ConcreteModel,
			Abstract:          e.Abstract,
			Deployed:          e.Deployed,
			Deployment:        e.Deployment,
			State:             state,
			TransactionProxy:  e.TransactionProxy,
			PlaceholderProxy:  e.PlaceholderProxy,
			Reusable:          reusable,
			FullyInstantiated: instantiated,
			Composition:       e.Composition,
			DeviceName:        e.DeviceName,
		}
		if t.RequiredModel == "" && !t.PlaceholderProxy {
			return nil, fmt.Errorf("task %q: requiredModel is required", e.ID)
		}
		if err := g.AddTask(t); err != nil {
			return nil, err
		}
	}

	for _, e := range file.Connections {
		if e.Source == e.Sink {
			return nil, fmt.Errorf("connection %s.%s -> %s.%s: self-connection in planned network", e.Source, e.SourcePort, e.Sink, e.SinkPort)
		}
		conn := Connection{
			SourceID:   e.Source,
			SourcePort: e.SourcePort,
			SinkID:     e.Sink,
			SinkPort:   e.SinkPort,
			Policy:     Policy(e.Policy),
		}
		if err := g.AddConnection(conn); err != nil {
			return nil, err
		}
	}

	for _, e := range file.Dependencies {
		edge := DependencyEdge{ParentID: e.Parent, ChildID: e.Child, Role: e.Role}
		if err := g.AddDependency(edge); err != nil {
			return nil, err
		}
	}

	return g, nil
}
