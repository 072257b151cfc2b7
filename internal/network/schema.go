package network

// --- Enums ---

// LifecycleState is the execution state of a task instance.
type LifecycleState string

const (
	StatePending  LifecycleState = "pending"
	StateRunning  LifecycleState = "running"
	StateFinished LifecycleState = "finished"
)

// --- Models ---

// TaskInstance is one component occurrence in the planned network. Instances
// are owned by the Graph; the reduction engine is the only mutator while a
// pass is running.
type TaskInstance struct {
	// ID is the opaque, stable identity of the instance.
	ID string `json:"id"`

	// Name is the human-facing component name (used by naming heuristics).
	Name string `json:"name"`

	// RequiredModel is the capability contract the instance must satisfy.
	RequiredModel string `json:"requiredModel"`

	// ConcreteModel is the actual implementation type; may be more specific
	// than RequiredModel. Empty while the instance is abstract.
	ConcreteModel string `json:"concreteModel,omitempty"`

	// Abstract is true while the instance is not bound to a concrete
	// implementation.
	Abstract bool `json:"abstract,omitempty"`

	// Deployed is true once the instance is bound to a running process.
	Deployed bool `json:"deployed,omitempty"`

	// Deployment names the process hosting this instance, if deployed.
	Deployment string `json:"deployment,omitempty"`

	// State is the lifecycle state (pending / running / finished).
	State LifecycleState `json:"state"`

	// TransactionProxy marks a placeholder standing in for a real instance
	// inside a speculative edit. Such instances are never removed by a merge.
	TransactionProxy bool `json:"transactionProxy,omitempty"`

	// PlaceholderProxy marks an unresolved capability placeholder.
	PlaceholderProxy bool `json:"placeholderProxy,omitempty"`

	// Reusable is false for instances that must not absorb other instances.
	Reusable bool `json:"reusable"`

	// FullyInstantiated is true when no required child is missing.
	FullyInstantiated bool `json:"fullyInstantiated"`

	// Composition is true for instances whose model is a composition of
	// dependency children rather than a single component.
	Composition bool `json:"composition,omitempty"`

	// DeviceName is the name of the external resource (e.g. a device) this
	// instance is bound to, or empty.
	DeviceName string `json:"deviceName,omitempty"`
}

// Pending reports whether the instance has not started yet.
func (t *TaskInstance) Pending() bool { return t.State == StatePending }

// Running reports whether the instance is currently executing.
func (t *TaskInstance) Running() bool { return t.State == StateRunning }

// Finished reports whether the instance already ran its shutdown.
func (t *TaskInstance) Finished() bool { return t.State == StateFinished }

// Policy is the opaque key/value bag attached to a dataflow connection
// (buffer sizes, transport hints). Policies travel with the connection when
// its endpoints are rewritten.
type Policy map[string]string

// Clone returns a copy of the policy. A nil policy clones to nil.
func (p Policy) Clone() Policy {
	if p == nil {
		return nil
	}
	out := make(Policy, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Connection is a directed dataflow edge from an output port of one instance
// to an input port of another.
type Connection struct {
	SourceID   string `json:"source"`
	SourcePort string `json:"sourcePort"`
	SinkID     string `json:"sink"`
	SinkPort   string `json:"sinkPort"`
	Policy     Policy `json:"policy,omitempty"`
}

// DependencyEdge expresses "parent composition requires this child to exist".
// It is disjoint from dataflow.
type DependencyEdge struct {
	ParentID string `json:"parent"`
	ChildID  string `json:"child"`
	Role     string `json:"role,omitempty"`
}

// Stats summarizes a network graph.
type Stats struct {
	TaskCount       int `json:"taskCount"`
	ConnectionCount int `json:"connectionCount"`
	DependencyCount int `json:"dependencyCount"`
	DeploymentCount int `json:"deploymentCount"`
}
