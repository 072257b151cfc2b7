package merge

import (
	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// Verdict is a comparator's tri-state answer to "can one instance replace
// another".
type Verdict int

const (
	// VerdictNo: the instances are definitely not interchangeable.
	VerdictNo Verdict = iota
	// VerdictYes: the survivor can definitely absorb the removed instance.
	VerdictYes
	// VerdictCycle: the answer depends on input connections that may
	// themselves be subject to merging; the pair must be deferred.
	VerdictCycle
)

func (v Verdict) String() string {
	switch v {
	case VerdictNo:
		return "no"
	case VerdictYes:
		return "yes"
	case VerdictCycle:
		return "cycle"
	default:
		return "unknown"
	}
}

// Comparator decides whether one task instance can substitute for another.
// Implementations must be side-effect free and must not observe graph state
// mutated during the pass; the engine constructs its default comparator from
// a snapshot taken at pass start.
type Comparator interface {
	// CanReplace reports whether survivor can absorb removed.
	CanReplace(survivor, removed *network.TaskInstance) Verdict
}

// Merger performs model-specific state transfer when a merge is realized.
// It runs before any graph rewriting so a failure leaves the network intact.
type Merger interface {
	// Merge transfers ownership of bindings from removed to survivor.
	Merge(survivor, removed *network.TaskInstance) error

	// PortMap returns the port renaming (removed's port name to survivor's)
	// to apply while retargeting connections, or nil for identity.
	PortMap(survivor, removed *network.TaskInstance) map[string]string
}

// CyclePair is a deferred candidate pair whose merge legitimacy depends on
// connections that may themselves merge.
type CyclePair struct {
	Survivor string
	Removed  string
}

// NopMerger is the default Merger: no model-specific state to transfer and
// identity port mapping.
type NopMerger struct{}

var _ Merger = NopMerger{}

func (NopMerger) Merge(_, _ *network.TaskInstance) error { return nil }

func (NopMerger) PortMap(_, _ *network.TaskInstance) map[string]string { return nil }
