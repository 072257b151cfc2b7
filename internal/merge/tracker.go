package merge

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Tracker is the persistent record of realized merges: a directed forest
// mapping each removed instance to its survivor. It outlives a single
// reduction invocation so instances merged in earlier passes still resolve.
// Implementations: MemTracker (always available), KuzuTracker (cgo,
// file-backed).
type Tracker interface {
	io.Closer

	// Init prepares backing storage. Called once before any record.
	Init(ctx context.Context) error

	// Record appends removed -> survivor. Recording an instance as its own
	// replacement is a programming error and panics.
	Record(ctx context.Context, removed, survivor string) error

	// Resolve follows the replacement chain from id to its ultimate
	// survivor. An instance never removed resolves to itself.
	Resolve(ctx context.Context, id string) (string, error)

	// Replacements returns the direct removed -> survivor mapping.
	Replacements(ctx context.Context) (map[string]string, error)
}

// Compile-time assertion: *MemTracker satisfies Tracker.
var _ Tracker = (*MemTracker)(nil)

// MemTracker implements Tracker with a Go map. Thread-safe via sync.RWMutex
// so MCP handlers may query while no pass is running.
type MemTracker struct {
	mu       sync.RWMutex
	replaced map[string]string
}

// NewMemTracker returns an initialized MemTracker.
func NewMemTracker() *MemTracker {
	return &MemTracker{replaced: make(map[string]string)}
}

// Init is a no-op for the in-memory tracker.
func (m *MemTracker) Init(_ context.Context) error { return nil }

// Record appends removed -> survivor to the forest.
func (m *MemTracker) Record(_ context.Context, removed, survivor string) error {
	if removed == survivor {
		panic(fmt.Sprintf("merge: recording %q as its own replacement", removed))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// The forest must stay acyclic and functional.
	if _, dup := m.replaced[removed]; dup {
		return fmt.Errorf("merge: %q was already replaced", removed)
	}
	if m.resolveLocked(survivor) == removed {
		return fmt.Errorf("merge: recording %q -> %q would create a replacement cycle", removed, survivor)
	}
	m.replaced[removed] = survivor
	return nil
}

// Resolve follows the chain and compresses the path so repeated lookups are
// single-hop, which also makes Resolve idempotent: Resolve(Resolve(x)) ==
// Resolve(x).
func (m *MemTracker) Resolve(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root := m.resolveLocked(id)
	for cur := id; cur != root; {
		next := m.replaced[cur]
		m.replaced[cur] = root
		cur = next
	}
	return root, nil
}

func (m *MemTracker) resolveLocked(id string) string {
	cur := id
	for {
		next, ok := m.replaced[cur]
		if !ok {
			return cur
		}
		cur = next
	}
}

// Replacements returns a copy of the direct mapping.
func (m *MemTracker) Replacements(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.replaced))
	for k, v := range m.replaced {
		out[k] = v
	}
	return out, nil
}

// Close is a no-op for the in-memory tracker.
func (m *MemTracker) Close() error { return nil }
