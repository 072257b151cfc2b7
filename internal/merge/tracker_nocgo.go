//go:build !cgo

package merge

import "fmt"

// NewPersistentTracker requires the CGO-backed KuzuDB driver. Without CGO,
// callers fall back to the in-memory tracker.
func NewPersistentTracker(dbPath string) (Tracker, error) {
	return nil, fmt.Errorf("merge: persistent tracker at %s requires a cgo build", dbPath)
}
