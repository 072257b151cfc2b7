//go:build cgo

package merge

// NewPersistentTracker opens the file-backed KuzuDB replacement tracker.
func NewPersistentTracker(dbPath string) (Tracker, error) {
	return NewKuzuTracker(dbPath)
}
