//go:build cgo

package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestKuzuTracker creates a fresh in-memory KuzuTracker with an
// initialized schema and registers a cleanup to close it.
func newTestKuzuTracker(t *testing.T) *KuzuTracker {
	t.Helper()
	tr, err := NewKuzuMemTracker()
	require.NoError(t, err, "NewKuzuMemTracker should not fail")
	t.Cleanup(func() { _ = tr.Close() })

	require.NoError(t, tr.Init(context.Background()), "Init should not fail")
	return tr
}

func TestKuzuTracker_InitIdempotent(t *testing.T) {
	tr := newTestKuzuTracker(t)
	// Second call should be idempotent (IF NOT EXISTS).
	require.NoError(t, tr.Init(context.Background()))
}

func TestKuzuTracker_RecordAndResolve(t *testing.T) {
	tr := newTestKuzuTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Record(ctx, "a", "b"))
	require.NoError(t, tr.Record(ctx, "b", "c"))

	got, err := tr.Resolve(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "c", got)

	got, err = tr.Resolve(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", got)
}

func TestKuzuTracker_DuplicateRemovalRejected(t *testing.T) {
	tr := newTestKuzuTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Record(ctx, "a", "b"))
	require.Error(t, tr.Record(ctx, "a", "c"))
}

func TestKuzuTracker_CycleRejected(t *testing.T) {
	tr := newTestKuzuTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Record(ctx, "a", "b"))
	require.NoError(t, tr.Record(ctx, "b", "c"))
	require.Error(t, tr.Record(ctx, "c", "a"))
}

func TestKuzuTracker_Replacements(t *testing.T) {
	tr := newTestKuzuTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Record(ctx, "a", "b"))
	require.NoError(t, tr.Record(ctx, "x", "y"))

	m, err := tr.Replacements(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "b", "x": "y"}, m)
}
