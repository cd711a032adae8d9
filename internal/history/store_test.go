package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, Run{Mode: ModeManifest, Target: "stack", File: "stack.go", Provider: "mock", Model: "mock-1", Status: StatusBuilt, Duration: 1500 * time.Millisecond, At: base}))
	require.NoError(t, s.Record(ctx, Run{Mode: ModeManifest, Target: "queue", File: "queue.go", Status: StatusSkipped, At: base.Add(time.Second)}))
	require.NoError(t, s.Record(ctx, Run{Mode: ModeDirective, Target: "add", File: "math.go", Status: StatusFailed, Detail: "timeout", At: base.Add(500 * time.Millisecond)}))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"queue", "add", "stack"}, []string{runs[0].Target, runs[1].Target, runs[2].Target})

	stack := runs[2]
	assert.NotEmpty(t, stack.ID)
	assert.Equal(t, ModeManifest, stack.Mode)
	assert.Equal(t, StatusBuilt, stack.Status)
	assert.Equal(t, "mock-1", stack.Model)
	assert.Equal(t, 1500*time.Millisecond, stack.Duration)
	assert.True(t, base.Equal(stack.At))

	assert.Equal(t, "timeout", runs[1].Detail)

	limited, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestForTarget(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, Run{Mode: ModeManifest, Target: "a", File: "a.go", Status: StatusBuilt}))
	}
	require.NoError(t, s.Record(ctx, Run{Mode: ModeManifest, Target: "b", File: "b.go", Status: StatusBuilt}))

	runs, err := s.ForTarget(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Run{Mode: ModeManifest, Target: "x", File: "x.go", Status: StatusBuilt}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, path, s.Path())
}
