package watch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fsnotify goroutines on Windows are not tracked reliably")
	}
}

func TestWatcher_DebouncesBatch(t *testing.T) {
	skipOnWindows(t)
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	other := filepath.Join(dir, "ignored.txt")
	for _, p := range []string{a, b, other} {
		require.NoError(t, os.WriteFile(p, []byte("0"), 0644))
	}

	batches := make(chan []string, 4)
	w, err := New([]string{a, b}, 100*time.Millisecond, func(_ context.Context, changed []string) {
		batches <- changed
	})
	require.NoError(t, err)
	w.Start(context.Background())

	require.NoError(t, os.WriteFile(a, []byte("1"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("1"), 0644))
	require.NoError(t, os.WriteFile(other, []byte("1"), 0644))
	require.NoError(t, os.WriteFile(a, []byte("2"), 0644))

	select {
	case got := <-batches:
		assert.Equal(t, []string{a, b}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}

	select {
	case got := <-batches:
		t.Fatalf("unexpected second batch %v", got)
	case <-time.After(300 * time.Millisecond):
	}

	stats := w.Stats()
	assert.Equal(t, 1, stats.Batches)
	assert.GreaterOrEqual(t, stats.Events, 2)
	w.Stop()
}

func TestWatcher_StopsOnContext(t *testing.T) {
	skipOnWindows(t)
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	f := filepath.Join(dir, "m.json")
	require.NoError(t, os.WriteFile(f, []byte("{}"), 0644))

	w, err := New([]string{f}, 50*time.Millisecond, func(context.Context, []string) {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()
	w.Stop()
	w.Stop()
}

func TestWatcher_SetFiles(t *testing.T) {
	skipOnWindows(t)
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	sub := filepath.Join(dir, "prompts")
	require.NoError(t, os.MkdirAll(sub, 0755))
	first := filepath.Join(dir, "m.json")
	second := filepath.Join(sub, "p.txt")
	require.NoError(t, os.WriteFile(first, []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(second, []byte("x"), 0644))

	batches := make(chan []string, 4)
	w, err := New([]string{first}, 50*time.Millisecond, func(_ context.Context, changed []string) {
		batches <- changed
	})
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.SetFiles([]string{first, second}))
	w.Start(context.Background())

	require.NoError(t, os.WriteFile(second, []byte("y"), 0644))
	select {
	case got := <-batches:
		assert.Equal(t, []string{second}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}

	_, err = New([]string{filepath.Join(dir, "missing-dir", "f")}, 0, nil)
	assert.Error(t, err)
}
