// Package usage tracks LLM token consumption per workspace.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"codesplice/internal/fileio"
	"codesplice/internal/logging"
)

type contextKey int

const (
	trackerKey contextKey = iota
	operationKey
	targetKey
)

const unknown = "unknown"

// DefaultPath returns the usage file location for a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".splice", "usage.json")
}

// Tracker manages token usage recording and persistence.
type Tracker struct {
	mu       sync.Mutex
	data     UsageData
	filePath string
	dirty    bool
}

// NewTracker creates a tracker persisted at path, loading any existing
// totals. A corrupt file is logged and replaced on the next save.
func NewTracker(path string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage dir: %w", err)
	}

	t := &Tracker{filePath: path, data: emptyData()}
	if err := t.Load(); err != nil {
		logging.StoreError("usage file %s unreadable, starting fresh: %v", path, err)
		t.data = emptyData()
	}
	return t, nil
}

func emptyData() UsageData {
	return UsageData{
		Version: "1.0",
		Aggregate: AggregatedStats{
			ByProvider:  make(map[string]TokenCounts),
			ByModel:     make(map[string]TokenCounts),
			ByOperation: make(map[string]TokenCounts),
			ByTarget:    make(map[string]TokenCounts),
		},
	}
}

// Path returns the file the tracker persists to.
func (t *Tracker) Path() string {
	return t.filePath
}

// Load reads the usage data from disk.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var loaded UsageData
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}

	// Ensure maps are initialized if file was empty/partial
	if loaded.Aggregate.ByProvider == nil {
		loaded.Aggregate.ByProvider = make(map[string]TokenCounts)
	}
	if loaded.Aggregate.ByModel == nil {
		loaded.Aggregate.ByModel = make(map[string]TokenCounts)
	}
	if loaded.Aggregate.ByOperation == nil {
		loaded.Aggregate.ByOperation = make(map[string]TokenCounts)
	}
	if loaded.Aggregate.ByTarget == nil {
		loaded.Aggregate.ByTarget = make(map[string]TokenCounts)
	}
	t.data = loaded
	return nil
}

// Save writes the usage data to disk if anything was tracked since the
// last save.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return nil
	}

	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	if err := fileio.WriteAtomic(t.filePath, data); err != nil {
		return err
	}
	t.dirty = false
	logging.StoreDebug("usage saved to %s", t.filePath)
	return nil
}

// Track records one generation's token usage. Operation and target come
// from ctx.
func (t *Tracker) Track(ctx context.Context, provider, model string, input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	operation := stringValue(ctx, operationKey)
	target := stringValue(ctx, targetKey)

	t.data.Aggregate.Total.Add(input, output)
	addToMap(t.data.Aggregate.ByProvider, provider, input, output)
	addToMap(t.data.Aggregate.ByModel, model, input, output)
	addToMap(t.data.Aggregate.ByOperation, operation, input, output)
	addToMap(t.data.Aggregate.ByTarget, target, input, output)
	t.dirty = true
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByProvider = copyTokenCountsMap(stats.ByProvider)
	stats.ByModel = copyTokenCountsMap(stats.ByModel)
	stats.ByOperation = copyTokenCountsMap(stats.ByOperation)
	stats.ByTarget = copyTokenCountsMap(stats.ByTarget)
	return stats
}

func copyTokenCountsMap(src map[string]TokenCounts) map[string]TokenCounts {
	if src == nil {
		return nil
	}
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, input, output int) {
	entry := m[key]
	entry.Add(input, output)
	m[key] = entry
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v
	}
	return unknown
}

// Context Helpers

// NewContext returns a new context carrying the tracker.
func NewContext(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey, t)
}

// FromContext retrieves the tracker from the context, or nil.
func FromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey).(*Tracker)
	return t
}

// WithOperation labels usage tracked under ctx with a command name.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey, op)
}

// WithTarget labels usage tracked under ctx with a target or function name.
func WithTarget(ctx context.Context, target string) context.Context {
	return context.WithValue(ctx, targetKey, target)
}
