package config

import (
	"path/filepath"
	"time"
)

// BuildConfig configures generation runs.
type BuildConfig struct {
	// Parallelism caps concurrent targets in build-parallel (0 = unbounded).
	Parallelism int `yaml:"parallelism" json:"parallelism,omitempty"`

	// SyntaxCheck lints generated code with tree-sitter when a grammar is
	// available for the target file type.
	SyntaxCheck bool `yaml:"syntax_check" json:"syntax_check,omitempty"`

	// Debounce is how long the watcher waits for changes to settle.
	Debounce string `yaml:"debounce" json:"debounce,omitempty"`
}

// DefaultBuildConfig returns sensible defaults.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Parallelism: 0,
		SyntaxCheck: true,
		Debounce:    "300ms",
	}
}

// GetDebounce returns the watcher debounce as a duration.
func (c BuildConfig) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Debounce)
	if err != nil || d < 0 {
		return 300 * time.Millisecond
	}
	return d
}

// HistoryConfig configures the sqlite ledger of generation runs.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path,omitempty"` // relative to the workspace
}

// DefaultHistoryConfig returns sensible defaults.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled: true,
		Path:    filepath.Join(".splice", "history.db"),
	}
}

// ResolvePath returns the ledger path for a workspace.
func (c HistoryConfig) ResolvePath(workspace string) string {
	if filepath.IsAbs(c.Path) {
		return c.Path
	}
	return filepath.Join(workspace, c.Path)
}
