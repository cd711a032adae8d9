// Package manifest drives whole-file generation from a build manifest: a
// list of targets, each one a file regenerated from a system prompt and its
// own user prompt fragments.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	ErrFragmentAmbiguous = errors.New("fragment sets both text and file")
	ErrFragmentEmpty     = errors.New("fragment sets neither text nor file")
	ErrDuplicateTarget   = errors.New("duplicate target name")
	ErrNoTargets         = errors.New("manifest has no targets")
)

// AllTargets selects every target.
const AllTargets = "all"

// Fragment is one piece of a prompt: inline text or a file to inline.
type Fragment struct {
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Validate checks that exactly one of Text and File is set.
func (f Fragment) Validate() error {
	switch {
	case f.Text != "" && f.File != "":
		return ErrFragmentAmbiguous
	case f.Text == "" && f.File == "":
		return ErrFragmentEmpty
	}
	return nil
}

// Target is one generated file.
type Target struct {
	Name    string     `json:"name" yaml:"name"`
	File    string     `json:"file" yaml:"file"`
	Prompts []Fragment `json:"prompts" yaml:"prompts"`
}

// Manifest is a loaded build manifest. Paths are absolute after Load.
type Manifest struct {
	Path          string
	WorkingDir    string
	Model         string
	Provider      string
	SystemPrompts []Fragment
	Targets       []Target
}

type rawManifest struct {
	Model         string     `json:"model" yaml:"model"`
	Provider      string     `json:"provider" yaml:"provider"`
	WD            string     `json:"wd" yaml:"wd"`
	SystemPrompts []Fragment `json:"system_prompts" yaml:"system_prompts"`
	Targets       []Target   `json:"targets" yaml:"targets"`
}

// Load reads a manifest. Files ending in .yaml or .yml are YAML, anything
// else is JSON. The working directory defaults to the manifest's directory
// and is resolved relative to it.
func Load(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var raw rawManifest
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	dir := filepath.Dir(abs)
	wd := dir
	if raw.WD != "" {
		wd = raw.WD
		if !filepath.IsAbs(wd) {
			wd = filepath.Join(dir, wd)
		}
	}

	m := &Manifest{
		Path:          abs,
		WorkingDir:    filepath.Clean(wd),
		Model:         raw.Model,
		Provider:      raw.Provider,
		SystemPrompts: raw.SystemPrompts,
		Targets:       raw.Targets,
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return m, nil
}

// Validate checks fragments and target names.
func (m *Manifest) Validate() error {
	if len(m.Targets) == 0 {
		return ErrNoTargets
	}
	for i, f := range m.SystemPrompts {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("system_prompts[%d]: %w", i, err)
		}
	}
	seen := make(map[string]bool, len(m.Targets))
	for _, t := range m.Targets {
		if t.Name == "" {
			return fmt.Errorf("target with file %q has no name", t.File)
		}
		if t.Name == AllTargets {
			return fmt.Errorf("target name %q is reserved", AllTargets)
		}
		if t.File == "" {
			return fmt.Errorf("target %s: no file", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateTarget, t.Name)
		}
		seen[t.Name] = true
		for i, f := range t.Prompts {
			if err := f.Validate(); err != nil {
				return fmt.Errorf("target %s prompts[%d]: %w", t.Name, i, err)
			}
		}
	}
	return nil
}

// ApplyDefaults fills provider and model when the manifest leaves them out.
func (m *Manifest) ApplyDefaults(provider, model string) {
	if m.Provider == "" {
		m.Provider = provider
	}
	if m.Model == "" {
		m.Model = model
	}
}

// Dir is the directory holding the manifest.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

// TargetPath returns the absolute path of a target's file.
func (m *Manifest) TargetPath(t *Target) string {
	if filepath.IsAbs(t.File) {
		return t.File
	}
	return filepath.Join(m.WorkingDir, t.File)
}

// Target finds a target by name.
func (m *Manifest) Target(name string) (*Target, bool) {
	for i := range m.Targets {
		if m.Targets[i].Name == name {
			return &m.Targets[i], true
		}
	}
	return nil, false
}

// Select returns the targets named in names, in manifest order. "all"
// selects everything. Names matching no target are returned as unknown.
func (m *Manifest) Select(names []string) (selected []*Target, unknown []string) {
	want := make(map[string]bool, len(names))
	all := false
	for _, n := range names {
		if n == AllTargets {
			all = true
			continue
		}
		if _, ok := m.Target(n); !ok {
			unknown = append(unknown, n)
			continue
		}
		want[n] = true
	}
	for i := range m.Targets {
		if all || want[m.Targets[i].Name] {
			selected = append(selected, &m.Targets[i])
		}
	}
	return selected, unknown
}

// Files lists every file the manifest reads: the manifest itself and all
// file fragments.
func (m *Manifest) Files() []string {
	files := []string{m.Path}
	for _, f := range m.SystemPrompts {
		if f.File != "" {
			files = append(files, resolve(m.Dir(), f.File))
		}
	}
	for _, t := range m.Targets {
		for _, f := range t.Prompts {
			if f.File != "" {
				files = append(files, resolve(m.WorkingDir, f.File))
			}
		}
	}
	return files
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
