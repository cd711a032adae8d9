package manifest

import (
	"fmt"
	"os"
	"strings"
)

// SystemPrompt assembles the system prompt. File fragments resolve against
// the manifest directory.
func (m *Manifest) SystemPrompt() (string, error) {
	return assemble(m.Dir(), m.SystemPrompts)
}

// UserPrompt assembles a target's prompt. File fragments resolve against
// the working directory.
func (m *Manifest) UserPrompt(t *Target) (string, error) {
	p, err := assemble(m.WorkingDir, t.Prompts)
	if err != nil {
		return "", fmt.Errorf("target %s: %w", t.Name, err)
	}
	return p, nil
}

// assemble joins fragments with a blank line. Files are read on every call.
func assemble(dir string, frags []Fragment) (string, error) {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		if f.File == "" {
			parts = append(parts, f.Text)
			continue
		}
		path := resolve(dir, f.File)
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read prompt fragment %s: %w", f.File, err)
		}
		parts = append(parts, strings.ReplaceAll(string(data), "\r\n", "\n"))
	}
	return strings.Join(parts, "\n\n"), nil
}
