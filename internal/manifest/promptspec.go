package manifest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"codesplice/internal/filetype"
)

// Markers of an embedded prompt spec.
const (
	markerBuild = "@splice-build"
	markerUser  = "@splice-user"
	markerEnd   = "@splice-end"
)

// ErrNoSpec is returned when a file carries no prompt spec footer.
var ErrNoSpec = errors.New("no prompt spec found")

// PromptSpec records the prompts a file was generated from. It is appended
// to generated files as a footer comment and compared on the next
// build-changed run.
type PromptSpec struct {
	Version  string
	Provider string
	Model    string
	Stamp    time.Time
	System   string
	User     string
}

// StampLine renders the build line, which is ignored when specs are
// compared.
func (s PromptSpec) StampLine() string {
	return fmt.Sprintf("%s %s %s-%s %s", markerBuild, s.Version, s.Provider, s.Model, s.Stamp.UTC().Format(time.RFC3339))
}

// Render serializes the prompt spec as a comment in the file type's syntax.
func (s PromptSpec) Render(d filetype.Delimiters) string {
	prefix := d.LinePrefix()
	var b strings.Builder
	line := func(text string) {
		b.WriteString(strings.TrimRight(prefix+text, " "))
		b.WriteString("\n")
	}
	body := func(text string) {
		text = d.Escape(text)
		for _, l := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(l), "@splice-") || strings.HasPrefix(l, `\`) {
				l = `\` + l
			}
			line(l)
		}
	}

	if d.HasBlock() {
		b.WriteString(d.ModuleStart + "\n")
	}
	line(s.StampLine())
	body(s.System)
	line(markerUser)
	body(s.User)
	line(markerEnd)
	if d.HasBlock() {
		b.WriteString(d.ModuleEnd + "\n")
	}
	return b.String()
}

// Comparable returns the rendered spec without its build line.
func (s PromptSpec) Comparable(d filetype.Delimiters) string {
	return stripStamp(s.Render(d))
}

// stripStamp drops the build line, which always precedes the prompt lines.
func stripStamp(rendered string) string {
	lines := strings.SplitAfter(rendered, "\n")
	for i, l := range lines {
		if strings.Contains(l, markerBuild+" ") {
			return strings.Join(lines[:i], "") + strings.Join(lines[i+1:], "")
		}
	}
	return rendered
}

// Footer is a prompt spec found inside a file.
type Footer struct {
	Spec PromptSpec
	// Raw is the footer exactly as it appears in the file.
	Raw string
	// Offset is the byte offset where the footer starts.
	Offset int
}

// Comparable returns the raw footer without its build line.
func (f *Footer) Comparable() string {
	return stripStamp(f.Raw)
}

// ExtractPromptSpec finds the last prompt spec embedded in content.
func ExtractPromptSpec(content string, d filetype.Delimiters) (*Footer, error) {
	prefix := strings.TrimRight(d.LinePrefix(), " ")
	lines := strings.SplitAfter(content, "\n")
	offsets := make([]int, len(lines)+1)
	for i, l := range lines {
		offsets[i+1] = offsets[i] + len(l)
	}
	strip := func(l string) (string, bool) {
		l = strings.TrimRight(l, "\r\n")
		if !strings.HasPrefix(l, prefix) {
			return "", false
		}
		if prefix == "" {
			return l, true
		}
		return strings.TrimPrefix(strings.TrimPrefix(l, prefix), " "), true
	}

	start := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if body, ok := strip(lines[i]); ok && strings.HasPrefix(body, markerBuild+" ") {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrNoSpec
	}

	spec, err := parseStamp(lines[start])
	if err != nil {
		return nil, err
	}

	var system, user []string
	inUser := false
	end := -1
	for i := start + 1; i < len(lines); i++ {
		body, ok := strip(lines[i])
		if !ok {
			return nil, fmt.Errorf("%w: malformed line %d", ErrNoSpec, i+1)
		}
		if body == markerEnd {
			end = i
			break
		}
		if body == markerUser && !inUser {
			inUser = true
			continue
		}
		body = strings.TrimPrefix(body, `\`)
		if inUser {
			user = append(user, body)
		} else {
			system = append(system, body)
		}
	}
	if end < 0 || !inUser {
		return nil, fmt.Errorf("%w: unterminated spec", ErrNoSpec)
	}
	spec.System = strings.Join(system, "\n")
	spec.User = strings.Join(user, "\n")

	first, last := start, end
	if d.HasBlock() {
		if first == 0 || strings.TrimRight(lines[first-1], "\r\n") != d.ModuleStart {
			return nil, fmt.Errorf("%w: missing comment start", ErrNoSpec)
		}
		first--
		if last+1 >= len(lines) || strings.TrimRight(lines[last+1], "\r\n") != d.ModuleEnd {
			return nil, fmt.Errorf("%w: missing comment end", ErrNoSpec)
		}
		last++
	}

	return &Footer{
		Spec:   spec,
		Raw:    strings.Join(lines[first:last+1], ""),
		Offset: offsets[first],
	}, nil
}

func parseStamp(line string) (PromptSpec, error) {
	idx := strings.Index(line, markerBuild+" ")
	fields := strings.Fields(line[idx+len(markerBuild):])
	if len(fields) != 3 {
		return PromptSpec{}, fmt.Errorf("%w: malformed build line", ErrNoSpec)
	}
	var spec PromptSpec
	spec.Version = fields[0]
	spec.Provider, spec.Model, _ = strings.Cut(fields[1], "-")
	stamp, err := time.Parse(time.RFC3339, fields[2])
	if err != nil {
		return PromptSpec{}, fmt.Errorf("%w: bad timestamp: %v", ErrNoSpec, err)
	}
	spec.Stamp = stamp
	return spec, nil
}
