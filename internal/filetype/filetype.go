// Package filetype maps file extensions to their native comment delimiters.
//
// The table is open: Register adds or replaces an entry, so supporting a new
// host file type is an additive change.
package filetype

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Delimiters describes how to write comments in one file type.
type Delimiters struct {
	// SingleLine starts a line comment ("//", "#", "--"). Empty when the
	// language has none.
	SingleLine string
	// MultiStart and MultiEnd wrap a block comment. Empty when the language
	// only has line comments.
	MultiStart string
	MultiEnd   string
	// ModuleStart and ModuleEnd wrap a block comment emitted at the top level
	// of a file. They differ from MultiStart/MultiEnd for file types that must
	// leave an embedding mode before a comment is legal (PHP after a closing
	// "?>", for example).
	ModuleStart string
	ModuleEnd   string
}

// HasBlock reports whether the file type has block comments.
func (d Delimiters) HasBlock() bool {
	return d.ModuleStart != "" && d.ModuleEnd != ""
}

// LinePrefix is the prefix written before every line inside a module
// comment: empty for block comments, the line marker plus a space otherwise.
func (d Delimiters) LinePrefix() string {
	if d.HasBlock() {
		return ""
	}
	return d.SingleLine + " "
}

// Comment wraps text into a single comment suitable for the top level of a
// file of this type.
func (d Delimiters) Comment(text string) string {
	if d.HasBlock() {
		return d.ModuleStart + " " + d.Escape(text) + " " + d.ModuleEnd
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(d.SingleLine+" "+l, " ")
	}
	return strings.Join(lines, "\n")
}

// Escape neutralizes any occurrence of the block terminator inside text so
// the comment cannot be closed early. Escaping is deterministic, which keeps
// embedded prompt specs comparable.
func (d Delimiters) Escape(text string) string {
	if !d.HasBlock() {
		return text
	}
	for _, end := range []string{d.MultiEnd, d.ModuleEnd} {
		if end == "" || len(end) < 2 {
			continue
		}
		text = strings.ReplaceAll(text, end, end[:1]+" "+end[1:])
	}
	return text
}

var (
	cStyle = Delimiters{SingleLine: "//", MultiStart: "/*", MultiEnd: "*/", ModuleStart: "/*", ModuleEnd: "*/"}
	hash   = Delimiters{SingleLine: "#"}
	markup = Delimiters{MultiStart: "<!--", MultiEnd: "-->", ModuleStart: "<!--", ModuleEnd: "-->"}
)

var (
	mu    sync.RWMutex
	table = map[string]Delimiters{
		".go": cStyle, ".c": cStyle, ".h": cStyle, ".cc": cStyle, ".cpp": cStyle,
		".hpp": cStyle, ".cs": cStyle, ".java": cStyle, ".kt": cStyle,
		".scala": cStyle, ".swift": cStyle, ".rs": cStyle, ".dart": cStyle,
		".js": cStyle, ".mjs": cStyle, ".cjs": cStyle, ".jsx": cStyle,
		".ts": cStyle, ".tsx": cStyle, ".css": cStyle, ".scss": cStyle,
		".proto": cStyle,

		".py": {SingleLine: "#", MultiStart: `"""`, MultiEnd: `"""`, ModuleStart: `"""`, ModuleEnd: `"""`},
		".sh": hash, ".bash": hash, ".zsh": hash, ".rb": hash, ".pl": hash,
		".yaml": hash, ".yml": hash, ".toml": hash, ".r": hash,
		".mk": hash, "Makefile": hash, "Dockerfile": hash,

		".sql": {SingleLine: "--", MultiStart: "/*", MultiEnd: "*/", ModuleStart: "/*", ModuleEnd: "*/"},
		".lua": {SingleLine: "--", MultiStart: "--[[", MultiEnd: "]]", ModuleStart: "--[[", ModuleEnd: "]]"},
		".hs":  {SingleLine: "--", MultiStart: "{-", MultiEnd: "-}", ModuleStart: "{-", ModuleEnd: "-}"},

		".html": markup, ".htm": markup, ".xml": markup, ".svg": markup,
		".md": markup, ".vue": markup, ".svelte": markup,

		// A PHP file may end in HTML mode, so the footer re-enters PHP first.
		".php": {SingleLine: "//", MultiStart: "/*", MultiEnd: "*/", ModuleStart: "<?php /*", ModuleEnd: "*/ ?>"},
	}
)

// Default is used for unknown extensions.
var Default = cStyle

// Register adds or replaces the delimiters for an extension (including the
// leading dot) or an exact base name such as "Makefile".
func Register(ext string, d Delimiters) {
	mu.Lock()
	defer mu.Unlock()
	table[strings.ToLower(ext)] = d
}

// Lookup returns the delimiters for a file extension or base name.
func Lookup(ext string) (Delimiters, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := table[strings.ToLower(ext)]
	if !ok {
		d, ok = table[ext]
	}
	return d, ok
}

// ForPath resolves delimiters for a path, falling back to Default.
func ForPath(path string) Delimiters {
	base := filepath.Base(path)
	if d, ok := Lookup(base); ok && !strings.HasPrefix(base, ".") {
		return d
	}
	if d, ok := Lookup(filepath.Ext(path)); ok {
		return d
	}
	return Default
}

// Extensions lists the registered keys, sorted.
func Extensions() []string {
	mu.RLock()
	defer mu.RUnlock()
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
