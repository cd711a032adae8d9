// Package syntaxcheck lints generated code with tree-sitter grammars. It
// only reports problems; nothing is rejected on its account.
package syntaxcheck

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"codesplice/internal/logging"
)

// Issue is one syntax problem. Line and Col are 1-based.
type Issue struct {
	Line    int
	Col     int
	Missing bool
	Snippet string
}

func (i Issue) String() string {
	if i.Missing {
		return fmt.Sprintf("%d:%d: missing %s", i.Line, i.Col, i.Snippet)
	}
	return fmt.Sprintf("%d:%d: syntax error near %q", i.Line, i.Col, i.Snippet)
}

// maxIssues bounds the report for badly broken output.
const maxIssues = 20

var languages = map[string]func() *sitter.Language{
	".go":  golang.GetLanguage,
	".py":  python.GetLanguage,
	".rs":  rust.GetLanguage,
	".js":  javascript.GetLanguage,
	".mjs": javascript.GetLanguage,
	".cjs": javascript.GetLanguage,
	".jsx": javascript.GetLanguage,
	".ts":  typescript.GetLanguage,
}

// Supported reports whether a grammar exists for path.
func Supported(path string) bool {
	_, ok := languages[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Languages lists the extensions with a grammar.
func Languages() []string {
	exts := make([]string, 0, len(languages))
	for ext := range languages {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Check parses src with the grammar for path's extension. Unsupported file
// types yield no issues.
func Check(ctx context.Context, path string, src []byte) ([]Issue, error) {
	lang, ok := languages[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}

	var issues []Issue
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if len(issues) >= maxIssues {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			p := n.StartPoint()
			snippet := n.Type()
			if n.Type() == "ERROR" {
				snippet = firstLine(n.Content(src))
			}
			issues = append(issues, Issue{
				Line:    int(p.Row) + 1,
				Col:     int(p.Column) + 1,
				Missing: n.IsMissing(),
				Snippet: snippet,
			})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	logging.BuildDebug("syntaxcheck %s: %d issues", filepath.Base(path), len(issues))
	return issues, nil
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return s
}

// Linter adapts Check to callers that only want printable warnings.
type Linter struct{}

// Lint returns one message per issue.
func (Linter) Lint(ctx context.Context, path string, src string) ([]string, error) {
	issues, err := Check(ctx, path, []byte(src))
	if err != nil {
		return nil, err
	}
	msgs := make([]string, len(issues))
	for i, is := range issues {
		msgs[i] = is.String()
	}
	return msgs, nil
}
