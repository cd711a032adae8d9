package splice

import (
	"strings"

	"codesplice/internal/lexer"
)

// Range is a 0-based, end-exclusive line range.
type Range struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Lines returns the number of lines in the range.
func (r Range) Lines() int {
	return r.EndLine - r.StartLine
}

type lexComment struct {
	startLine int
	startCol  int
	endLine   int
	endCol    int
	body      strings.Builder
}

// Locate finds the lines currently occupied by the generated region of
// function name in a live document. It returns nil when the document has no
// func directive for name; callers then insert at the end of the document.
//
// The region starts on the line after the func comment and ends where the
// next comment carrying a directive opens, or at the end of the document.
// Comments without directives inside the region belong to it. A region
// sharing a line with either comment is widened to cover that whole line,
// the same way the writer reports its replacement.
func Locate(doc, name, ns string) *Range {
	if ns == "" {
		ns = DefaultNamespace
	}
	lines := lexer.SplitLines(doc)

	var (
		cur     *lexComment
		found   *Range
		funcEnd int
		done    bool
	)
	lexer.Scan(lines, func(t lexer.Token) {
		if done {
			return
		}
		switch {
		case t.Kind == lexer.MultiLineStart:
			cur = &lexComment{startLine: t.Line, startCol: t.Col}
		case cur == nil:
		case t.Kind == lexer.Text:
			cur.body.WriteString(t.Value)
		case t.Kind == lexer.Newline:
			cur.body.WriteByte('\n')
		case t.Kind == lexer.MultiLineEnd:
			cur.endLine, cur.endCol = t.Line, t.Col+len(t.Value)
			items, err := ScanDirectives(cur.body.String(), ns)
			directive := err != nil || hasDirective(items)
			if found == nil {
				if funcNamed(items, name) {
					funcEnd = cur.endLine
					found = &Range{StartLine: cur.endLine + 1}
					// Code after the comment, or no line break before EOF.
					if strings.TrimSpace(lines[cur.endLine][cur.endCol:]) != "" || cur.endLine == len(lines)-1 {
						found.StartLine = cur.endLine
					}
				}
			} else if directive {
				found.EndLine = cur.startLine
				if cur.startLine == funcEnd || strings.TrimSpace(lines[cur.startLine][:cur.startCol]) != "" {
					found.EndLine++
				}
				done = true
			}
			cur = nil
		}
	})

	if found == nil {
		return nil
	}
	if !done {
		found.EndLine = len(lines)
		if lines[len(lines)-1] == "" {
			found.EndLine--
		}
	}
	if found.EndLine < found.StartLine {
		found.EndLine = found.StartLine
	}
	return found
}

func funcNamed(items []Item, name string) bool {
	for _, it := range items {
		if it.Kind == ItemFunc && it.Name == name {
			return true
		}
	}
	return false
}
