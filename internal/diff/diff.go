// Package diff compares prompt specs and generated files using the
// sergi/go-diff engine.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of a diff chunk or line.
type Op int

const (
	OpEqual Op = iota
	OpInsert
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	}
	return "equal"
}

// Chunk is a run of characters sharing one Op.
type Chunk struct {
	Op   Op
	Text string
}

// Line is one line of a line-level diff.
type Line struct {
	Op      Op
	Content string
	// OldNum and NewNum are 1-based; 0 when the line does not exist on that
	// side.
	OldNum int
	NewNum int
}

// Hunk groups changed lines with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Engine computes diffs.
type Engine struct {
	dmp     *diffmatchpatch.DiffMatchPatch
	Context int
}

// NewEngine creates an engine with three lines of hunk context.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp, Context: 3}
}

// DefaultEngine is shared by the package-level helpers.
var DefaultEngine = NewEngine()

// Chars returns a character-level diff after semantic cleanup.
func (e *Engine) Chars(oldText, newText string) []Chunk {
	diffs := e.dmp.DiffMain(oldText, newText, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	return toChunks(diffs)
}

// Chars is Chars on the default engine.
func Chars(oldText, newText string) []Chunk {
	return DefaultEngine.Chars(oldText, newText)
}

func toChunks(diffs []diffmatchpatch.Diff) []Chunk {
	out := make([]Chunk, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		var op Op
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		default:
			op = OpEqual
		}
		out = append(out, Chunk{Op: op, Text: d.Text})
	}
	return out
}

// Unchanged reports whether a chunk list contains no edits.
func Unchanged(chunks []Chunk) bool {
	for _, c := range chunks {
		if c.Op != OpEqual {
			return false
		}
	}
	return true
}

// Lines returns a line-level diff grouped into hunks. Identical inputs
// yield no hunks.
func (e *Engine) Lines(oldText, newText string) []Hunk {
	a, b, lineArray := e.dmp.DiffLinesToChars(oldText, newText)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	var lines []Line
	oldNum, newNum := 0, 0
	for _, d := range diffs {
		for _, text := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldNum++
				newNum++
				lines = append(lines, Line{Op: OpEqual, Content: text, OldNum: oldNum, NewNum: newNum})
			case diffmatchpatch.DiffDelete:
				oldNum++
				lines = append(lines, Line{Op: OpDelete, Content: text, OldNum: oldNum})
			case diffmatchpatch.DiffInsert:
				newNum++
				lines = append(lines, Line{Op: OpInsert, Content: text, NewNum: newNum})
			}
		}
	}
	return group(lines, e.Context)
}

// Lines is Lines on the default engine.
func Lines(oldText, newText string) []Hunk {
	return DefaultEngine.Lines(oldText, newText)
}

// splitLines splits text into lines without their terminators. A trailing
// newline does not produce an empty final line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// group collects changed lines into hunks, merging changes whose context
// windows touch.
func group(lines []Line, context int) []Hunk {
	var hunks []Hunk
	i := 0
	for i < len(lines) {
		if lines[i].Op == OpEqual {
			i++
			continue
		}
		start := max(i-context, 0)
		end := i
		for end < len(lines) {
			if lines[end].Op != OpEqual {
				end++
				continue
			}
			run := end
			for run < len(lines) && lines[run].Op == OpEqual {
				run++
			}
			if run == len(lines) || run-end > 2*context {
				end = min(end+context, len(lines))
				break
			}
			end = run
		}
		hunks = append(hunks, newHunk(lines[start:end]))
		i = end
	}
	return hunks
}

func newHunk(lines []Line) Hunk {
	h := Hunk{Lines: append([]Line(nil), lines...)}
	for _, l := range lines {
		if l.Op != OpInsert {
			h.OldCount++
			if h.OldStart == 0 {
				h.OldStart = l.OldNum
			}
		}
		if l.Op != OpDelete {
			h.NewCount++
			if h.NewStart == 0 {
				h.NewStart = l.NewNum
			}
		}
	}
	return h
}
