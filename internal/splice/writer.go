package splice

import (
	"context"
	"fmt"
	"strings"

	"codesplice/internal/logging"
)

// GenerateRequest is what the writer asks a Generator for one function.
type GenerateRequest struct {
	Func         string
	SystemPrompt string
	Prompt       string
	// Path is the file being rewritten, for context and logs.
	Path string
}

// Generation is a generator's answer. When the model refused, ErrorMessage
// is set and Code is empty.
type Generation struct {
	Code         string
	ErrorMessage string
}

// Generator produces code for one function region.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Generation, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (Generation, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	return f(ctx, req)
}

// ReplacementDiff describes one replaced region as a line edit. StartLine is
// 0-based in the new document, LineCount counts lines of the old document,
// Text holds the inserted lines.
type ReplacementDiff struct {
	Func      string `json:"func,omitempty"`
	StartLine int    `json:"start_line"`
	LineCount int    `json:"line_count"`
	Text      string `json:"text"`
}

// Result is the outcome of a write pass.
type Result struct {
	Text      string
	Diffs     []ReplacementDiff
	Generated []string
	Failed    []FuncError
}

// WriteOptions tune the writer.
type WriteOptions struct {
	Path string
}

type placed struct {
	fn       string
	oldStart int
	oldEnd   int
	newStart int
	newEnd   int
}

// Write produces the new file text for plan, calling gen once per region in
// source order. A generator error keeps that region's old text and is
// reported in Result.Failed; only context cancellation aborts the pass.
func Write(ctx context.Context, plan *Plan, gen Generator, opts WriteOptions) (*Result, error) {
	var (
		out    strings.Builder
		res    = &Result{}
		places []placed
		lines  = strings.Split(plan.Source, "\n")
	)

	for _, seg := range plan.Segments {
		if seg.Region == nil {
			out.WriteString(seg.Text)
			continue
		}
		r := seg.Region
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log := logging.Get(logging.CategoryBuild).With("func", r.Func)
		g, err := gen.Generate(ctx, GenerateRequest{
			Func:         r.Func,
			SystemPrompt: strings.TrimSpace(r.SystemPrompt),
			Prompt:       strings.TrimSpace(r.Prompt),
			Path:         opts.Path,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("generation failed, keeping previous region: %v", err)
			res.Failed = append(res.Failed, FuncError{Func: r.Func, Err: err})
			out.WriteString(r.Old)
			continue
		}

		start := out.Len()
		out.WriteString(renderRegion(r, g, plan.Namespace, lineEnding(lines, r.Line)))
		places = append(places, placed{
			fn:       r.Func,
			oldStart: r.Offset,
			oldEnd:   r.Offset + len(r.Old),
			newStart: start,
			newEnd:   out.Len(),
		})
		if g.ErrorMessage != "" {
			log.Warn("model reported an error: %s", g.ErrorMessage)
		} else {
			log.Info("generated %d bytes", len(g.Code))
		}
		res.Generated = append(res.Generated, r.Func)
	}

	res.Text = out.String()
	for _, pl := range places {
		res.Diffs = append(res.Diffs, lineDiff(plan.Source, res.Text, pl))
	}
	return res, nil
}

// renderRegion returns the text that replaces a region's old content,
// with lines terminated by eol.
func renderRegion(r *Region, g Generation, ns, eol string) string {
	var b strings.Builder
	if r.Inline {
		b.WriteString(eol)
	}
	if g.ErrorMessage != "" {
		ann := strings.ReplaceAll(ErrorAnnotation(ns, g.ErrorMessage), "\r\n", "\n")
		b.WriteString(strings.ReplaceAll(ann, "\n", eol))
		b.WriteString(eol)
	} else if code := trimBlankLines(g.Code); code != "" {
		b.WriteString(strings.ReplaceAll(code, "\n", eol))
		b.WriteString(eol)
	}
	if r.SelfClosing {
		b.WriteString(EndFuncMarker(ns))
		b.WriteString(eol)
	}
	return b.String()
}

// lineEnding returns "\r\n" when the given line of a document split on
// '\n' ends with a carriage return.
func lineEnding(lines []string, line int) string {
	if line < len(lines) && strings.HasSuffix(lines[line], "\r") {
		return "\r\n"
	}
	return "\n"
}

// EndFuncMarker is the comment the writer adds to close a self-closing
// region.
func EndFuncMarker(ns string) string {
	return fmt.Sprintf("/* @%s_endfunc */", ns)
}

// ErrorAnnotation renders a model-reported error as an inline comment. The
// comment carries no directive, so the next pass treats it as stale output.
func ErrorAnnotation(ns, msg string) string {
	msg = strings.ReplaceAll(strings.TrimSpace(msg), "*/", "* /")
	msg = strings.ReplaceAll(msg, "@"+ns+"_", "@ "+ns+"_")
	return fmt.Sprintf("/* %s generation error: %s */", ns, msg)
}

// trimBlankLines drops leading and trailing blank lines, keeping the
// indentation of the first non-blank line.
func trimBlankLines(code string) string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	lines := strings.Split(code, "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	for i := start; i < end; i++ {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.Join(lines[start:end], "\n")
}

// lineOf returns the 0-based line containing byte offset off.
func lineOf(s string, off int) int {
	return strings.Count(s[:off], "\n")
}

func atLineStart(s string, off int) bool {
	return off == 0 || s[off-1] == '\n'
}

// lineDiff converts a byte-level replacement into a whole-line edit. An
// edge that falls inside a line is widened to cover that line.
func lineDiff(oldDoc, newDoc string, pl placed) ReplacementDiff {
	startOld := lineOf(oldDoc, pl.oldStart)
	startNew := lineOf(newDoc, pl.newStart)
	textFrom := strings.LastIndexByte(newDoc[:pl.newStart], '\n') + 1

	endOld, textTo := lineOf(oldDoc, pl.oldEnd), pl.newEnd
	if !atLineStart(oldDoc, pl.oldEnd) || !atLineStart(newDoc, pl.newEnd) {
		endOld++
		textTo = len(newDoc)
		if nl := strings.IndexByte(newDoc[pl.newEnd:], '\n'); nl >= 0 {
			textTo = pl.newEnd + nl + 1
		}
	}
	return ReplacementDiff{
		Func:      pl.fn,
		StartLine: startNew,
		LineCount: endOld - startOld,
		Text:      newDoc[textFrom:textTo],
	}
}
