package splice

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codesplice/internal/logging"
)

// ParseMode is the directive state machine mode while scanning one comment.
type ParseMode int

const (
	ModeStart ParseMode = iota
	ModeSystem
	ModeFunc
)

func (m ParseMode) String() string {
	switch m {
	case ModeSystem:
		return "system"
	case ModeFunc:
		return "func"
	default:
		return "start"
	}
}

// TargetSet selects which functions or manifest targets are rebuilt. The
// name "all" selects everything.
type TargetSet struct {
	all   bool
	names map[string]bool
}

// AllTargets is the name that selects every target.
const AllTargets = "all"

// NewTargetSet builds a selection from names.
func NewTargetSet(names ...string) TargetSet {
	ts := TargetSet{names: make(map[string]bool, len(names))}
	for _, n := range names {
		if n == AllTargets {
			ts.all = true
		}
		ts.names[n] = true
	}
	return ts
}

// Contains reports whether name is selected.
func (ts TargetSet) Contains(name string) bool {
	return ts.all || ts.names[name]
}

// All reports whether the sentinel "all" is present.
func (ts TargetSet) All() bool {
	return ts.all
}

// Names returns the explicitly listed names, excluding "all".
func (ts TargetSet) Names() []string {
	out := make([]string, 0, len(ts.names))
	for n := range ts.names {
		if n != AllTargets {
			out = append(out, n)
		}
	}
	return out
}

// Options configure a parse pass.
type Options struct {
	// Namespace is the directive prefix; DefaultNamespace when empty.
	Namespace string
	// Targets selects functions to rebuild.
	Targets TargetSet
	// Dir resolves relative include paths, normally the file's directory.
	Dir string
	// ReadFile reads include files; os.ReadFile when nil.
	ReadFile func(string) ([]byte, error)
}

func (o Options) namespace() string {
	if o.Namespace == "" {
		return DefaultNamespace
	}
	return o.Namespace
}

// OpenFunc is the function whose region is currently being scanned.
type OpenFunc struct {
	Name   string
	Prompt string
	// Target is true when the function is selected and has a non-empty prompt.
	Target bool
	// Line is the 0-based line on which the func comment ends.
	Line int
	// region collects the raw text between the func comment and whatever
	// ends the function.
	region    strings.Builder
	regionOff int
}

// ParserState is the explicit accumulation state threaded through one pass.
type ParserState struct {
	Mode         ParseMode
	SystemPrompt string
	Func         *OpenFunc
}

// Region is a target function's generated region, scheduled for rewrite.
type Region struct {
	Func         string
	SystemPrompt string
	Prompt       string
	// SelfClosing is set when no explicit endfunc follows the region, so
	// the writer must add one.
	SelfClosing bool
	// Old is the replaced text; Offset is its position in the source.
	Old    string
	Offset int
	// Line is the 0-based line on which the func comment ends.
	Line int
	// Inline is set when Old does not start on a fresh line.
	Inline bool
}

// Segment is either verbatim text or a region to regenerate.
type Segment struct {
	Text   string
	Region *Region
}

// Plan is the outcome of parsing: everything needed to produce the new file
// once generation results arrive.
type Plan struct {
	Source    string
	Namespace string
	Segments  []Segment
}

// Regions lists the planned regions in source order.
func (p *Plan) Regions() []*Region {
	var out []*Region
	for _, s := range p.Segments {
		if s.Region != nil {
			out = append(out, s.Region)
		}
	}
	return out
}

type parser struct {
	opts  Options
	ns    string
	src   string
	state ParserState
	segs  []Segment
}

// Parse runs the directive state machine over src and returns the plan. Any
// structural error aborts the pass before generation.
func Parse(src string, opts Options) (*Plan, error) {
	p := &parser{opts: opts, ns: opts.namespace(), src: src}
	if p.opts.ReadFile == nil {
		p.opts.ReadFile = os.ReadFile
	}

	for _, span := range Split(src) {
		var err error
		if span.Kind == SpanCode {
			p.code(span)
		} else {
			err = p.comment(span)
		}
		if err != nil {
			return nil, err
		}
	}
	p.closeFunc(true, len(src))

	plan := &Plan{Source: src, Namespace: p.ns, Segments: p.segs}
	logging.ParseDebug("parsed %d bytes: %d segments, %d regions", len(src), len(plan.Segments), len(plan.Regions()))
	return plan, nil
}

func (p *parser) verbatim(text string) {
	if text == "" {
		return
	}
	if n := len(p.segs); n > 0 && p.segs[n-1].Region == nil {
		p.segs[n-1].Text += text
		return
	}
	p.segs = append(p.segs, Segment{Text: text})
}

func (p *parser) inTarget() bool {
	return p.state.Func != nil && p.state.Func.Target
}

func (p *parser) code(span Span) {
	if p.inTarget() {
		p.state.Func.region.WriteString(span.Text)
		return
	}
	p.verbatim(span.Text)
}

// isStaleOutput reports whether a comment is leftover generated output:
// it carries no directive and sits inside the region of a function that is
// about to be regenerated. Such comments are dropped along with the region.
func isStaleOutput(st *ParserState, items []Item) bool {
	return st.Func != nil && st.Func.Target && !hasDirective(items)
}

func (p *parser) comment(span Span) error {
	items, err := ScanDirectives(span.Body(), p.ns)
	if err != nil {
		if se, ok := err.(*SyntaxError); ok {
			se.Line += span.StartLine
		}
		return err
	}

	if !hasDirective(items) {
		if isStaleOutput(&p.state, items) {
			logging.ParseDebug("dropping stale comment at line %d inside %s", span.StartLine+1, p.state.Func.Name)
			p.state.Func.region.WriteString(span.Text)
			return nil
		}
		p.verbatim(span.Text)
		return nil
	}

	p.state.Mode = ModeStart
	var opened *OpenFunc
	for _, it := range items {
		line := span.StartLine + it.Line
		switch p.state.Mode {
		case ModeStart:
			switch it.Kind {
			case ItemBareText:
			case ItemSystemPrompt:
				p.closeFunc(true, span.Offset)
				p.state.SystemPrompt = ""
				p.state.Mode = ModeSystem
			case ItemFunc:
				p.closeFunc(true, span.Offset)
				opened = &OpenFunc{Name: it.Name}
				p.state.Func = opened
				p.state.Mode = ModeFunc
			case ItemEndFunc:
				if p.state.Func == nil || strings.TrimSpace(p.state.Func.Prompt) == "" {
					return &DanglingEndFuncError{Line: line}
				}
				p.closeFunc(false, span.Offset)
			case ItemInclude:
				return &StructureError{Line: line, Msg: "include outside of a system or function prompt"}
			}

		case ModeSystem, ModeFunc:
			var text string
			switch it.Kind {
			case ItemBareText:
				text = it.Text
			case ItemInclude:
				content, err := p.include(it.Path, line)
				if err != nil {
					return err
				}
				text = content
			default:
				return &IllegalDirectiveError{Line: line, Mode: p.state.Mode, Directive: it.Kind}
			}
			if p.state.Mode == ModeSystem {
				p.state.SystemPrompt += text
			} else {
				p.state.Func.Prompt += text
			}
		}
	}
	p.state.Mode = ModeStart

	p.verbatim(span.Text)

	if opened != nil && opened == p.state.Func {
		opened.Line = span.EndLine
		opened.Target = p.opts.Targets.Contains(opened.Name) && strings.TrimSpace(opened.Prompt) != ""
		opened.regionOff = span.Offset + len(span.Text)
		logging.ParseDebug("func %s opened at line %d (target=%v)", opened.Name, span.StartLine+1, opened.Target)
	}
	return nil
}

func (p *parser) include(path string, line int) (string, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(p.opts.Dir, path)
	}
	data, err := p.opts.ReadFile(full)
	if err != nil {
		return "", &IncludeError{Line: line, Path: path, Err: err}
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// closeFunc ends the open function. For a target, its collected region is
// turned into a Region segment; end is the source offset where the region
// stops (the terminating comment's start, or EOF).
func (p *parser) closeFunc(selfClosing bool, end int) {
	f := p.state.Func
	if f == nil {
		return
	}
	p.state.Func = nil
	if !f.Target {
		return
	}

	raw := f.region.String()
	atEOF := end == len(p.src)

	// Keep the remainder of the func comment's line and the indentation
	// before the terminating comment outside the replaced text, so the
	// region covers whole lines.
	var head, tail string
	if nl := strings.IndexByte(raw, '\n'); nl >= 0 && strings.TrimSpace(raw[:nl]) == "" {
		head = raw[:nl+1]
	}
	if !atEOF {
		if nl := strings.LastIndexByte(raw, '\n'); nl >= 0 && nl+1 >= len(head) && strings.TrimSpace(raw[nl+1:]) == "" {
			tail = raw[nl+1:]
		}
	}
	old := raw[len(head) : len(raw)-len(tail)]

	p.verbatim(head)
	p.segs = append(p.segs, Segment{Region: &Region{
		Func:         f.Name,
		SystemPrompt: p.state.SystemPrompt,
		Prompt:       f.Prompt,
		SelfClosing:  selfClosing,
		Old:          old,
		Offset:       f.regionOff + len(head),
		Line:         f.Line,
		Inline:       head == "",
	}})
	p.verbatim(tail)
}

// Describe summarizes a plan for logs and dry runs.
func (p *Plan) Describe() string {
	var b strings.Builder
	for _, r := range p.Regions() {
		fmt.Fprintf(&b, "%s (line %d, %d bytes of prompt)\n", r.Func, r.Line+2, len(strings.TrimSpace(r.Prompt)))
	}
	return b.String()
}
