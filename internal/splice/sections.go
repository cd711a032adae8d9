package splice

import (
	"strings"

	"codesplice/internal/lexer"
)

// SpanKind classifies a span of source text.
type SpanKind int

const (
	SpanCode SpanKind = iota
	SpanComment
)

func (k SpanKind) String() string {
	if k == SpanComment {
		return "comment"
	}
	return "code"
}

// Span is a contiguous run of source text. Comment spans hold a complete
// multi-line comment, delimiters included.
type Span struct {
	Kind SpanKind
	Text string
	// Offset is the byte offset of Text in the source.
	Offset int
	// StartLine and EndLine are the 0-based lines of the first and last byte.
	StartLine int
	EndLine   int
}

// Body returns a comment span's text without its delimiters.
func (s Span) Body() string {
	if s.Kind != SpanComment || len(s.Text) < 4 {
		return ""
	}
	return s.Text[2 : len(s.Text)-2]
}

// Split partitions src into code and comment spans. The spans cover src
// without gaps or overlaps and no span is empty. A "/*" with no matching
// "*/" does not open a comment; the remainder of the file is code.
func Split(src string) []Span {
	var (
		spans     []Span
		codeStart int
		openAt    = -1
	)

	emit := func(kind SpanKind, from, to int) {
		if to <= from {
			return
		}
		text := src[from:to]
		start := strings.Count(src[:from], "\n")
		spans = append(spans, Span{
			Kind:      kind,
			Text:      text,
			Offset:    from,
			StartLine: start,
			EndLine:   start + strings.Count(text[:len(text)-1], "\n"),
		})
	}

	lexer.Scan(lexer.SplitLines(src), func(t lexer.Token) {
		switch t.Kind {
		case lexer.MultiLineStart:
			openAt = t.Offset
		case lexer.MultiLineEnd:
			end := t.Offset + len(t.Value)
			emit(SpanCode, codeStart, openAt)
			emit(SpanComment, openAt, end)
			codeStart = end
			openAt = -1
		}
	})

	emit(SpanCode, codeStart, len(src))
	return spans
}
