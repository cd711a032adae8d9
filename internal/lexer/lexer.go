// Package lexer scans source text for comment delimiters.
//
// The lexer only distinguishes single-line comment markers, multi-line
// comment start/end markers, text runs and line ends. It has no knowledge of
// string or character literals: a comment-looking sequence inside a string
// literal is reported as a comment.
package lexer

import "strings"

// Kind classifies a token.
type Kind int

const (
	SingleLineMarker Kind = iota // "//"
	MultiLineStart               // "/*"
	MultiLineEnd                 // "*/"
	Text                         // any run of other characters
	Newline                      // end of a line, emitted for every line
)

var kindNames = [...]string{
	SingleLineMarker: "SingleLineMarker",
	MultiLineStart:   "MultiLineStart",
	MultiLineEnd:     "MultiLineEnd",
	Text:             "Text",
	Newline:          "Newline",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Token is one lexical unit. Tokens are produced in stream order and never
// mutated.
type Token struct {
	Kind  Kind
	Value string
	// Line and Col are 0-based; Col is a byte column.
	Line int
	Col  int
	// Offset is the byte offset of the token in the joined buffer.
	Offset int
	// InComment reports whether the token belongs to a multi-line comment,
	// delimiters included.
	InComment bool
}

// SplitLines splits src on '\n'. Carriage returns stay part of the line text
// so offsets computed from the lines match the original buffer.
func SplitLines(src string) []string {
	return strings.Split(src, "\n")
}

// Lexer carries the multi-line comment state across lines.
type Lexer struct {
	inComment bool
	offset    int
}

// Scan lexes lines in order and calls fn for every token.
func Scan(lines []string, fn func(Token)) {
	var l Lexer
	for i, line := range lines {
		l.ScanLine(i, line, fn)
	}
}

// Tokens lexes lines and returns the full token stream.
func Tokens(lines []string) []Token {
	var toks []Token
	Scan(lines, func(t Token) {
		toks = append(toks, t)
	})
	return toks
}

// ScanLine lexes a single line. Lines must be fed in order; the lexer tracks
// the byte offset assuming each line was followed by a '\n'.
func (l *Lexer) ScanLine(lineNo int, line string, fn func(Token)) {
	start := 0 // start of the pending text run
	flush := func(end int) {
		if end > start {
			fn(Token{
				Kind:      Text,
				Value:     line[start:end],
				Line:      lineNo,
				Col:       start,
				Offset:    l.offset + start,
				InComment: l.inComment,
			})
		}
	}

	i := 0
	for i < len(line) {
		if l.inComment {
			if line[i] == '*' && i+1 < len(line) && line[i+1] == '/' {
				flush(i)
				fn(Token{Kind: MultiLineEnd, Value: "*/", Line: lineNo, Col: i, Offset: l.offset + i, InComment: true})
				l.inComment = false
				i += 2
				start = i
				continue
			}
			i++
			continue
		}

		if line[i] == '/' && i+1 < len(line) {
			switch line[i+1] {
			case '/':
				flush(i)
				fn(Token{Kind: SingleLineMarker, Value: "//", Line: lineNo, Col: i, Offset: l.offset + i})
				if rest := i + 2; rest < len(line) {
					fn(Token{Kind: Text, Value: line[rest:], Line: lineNo, Col: rest, Offset: l.offset + rest})
				}
				i = len(line)
				start = i
				continue
			case '*':
				flush(i)
				l.inComment = true
				fn(Token{Kind: MultiLineStart, Value: "/*", Line: lineNo, Col: i, Offset: l.offset + i, InComment: true})
				i += 2
				start = i
				continue
			}
		}
		i++
	}
	flush(len(line))

	fn(Token{Kind: Newline, Value: "\n", Line: lineNo, Col: len(line), Offset: l.offset + len(line), InComment: l.inComment})
	l.offset += len(line) + 1
}
