package splice

import (
	"fmt"
	"strings"
)

// DefaultNamespace prefixes every directive keyword unless overridden.
const DefaultNamespace = "ai"

// ItemKind classifies one element of a scanned comment body.
type ItemKind int

const (
	ItemBareText ItemKind = iota
	ItemSystemPrompt
	ItemFunc
	ItemInclude
	ItemEndFunc
)

var itemNames = [...]string{
	ItemBareText:     "text",
	ItemSystemPrompt: "system_prompt",
	ItemFunc:         "func",
	ItemInclude:      "include",
	ItemEndFunc:      "endfunc",
}

func (k ItemKind) String() string {
	if int(k) < len(itemNames) {
		return itemNames[k]
	}
	return "unknown"
}

// IsDirective reports whether the item is a directive rather than bare text.
func (k ItemKind) IsDirective() bool {
	return k != ItemBareText
}

// Item is one directive or bare text run inside a comment body.
type Item struct {
	Kind ItemKind
	// Name is set for ItemFunc, Path for ItemInclude, Text for ItemBareText.
	Name string
	Path string
	Text string
	// Line is the 0-based line of the item relative to the comment body.
	Line int
}

// keywords in precedence order.
var keywords = []struct {
	word string
	kind ItemKind
}{
	{"system_prompt", ItemSystemPrompt},
	{"func", ItemFunc},
	{"include", ItemInclude},
	{"endfunc", ItemEndFunc},
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// ScanDirectives splits a comment body into directives and bare text. The
// returned SyntaxError carries a line relative to the body.
func ScanDirectives(body, ns string) ([]Item, error) {
	if ns == "" {
		ns = DefaultNamespace
	}
	prefix := "@" + ns + "_"

	var (
		items     []Item
		textStart int
		line      int
	)
	flushText := func(end int) {
		if end > textStart {
			text := body[textStart:end]
			items = append(items, Item{
				Kind: ItemBareText,
				Text: text,
				Line: line - strings.Count(text, "\n"),
			})
		}
	}

	i := 0
	for i < len(body) {
		if body[i] == '\n' {
			line++
			i++
			continue
		}
		if body[i] != '@' || !strings.HasPrefix(body[i:], prefix) || (i > 0 && isIdentByte(body[i-1])) {
			i++
			continue
		}

		kw := i + len(prefix)
		kind, end, ok := matchKeyword(body, kw)
		if !ok {
			i++
			continue
		}

		flushText(i)
		item := Item{Kind: kind, Line: line}
		switch kind {
		case ItemFunc:
			j := skipBlanks(body, end)
			k := j
			for k < len(body) && isIdentByte(body[k]) {
				k++
			}
			if k == j {
				return nil, &SyntaxError{Line: line, Msg: fmt.Sprintf("%sfunc requires a function name", prefix)}
			}
			item.Name = body[j:k]
			end = k
		case ItemInclude:
			j := skipBlanks(body, end)
			if j >= len(body) || body[j] != '"' {
				return nil, &SyntaxError{Line: line, Msg: fmt.Sprintf("%sinclude requires a quoted path", prefix)}
			}
			k := j + 1
			for k < len(body) && body[k] != '"' && body[k] != '\n' {
				k++
			}
			if k >= len(body) || body[k] != '"' || k == j+1 {
				return nil, &SyntaxError{Line: line, Msg: fmt.Sprintf("%sinclude path is not terminated", prefix)}
			}
			item.Path = body[j+1 : k]
			end = k + 1
		}
		items = append(items, item)
		i = end
		textStart = end
	}
	flushText(len(body))
	return items, nil
}

// matchKeyword returns the directive kind starting at pos and the index just
// past the keyword. A keyword must not run into further identifier bytes.
func matchKeyword(body string, pos int) (ItemKind, int, bool) {
	for _, kw := range keywords {
		if !strings.HasPrefix(body[pos:], kw.word) {
			continue
		}
		end := pos + len(kw.word)
		if end < len(body) && isIdentByte(body[end]) {
			continue
		}
		return kw.kind, end, true
	}
	return ItemBareText, pos, false
}

func skipBlanks(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

func hasDirective(items []Item) bool {
	for _, it := range items {
		if it.Kind.IsDirective() {
			return true
		}
	}
	return false
}
