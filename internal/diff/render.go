package diff

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Renderer writes diffs for a console. Without color, insertions render as
// {+text+} and deletions as [-text-].
type Renderer struct {
	Color bool

	insert lipgloss.Style
	delete lipgloss.Style
	header lipgloss.Style
}

// NewRenderer creates a renderer.
func NewRenderer(color bool) *Renderer {
	return &Renderer{
		Color:  color,
		insert: lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")).Bold(true),
		delete: lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Strikethrough(true),
		header: lipgloss.NewStyle().Foreground(lipgloss.Color("#38BDF8")),
	}
}

func (r *Renderer) styled(op Op, text string) string {
	if !r.Color {
		switch op {
		case OpInsert:
			return "{+" + text + "+}"
		case OpDelete:
			return "[-" + text + "-]"
		}
		return text
	}
	switch op {
	case OpInsert:
		return r.insert.Render(text)
	case OpDelete:
		return r.delete.Render(text)
	}
	return text
}

// Chars writes a character diff inline.
func (r *Renderer) Chars(w io.Writer, chunks []Chunk) error {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(r.styled(c.Op, c.Text))
	}
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Hunks writes a unified-style line diff.
func (r *Renderer) Hunks(w io.Writer, oldPath, newPath string, hunks []Hunk) error {
	var b strings.Builder
	b.WriteString(r.head(fmt.Sprintf("--- %s\n+++ %s", oldPath, newPath)) + "\n")
	for _, h := range hunks {
		b.WriteString(r.head(fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)) + "\n")
		for _, l := range h.Lines {
			switch l.Op {
			case OpInsert:
				b.WriteString(r.line("+", l))
			case OpDelete:
				b.WriteString(r.line("-", l))
			default:
				b.WriteString(" " + l.Content + "\n")
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) head(s string) string {
	if !r.Color {
		return s
	}
	return r.header.Render(s)
}

func (r *Renderer) line(sign string, l Line) string {
	if !r.Color {
		return sign + l.Content + "\n"
	}
	style := r.insert
	if l.Op == OpDelete {
		style = r.delete
	}
	return style.Render(sign+l.Content) + "\n"
}
