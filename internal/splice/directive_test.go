package splice

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDirectives(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Item
	}{
		{
			name: "bare text only",
			body: " just a comment ",
			want: []Item{{Kind: ItemBareText, Text: " just a comment "}},
		},
		{
			name: "func with prompt and include",
			body: " @ai_func greet Say hi. @ai_include \"a.md\" tail",
			want: []Item{
				{Kind: ItemBareText, Text: " "},
				{Kind: ItemFunc, Name: "greet"},
				{Kind: ItemBareText, Text: " Say hi. "},
				{Kind: ItemInclude, Path: "a.md"},
				{Kind: ItemBareText, Text: " tail"},
			},
		},
		{
			name: "endfunc then func in one comment",
			body: " @ai_endfunc @ai_func next\nbody",
			want: []Item{
				{Kind: ItemBareText, Text: " "},
				{Kind: ItemEndFunc},
				{Kind: ItemBareText, Text: " "},
				{Kind: ItemFunc, Name: "next"},
				{Kind: ItemBareText, Text: "\nbody", Line: 0},
			},
		},
		{
			name: "system prompt on its own line",
			body: "\n@ai_system_prompt\nBe terse.\n",
			want: []Item{
				{Kind: ItemBareText, Text: "\n"},
				{Kind: ItemSystemPrompt, Line: 1},
				{Kind: ItemBareText, Text: "\nBe terse.\n", Line: 1},
			},
		},
		{
			name: "unknown keyword is text",
			body: "@ai_unknown @ai_funcs @ai_function",
			want: []Item{{Kind: ItemBareText, Text: "@ai_unknown @ai_funcs @ai_function"}},
		},
		{
			name: "embedded in a word is text",
			body: "mail me@ai_func x",
			want: []Item{{Kind: ItemBareText, Text: "mail me@ai_func x"}},
		},
		{
			name: "other namespace is text",
			body: "@gpt_func x",
			want: []Item{{Kind: ItemBareText, Text: "@gpt_func x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScanDirectives(tt.body, "ai")
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ScanDirectives() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScanDirectivesCustomNamespace(t *testing.T) {
	items, err := ScanDirectives("@gpt_func x", "gpt")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, ItemFunc, items[0].Kind)
	assert.Equal(t, "x", items[0].Name)
}

func TestScanDirectivesSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		line int
	}{
		{"func without name", " @ai_func ", 0},
		{"func name on next line", "\n@ai_func\nname", 1},
		{"include without quotes", "@ai_include a.md", 0},
		{"include not terminated", "@ai_include \"a.md\nrest\"", 0},
		{"include empty path", "@ai_include \"\"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ScanDirectives(tt.body, "ai")
			var se *SyntaxError
			require.True(t, errors.As(err, &se), "expected SyntaxError, got %v", err)
			assert.Equal(t, tt.line, se.Line)
		})
	}
}

func TestItemKindString(t *testing.T) {
	assert.Equal(t, "system_prompt", ItemSystemPrompt.String())
	assert.Equal(t, "endfunc", ItemEndFunc.String())
	assert.Equal(t, "unknown", ItemKind(99).String())
	assert.False(t, ItemBareText.IsDirective())
	assert.True(t, ItemInclude.IsDirective())
}
