package splice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		fn   string
		want *Range
	}{
		{
			name: "explicit end marker",
			doc:  twoFuncs,
			fn:   "a",
			want: &Range{StartLine: 6, EndLine: 7},
		},
		{
			name: "second function",
			doc:  twoFuncs,
			fn:   "b",
			want: &Range{StartLine: 11, EndLine: 12},
		},
		{
			name: "self closing by next func",
			doc:  "/* @ai_func a p */\none\ntwo\n/* @ai_func b q */\n",
			fn:   "a",
			want: &Range{StartLine: 1, EndLine: 3},
		},
		{
			name: "directive-free comments stay inside the region",
			doc:  "/* @ai_func a\np */\nx\n/* note */\ny\n/* @ai_endfunc */\n",
			fn:   "a",
			want: &Range{StartLine: 2, EndLine: 5},
		},
		{
			name: "runs to end of document",
			doc:  "/* @ai_func a p */\nx\ny\n",
			fn:   "a",
			want: &Range{StartLine: 1, EndLine: 3},
		},
		{
			name: "end of document without trailing newline",
			doc:  "/* @ai_func a p */\nx\ny",
			fn:   "a",
			want: &Range{StartLine: 1, EndLine: 3},
		},
		{
			name: "func named in a line comment is ignored",
			doc:  "// @ai_func a\ncode\n",
			fn:   "a",
			want: nil,
		},
		{
			name: "absent",
			doc:  twoFuncs,
			fn:   "zzz",
			want: nil,
		},
		{
			name: "terminator on the func line covers that line",
			doc:  "/* @ai_func a p */ x /* @ai_endfunc */\n",
			fn:   "a",
			want: &Range{StartLine: 0, EndLine: 1},
		},
		{
			name: "code after the func comment starts the region on its line",
			doc:  "/* @ai_func a do a */ old a\nmore\n/* @ai_endfunc */\n",
			fn:   "a",
			want: &Range{StartLine: 0, EndLine: 2},
		},
		{
			name: "code before the terminator ends the region after its line",
			doc:  "/* @ai_func a p */\nx\ny /* @ai_endfunc */\n",
			fn:   "a",
			want: &Range{StartLine: 1, EndLine: 3},
		},
		{
			name: "crlf line after the func comment",
			doc:  "/* @ai_func a p */\r\nold\r\n/* @ai_endfunc */\r\n",
			fn:   "a",
			want: &Range{StartLine: 1, EndLine: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Locate(tt.doc, tt.fn, ""))
		})
	}
}

func TestLocateAgreesWithWriter(t *testing.T) {
	docs := []string{
		twoFuncs,
		"/* @ai_func a\nmake a */\nold\n/* stale */\nmore\n/* @ai_func b q */\nold b\n",
		"head\n/* @ai_func a p */\n1\n2\n3",
		"\t/* @ai_func a p */\n\tx\n\t/* @ai_endfunc */\n",
		"/* @ai_func a do a */ old a\nmore\n/* @ai_endfunc */\n",
		"/* @ai_func a p */ x /* @ai_func b q */\n",
		"/* @ai_func a p */ x /* @ai_endfunc */\n",
		"/* @ai_func a p */\nx /* @ai_endfunc */\n",
		"/* @ai_func a p */ tail\n",
		"/* @ai_func a p */",
		"/* @ai_func a p */\r\nold\r\n/* @ai_endfunc */\r\n",
	}
	for _, doc := range docs {
		plan, err := Parse(doc, Options{Targets: NewTargetSet("a")})
		require.NoError(t, err)
		res, err := Write(t.Context(), plan, &fakeGen{}, WriteOptions{})
		require.NoError(t, err)
		require.Len(t, res.Diffs, 1)

		r := Locate(doc, "a", "ai")
		require.NotNil(t, r)
		assert.Equal(t, res.Diffs[0].LineCount, r.Lines(), "doc %q", doc)
		assert.Equal(t, res.Diffs[0].StartLine, r.StartLine, "doc %q", doc)

		replayed, err := ApplyDiffs(doc, res.Diffs)
		require.NoError(t, err)
		assert.Equal(t, res.Text, replayed, "doc %q", doc)
	}
}

func TestApplyDiffsRejectsOutOfRange(t *testing.T) {
	_, err := ApplyDiffs("a\nb\n", []ReplacementDiff{{StartLine: 5, LineCount: 1}})
	assert.Error(t, err)

	_, err = ApplyDiffs("a\nb\n", []ReplacementDiff{{StartLine: 1, LineCount: 4}})
	assert.Error(t, err)
}

func TestApplyDiffsSortsByStartLine(t *testing.T) {
	got, err := ApplyDiffs("a\nb\nc\n", []ReplacementDiff{
		{StartLine: 2, LineCount: 1, Text: "C\n"},
		{StartLine: 0, LineCount: 1, Text: "A1\nA2\n"},
	})
	require.NoError(t, err)
	// The second diff is expressed in new-document lines: after the first
	// replacement "b" sits on line 2 and "c" on line 3.
	assert.Equal(t, "A1\nA2\nC\nc\n", got)
}
