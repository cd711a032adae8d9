package diff

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChars(t *testing.T) {
	chunks := Chars("write a stack of ints", "write a stack of strings")
	assert.False(t, Unchanged(chunks))

	var oldText, newText string
	for _, c := range chunks {
		if c.Op != OpInsert {
			oldText += c.Text
		}
		if c.Op != OpDelete {
			newText += c.Text
		}
	}
	assert.Equal(t, "write a stack of ints", oldText)
	assert.Equal(t, "write a stack of strings", newText)

	assert.True(t, Unchanged(Chars("same", "same")))
	assert.True(t, Unchanged(nil))
}

func TestLines_NoChanges(t *testing.T) {
	assert.Empty(t, Lines("a\nb\n", "a\nb\n"))
}

func TestLines_SingleChange(t *testing.T) {
	oldText := "l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\n"
	newText := "l1\nl2\nl3\nl4\nX\nl6\nl7\nl8\n"

	hunks := Lines(oldText, newText)
	require.Len(t, hunks, 1)
	h := hunks[0]
	assert.Equal(t, 2, h.OldStart)
	assert.Equal(t, 2, h.NewStart)
	assert.Equal(t, 7, h.OldCount)
	assert.Equal(t, 7, h.NewCount)

	want := []Line{
		{Op: OpDelete, Content: "l5", OldNum: 5},
		{Op: OpInsert, Content: "X", NewNum: 5},
	}
	if diff := cmp.Diff(want, h.Lines[3:5]); diff != "" {
		t.Errorf("changed lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLines_SeparateHunks(t *testing.T) {
	var oldText, newText string
	for i := 0; i < 20; i++ {
		line := string(rune('a'+i)) + "\n"
		oldText += line
		switch i {
		case 1, 18:
			newText += "changed\n"
		default:
			newText += line
		}
	}
	hunks := Lines(oldText, newText)
	assert.Len(t, hunks, 2)

	eng := NewEngine()
	eng.Context = 10
	assert.Len(t, eng.Lines(oldText, newText), 1)
}

func TestRenderer_Plain(t *testing.T) {
	r := NewRenderer(false)

	var buf bytes.Buffer
	require.NoError(t, r.Chars(&buf, []Chunk{{OpEqual, "a "}, {OpDelete, "b"}, {OpInsert, "c"}}))
	assert.Equal(t, "a [-b-]{+c+}\n", buf.String())

	buf.Reset()
	require.NoError(t, r.Hunks(&buf, "old", "new", Lines("x\ny\n", "x\nz\n")))
	assert.Equal(t, "--- old\n+++ new\n@@ -1,2 +1,2 @@\n x\n-y\n+z\n", buf.String())
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "insert", OpInsert.String())
	assert.Equal(t, "delete", OpDelete.String())
	assert.Equal(t, "equal", OpEqual.String())
}
