package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codesplice/internal/splice"
	"codesplice/internal/usage"
)

func TestCodeGenerator_ToolCall(t *testing.T) {
	mock := NewMockProvider(Reply{ToolCalls: []ToolCall{call("1", "create_function", "code", "func add(a, b int) int { return a + b }")}})
	gen := NewCodeGenerator(New(mock, 0), "m", 3)

	out, err := gen.Generate(context.Background(), splice.GenerateRequest{
		Func:         "add",
		SystemPrompt: "Use Go.",
		Prompt:       "add two ints",
		Path:         "/tmp/math.go",
	})
	require.NoError(t, err)
	assert.Equal(t, "func add(a, b int) int { return a + b }", out.Code)
	assert.Empty(t, out.ErrorMessage)
	assert.Equal(t, 1, mock.Calls())

	req := mock.Requests()[0]
	assert.True(t, strings.HasPrefix(req.System, "Use Go.\n\n"))
	assert.Contains(t, req.Messages[0].Text, "`add`")
	assert.Contains(t, req.Messages[0].Text, "math.go")
	assert.Contains(t, req.Messages[0].Text, "add two ints")
	var names []string
	for _, d := range req.Tools {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"create_function", "report_error"}, names)
}

func TestCodeGenerator_ReportError(t *testing.T) {
	mock := NewMockProvider(Reply{ToolCalls: []ToolCall{call("1", "report_error", "message", "ambiguous prompt")}})
	out, err := NewCodeGenerator(New(mock, 0), "m", 3).Generate(context.Background(), splice.GenerateRequest{Func: "f", Prompt: "?"})
	require.NoError(t, err)
	assert.Equal(t, "ambiguous prompt", out.ErrorMessage)
	assert.Empty(t, out.Code)
}

func TestCodeGenerator_TextFallback(t *testing.T) {
	mock := NewMockProvider(Reply{Text: "Here you go:\n```go\nfunc f() {}\n```\nEnjoy."})
	out, err := NewCodeGenerator(New(mock, 0), "m", 3).Generate(context.Background(), splice.GenerateRequest{Func: "f", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "func f() {}", out.Code)

	empty := NewMockProvider(Reply{Text: "   "})
	_, err = NewCodeGenerator(New(empty, 0), "m", 3).Generate(context.Background(), splice.GenerateRequest{Func: "f", Prompt: "p"})
	assert.Error(t, err)
}

func TestCodeGenerator_GenerateFile(t *testing.T) {
	mock := NewMockProvider()
	gen := NewCodeGenerator(New(mock, 0), "mock-1", 2)

	out, err := gen.GenerateFile(context.Background(), "", "Build a stack\nwith push and pop")
	require.NoError(t, err)
	assert.Equal(t, "// generated by mock: Build a stack", out.Code)
	assert.Equal(t, "mock", gen.ProviderName())
	assert.Equal(t, "mock-1", gen.Model())

	req := mock.Requests()[0]
	assert.Equal(t, toolInstruction, req.System)
	assert.Equal(t, "create_class", req.Tools[0].Name)
}

func TestCodeGenerator_TransportError(t *testing.T) {
	mock := NewMockProvider()
	mock.FailWith(context.DeadlineExceeded)
	_, err := NewCodeGenerator(New(mock, 0), "m", 2).Generate(context.Background(), splice.GenerateRequest{Func: "f", Prompt: "p"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  x := 1  \n", "x := 1"},
		{"fenced", "```\na\nb\n```", "a\nb"},
		{"language tag", "text\n```python\ndef f(): pass\n```", "def f(): pass"},
		{"first block wins", "```go\none\n```\n```go\ntwo\n```", "one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.in))
		})
	}
}

func TestCodeGenerator_TracksUsage(t *testing.T) {
	mock := NewMockProvider(
		Reply{Text: "let me think", Usage: Usage{InputTokens: 100, OutputTokens: 10}},
	)
	gen := NewCodeGenerator(New(mock, 0), "m", 3)

	tracker, err := usage.NewTracker(usage.DefaultPath(t.TempDir()))
	require.NoError(t, err)
	ctx := usage.NewContext(usage.WithOperation(context.Background(), "gen"), tracker)

	_, err = gen.Generate(ctx, splice.GenerateRequest{Func: "add", Prompt: "add"})
	require.NoError(t, err)

	stats := tracker.Stats()
	assert.Equal(t, usage.TokenCounts{Calls: 1, Input: 100, Output: 10, Total: 110}, stats.Total)
	assert.EqualValues(t, 110, stats.ByModel["m"].Total)
	assert.EqualValues(t, 110, stats.ByProvider["mock"].Total)
	assert.EqualValues(t, 1, stats.ByTarget["add"].Calls)
	assert.EqualValues(t, 1, stats.ByOperation["gen"].Calls)
}
