package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockProvider is a deterministic offline provider. Scripted replies are
// returned in order; once they run out it answers every prompt by calling
// the first offered tool with a stub derived from the prompt, and replies
// "done" after a tool result.
type MockProvider struct {
	mu       sync.Mutex
	replies  []Reply
	err      error
	requests []Request
}

// NewMockProvider creates a mock returning the scripted replies first.
func NewMockProvider(replies ...Reply) *MockProvider {
	return &MockProvider{replies: replies}
}

// FailWith makes every subsequent Send return err.
func (m *MockProvider) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns a copy of every request received so far.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns the number of requests received so far.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockProvider) Name() string { return "mock" }

// Send records the request and returns the next reply.
func (m *MockProvider) Send(ctx context.Context, req Request) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) > 0 {
		r := m.replies[0]
		m.replies = m.replies[1:]
		return &r, nil
	}

	in := estimateTokens(req.System)
	for _, msg := range req.Messages {
		in += estimateTokens(msg.Text)
	}

	if n := len(req.Messages); n > 0 && req.Messages[n-1].ToolResult != nil {
		return &Reply{Text: "done", StopReason: "end_turn", Usage: Usage{InputTokens: in, OutputTokens: 1}}, nil
	}
	stub := stubFor(req)
	usage := Usage{InputTokens: in, OutputTokens: estimateTokens(stub)}
	if len(req.Tools) == 0 {
		return &Reply{Text: stub, StopReason: "end_turn", Usage: usage}, nil
	}

	tool := req.Tools[0]
	kind, _ := ParseToolKind(tool.Name)
	return &Reply{
		ToolCalls: []ToolCall{{
			ID:    fmt.Sprintf("mock_%d", len(m.requests)),
			Name:  tool.Name,
			Input: map[string]interface{}{kind.argField(): stub},
		}},
		StopReason: "tool_use",
		Usage:      usage,
	}, nil
}

// estimateTokens approximates a token count at four bytes per token.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// stubFor renders a placeholder that echoes the first line of the last
// user prompt, so different prompts produce different output.
func stubFor(req Request) string {
	prompt := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if m := req.Messages[i]; m.Role == RoleUser && m.Text != "" {
			prompt = m.Text
			break
		}
	}
	first, _, _ := strings.Cut(strings.TrimSpace(prompt), "\n")
	return "// generated by mock: " + first
}
