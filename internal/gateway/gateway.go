// Package gateway is the boundary between codesplice and LLM providers.
//
// A Gateway runs a bounded conversation: the model may call at most one tool
// per turn, each call is dispatched to a typed handler, and its result is fed
// back until the model answers in plain text or the turn budget runs out.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"codesplice/internal/logging"
)

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ToolResult is the handler output returned to the model.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is one conversation entry. Assistant messages may carry a tool
// call; user messages may carry a tool result instead of text.
type Message struct {
	Role       Role        `json:"role"`
	Text       string      `json:"text,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// Conversation is the starting point of a Converse call.
type Conversation struct {
	System   string
	Messages []Message
}

// Request is what a provider sends over the wire for one turn.
type Request struct {
	Model    string
	System   string
	Messages []Message
	Tools    []ToolDefinition
}

// Usage counts the tokens billed for one or more turns.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add accumulates another turn's usage.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

// Reply is a provider's answer for one turn.
type Reply struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}

// Provider performs one request/response round trip.
type Provider interface {
	Name() string
	Send(ctx context.Context, req Request) (*Reply, error)
}

// Outcome summarizes a finished conversation.
type Outcome struct {
	// Text is the assistant text accumulated over all turns.
	Text  string
	Turns int
	Calls []ToolKind
	Usage Usage
	// Exhausted is set when the turn budget ran out while the model was
	// still calling tools. The outcome is best effort, not an error.
	Exhausted bool
}

// DefaultMaxResultBytes bounds tool results echoed back to the model.
const DefaultMaxResultBytes = 4096

// Gateway drives conversations against one provider.
type Gateway struct {
	provider       Provider
	maxResultBytes int
}

// New creates a gateway. maxResultBytes <= 0 selects the default.
func New(p Provider, maxResultBytes int) *Gateway {
	if maxResultBytes <= 0 {
		maxResultBytes = DefaultMaxResultBytes
	}
	return &Gateway{provider: p, maxResultBytes: maxResultBytes}
}

// Provider returns the underlying provider.
func (g *Gateway) Provider() Provider {
	return g.provider
}

// Converse runs up to maxTurns round trips offering the given tool kinds.
// Transport errors are returned; running out of turns is not an error.
func (g *Gateway) Converse(ctx context.Context, conv Conversation, kinds []ToolKind, d Dispatch, model string, maxTurns int) (*Outcome, error) {
	return g.converse(ctx, logging.Get(logging.CategoryGateway), conv, kinds, d, model, maxTurns)
}

func (g *Gateway) converse(ctx context.Context, log *logging.Logger, conv Conversation, kinds []ToolKind, d Dispatch, model string, maxTurns int) (*Outcome, error) {
	if maxTurns <= 0 {
		maxTurns = 1
	}
	allowed := make(map[ToolKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	messages := append([]Message(nil), conv.Messages...)
	defs := Definitions(kinds)
	out := &Outcome{}
	var text strings.Builder

	for turn := 0; turn < maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out.Turns = turn + 1

		log.Debug("turn %d: provider=%s model=%s messages=%d", turn+1, g.provider.Name(), model, len(messages))
		reply, err := g.provider.Send(ctx, Request{
			Model:    model,
			System:   conv.System,
			Messages: messages,
			Tools:    defs,
		})
		if err != nil {
			return nil, fmt.Errorf("%s turn %d: %w", g.provider.Name(), turn+1, err)
		}
		out.Usage.Add(reply.Usage)
		if reply.Text != "" {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(reply.Text)
		}

		if len(reply.ToolCalls) == 0 {
			out.Text = text.String()
			return out, nil
		}
		if len(reply.ToolCalls) > 1 {
			log.Warn("model requested %d tool calls in one turn; honoring only %s", len(reply.ToolCalls), reply.ToolCalls[0].Name)
		}

		call := reply.ToolCalls[0]
		messages = append(messages, Message{Role: RoleAssistant, Text: reply.Text, ToolCall: &call})

		result := ToolResult{CallID: call.ID, Name: call.Name}
		kind, ok := ParseToolKind(call.Name)
		switch {
		case !ok || !allowed[kind]:
			result.Content = fmt.Sprintf("unknown tool %q", call.Name)
			result.IsError = true
			log.Warn("model called unavailable tool %q", call.Name)
		default:
			value, err := d.invoke(ctx, kind, call.Input)
			if err != nil {
				result.Content = "error: " + err.Error()
				result.IsError = true
			} else {
				result.Content = g.render(value)
			}
			out.Calls = append(out.Calls, kind)
			log.Debug("tool %s handled (%d result bytes)", kind.Name(), len(result.Content))
		}
		messages = append(messages, Message{Role: RoleUser, ToolResult: &result})

		if d.StopOnCall && ok && allowed[kind] && !result.IsError {
			out.Text = text.String()
			return out, nil
		}
	}

	out.Text = text.String()
	out.Exhausted = true
	log.Warn("turn budget of %d exhausted; result is likely incomplete", maxTurns)
	return out, nil
}

// render serializes a handler result and truncates it to the byte budget.
func (g *Gateway) render(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		s = "ok"
	case string:
		s = val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprintf("%v", val)
		} else {
			s = string(data)
		}
	}
	return Truncate(s, g.maxResultBytes)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
