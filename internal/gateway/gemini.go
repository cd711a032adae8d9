package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"codesplice/internal/logging"
)

// GeminiProvider talks to the Gemini API through the genai SDK.
type GeminiProvider struct {
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL string, timeout time.Duration) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiProvider{client: client, timeout: timeout}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// schemaFromDefinition converts a tool's JSON schema into a genai schema.
// Only the object-of-scalars shape used by the generation tools is mapped.
func schemaFromDefinition(schema map[string]interface{}) *genai.Schema {
	out := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		for name, raw := range props {
			prop, _ := raw.(map[string]interface{})
			s := &genai.Schema{Type: genai.TypeString}
			if t, _ := prop["type"].(string); t != "" {
				s.Type = genai.Type(strings.ToUpper(t))
			}
			if d, _ := prop["description"].(string); d != "" {
				s.Description = d
			}
			out.Properties[name] = s
		}
	}
	switch req := schema["required"].(type) {
	case []string:
		out.Required = append(out.Required, req...)
	case []interface{}:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	return out
}

func toGeminiTools(defs []ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(defs))
	for i, d := range defs {
		decls[i] = &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  schemaFromDefinition(d.InputSchema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func toGeminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.ToolCall != nil:
			var parts []*genai.Part
			if m.Text != "" {
				parts = append(parts, &genai.Part{Text: m.Text})
			}
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   m.ToolCall.ID,
				Name: m.ToolCall.Name,
				Args: m.ToolCall.Input,
			}})
			out = append(out, &genai.Content{Role: string(genai.RoleModel), Parts: parts})
		case m.ToolResult != nil:
			key := "output"
			if m.ToolResult.IsError {
				key = "error"
			}
			out = append(out, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolResult.CallID,
					Name:     m.ToolResult.Name,
					Response: map[string]any{key: m.ToolResult.Content},
				},
			}}})
		case m.Role == RoleAssistant:
			out = append(out, genai.NewContentFromText(m.Text, genai.RoleModel))
		default:
			out = append(out, genai.NewContentFromText(m.Text, genai.RoleUser))
		}
	}
	return out
}

func replyFromGemini(resp *genai.GenerateContentResponse) (*Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no completion returned")
	}
	cand := resp.Candidates[0]
	reply := &Reply{StopReason: string(cand.FinishReason)}
	if um := resp.UsageMetadata; um != nil {
		reply.Usage = Usage{InputTokens: int(um.PromptTokenCount), OutputTokens: int(um.CandidatesTokenCount)}
	}
	var text strings.Builder
	for i, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{ID: id, Name: part.FunctionCall.Name, Input: part.FunctionCall.Args})
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	reply.Text = strings.TrimSpace(text.String())
	return reply, nil
}

// Send performs one GenerateContent call with function declarations.
func (p *GeminiProvider) Send(ctx context.Context, req Request) (*Reply, error) {
	if p.timeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
	}

	startTime := time.Now()
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
		Tools:       toGeminiTools(req.Tools),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, toGeminiContents(req.Messages), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	reply, err := replyFromGemini(resp)
	if err != nil {
		return nil, err
	}
	logging.GatewayDebug("[Gemini] completed in %v text_len=%d tool_calls=%d", time.Since(startTime), len(reply.Text), len(reply.ToolCalls))
	return reply, nil
}
