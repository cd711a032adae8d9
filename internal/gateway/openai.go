package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codesplice/internal/logging"
)

// OpenAIProvider talks to an OpenAI-compatible chat/completions endpoint.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

type openAIFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(apiKey, baseURL string, timeout time.Duration) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
		backoff:    time.Second,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// mapToolDefinitions converts generic tool definitions to OpenAI format.
func mapToolDefinitions(tools []ToolDefinition) []openAITool {
	result := make([]openAITool, len(tools))
	for i, t := range tools {
		result[i] = openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return result
}

// mapToolCalls converts OpenAI tool calls to generic ones.
func mapToolCalls(calls []openAIToolCall) ([]ToolCall, error) {
	result := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		if c.Type != "" && c.Type != "function" {
			continue
		}
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(c.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments for tool %s: %w", c.Function.Name, err)
		}
		result = append(result, ToolCall{ID: c.ID, Name: c.Function.Name, Input: args})
	}
	return result, nil
}

func toOpenAIMessages(system string, msgs []Message) ([]openAIMessage, error) {
	out := make([]openAIMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openAIMessage{Role: "system", Content: system})
	}
	for _, m := range msgs {
		switch {
		case m.ToolCall != nil:
			args, err := json.Marshal(m.ToolCall.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool arguments: %w", err)
			}
			call := openAIToolCall{ID: m.ToolCall.ID, Type: "function"}
			call.Function.Name = m.ToolCall.Name
			call.Function.Arguments = string(args)
			out = append(out, openAIMessage{Role: "assistant", Content: m.Text, ToolCalls: []openAIToolCall{call}})
		case m.ToolResult != nil:
			out = append(out, openAIMessage{Role: "tool", Content: m.ToolResult.Content, ToolCallID: m.ToolResult.CallID})
		default:
			out = append(out, openAIMessage{Role: string(m.Role), Content: m.Text})
		}
	}
	return out, nil
}

// Send performs one chat/completions request with function tools.
func (p *OpenAIProvider) Send(ctx context.Context, req Request) (*Reply, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	msgs, err := toOpenAIMessages(req.System, req.Messages)
	if err != nil {
		return nil, err
	}
	reqBody := openAIRequest{
		Model:       req.Model,
		Messages:    msgs,
		Tools:       mapToolDefinitions(req.Tools),
		Temperature: 0.1,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.backoff * time.Duration(1<<uint(attempt-1))):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("rate limit exceeded (429): %s", strings.TrimSpace(string(body)))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		var openAIResp openAIResponse
		if err := json.Unmarshal(body, &openAIResp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if openAIResp.Error != nil {
			return nil, fmt.Errorf("API error: %s", openAIResp.Error.Message)
		}
		if len(openAIResp.Choices) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}

		choice := openAIResp.Choices[0]
		calls, err := mapToolCalls(choice.Message.ToolCalls)
		if err != nil {
			return nil, err
		}
		reply := &Reply{
			Text:       strings.TrimSpace(choice.Message.Content),
			ToolCalls:  calls,
			StopReason: choice.FinishReason,
			Usage:      Usage{InputTokens: openAIResp.Usage.PromptTokens, OutputTokens: openAIResp.Usage.CompletionTokens},
		}
		logging.GatewayDebug("[OpenAI] text_len=%d tool_calls=%d finish=%s", len(reply.Text), len(reply.ToolCalls), reply.StopReason)
		return reply, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
