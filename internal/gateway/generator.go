package gateway

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"codesplice/internal/logging"
	"codesplice/internal/splice"
	"codesplice/internal/usage"
)

const toolInstruction = "Answer by calling exactly one of the provided tools. " +
	"Put only source code in the code argument, without markdown fences. " +
	"If the request cannot be fulfilled, call report_error with the reason."

// CodeGenerator turns prompts into code through a Gateway. It serves both
// directive mode (one function at a time) and manifest mode (whole files).
type CodeGenerator struct {
	gw       *Gateway
	model    string
	maxTurns int
}

// NewCodeGenerator creates a generator using model for every request.
func NewCodeGenerator(gw *Gateway, model string, maxTurns int) *CodeGenerator {
	return &CodeGenerator{gw: gw, model: model, maxTurns: maxTurns}
}

// Model returns the model name sent to the provider.
func (g *CodeGenerator) Model() string {
	return g.model
}

// ProviderName returns the provider's name.
func (g *CodeGenerator) ProviderName() string {
	return g.gw.Provider().Name()
}

// Generate produces one function body for the region writer.
func (g *CodeGenerator) Generate(ctx context.Context, req splice.GenerateRequest) (splice.Generation, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Write the function `%s`", req.Func)
	if req.Path != "" {
		fmt.Fprintf(&user, " for the file %s", filepath.Base(req.Path))
	}
	user.WriteString(". Return only that function.\n\n")
	user.WriteString(req.Prompt)

	return g.run(usage.WithTarget(ctx, req.Func), req.SystemPrompt, user.String(), []ToolKind{ToolCreateFunction, ToolReportError})
}

// GenerateFile produces a complete file body from an assembled system and
// user prompt.
func (g *CodeGenerator) GenerateFile(ctx context.Context, system, user string) (splice.Generation, error) {
	return g.run(ctx, system, user, []ToolKind{ToolCreateClass, ToolCreateFunction, ToolReportError})
}

func (g *CodeGenerator) run(ctx context.Context, system, user string, kinds []ToolKind) (splice.Generation, error) {
	reqID := uuid.NewString()
	log := logging.WithRequestID(logging.CategoryGateway, reqID)
	timer := logging.StartTimer(logging.CategoryGateway, "generation "+reqID)
	defer timer.Stop()

	if strings.TrimSpace(system) == "" {
		system = toolInstruction
	} else {
		system = system + "\n\n" + toolInstruction
	}

	var (
		gen      splice.Generation
		captured bool
	)
	accept := func(_ context.Context, code string) (any, error) {
		gen.Code = code
		captured = true
		return "accepted", nil
	}
	d := Dispatch{
		CreateFunction: accept,
		CreateClass:    accept,
		ReportError: func(_ context.Context, msg string) (any, error) {
			gen.ErrorMessage = msg
			captured = true
			return "noted", nil
		},
		StopOnCall: true,
	}

	log.Info("generating with %s/%s (prompt %d bytes)", g.ProviderName(), g.model, len(user))
	out, err := g.gw.converse(ctx, log, Conversation{
		System:   system,
		Messages: []Message{{Role: RoleUser, Text: user}},
	}, kinds, d, g.model, g.maxTurns)
	if err != nil {
		log.Error("generation failed: %v", err)
		return splice.Generation{}, err
	}
	if t := usage.FromContext(ctx); t != nil {
		t.Track(ctx, g.ProviderName(), g.model, out.Usage.InputTokens, out.Usage.OutputTokens)
	}
	log.Debug("used %d input and %d output tokens", out.Usage.InputTokens, out.Usage.OutputTokens)

	if !captured {
		gen.Code = ExtractCode(out.Text)
		if out.Exhausted {
			log.Warn("no tool result after %d turns; using accumulated text", out.Turns)
		}
		if strings.TrimSpace(gen.Code) == "" {
			return splice.Generation{}, fmt.Errorf("model returned no code after %d turns", out.Turns)
		}
	}
	return gen, nil
}

var fenceRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+\\.-]*)\\s*\\n(.*?)\\n```")

// ExtractCode returns the body of the first fenced code block in text, or
// the trimmed text when it has none.
func ExtractCode(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return m[2]
	}
	return strings.TrimSpace(text)
}
