package gateway

import (
	"context"
	"fmt"
)

// ToolKind enumerates the tools a model may call during generation.
type ToolKind int

const (
	ToolCreateFunction ToolKind = iota
	ToolCreateClass
	ToolReportError
)

// AllToolKinds lists every kind in declaration order.
var AllToolKinds = []ToolKind{ToolCreateFunction, ToolCreateClass, ToolReportError}

// Name returns the wire name of the tool.
func (k ToolKind) Name() string {
	switch k {
	case ToolCreateFunction:
		return "create_function"
	case ToolCreateClass:
		return "create_class"
	case ToolReportError:
		return "report_error"
	}
	return fmt.Sprintf("tool(%d)", int(k))
}

func (k ToolKind) String() string {
	return k.Name()
}

// ParseToolKind maps a wire name back to its kind.
func ParseToolKind(name string) (ToolKind, bool) {
	for _, k := range AllToolKinds {
		if k.Name() == name {
			return k, true
		}
	}
	return 0, false
}

// argField is the single required string argument of each tool.
func (k ToolKind) argField() string {
	if k == ToolReportError {
		return "message"
	}
	return "code"
}

// ToolDefinition is a provider-neutral tool schema.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Definition returns the JSON schema offered to the model for this kind.
func (k ToolKind) Definition() ToolDefinition {
	var desc, fieldDesc string
	switch k {
	case ToolCreateFunction:
		desc = "Submit the complete source of the requested function."
		fieldDesc = "Full source code of the function, ready to paste into the file"
	case ToolCreateClass:
		desc = "Submit the complete source of the requested file, class or module."
		fieldDesc = "Full source code, ready to be written as the file body"
	case ToolReportError:
		desc = "Report that the request cannot be fulfilled and explain why."
		fieldDesc = "Human-readable explanation"
	}
	field := k.argField()
	return ToolDefinition{
		Name:        k.Name(),
		Description: desc,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				field: map[string]interface{}{
					"type":        "string",
					"description": fieldDesc,
				},
			},
			"required": []string{field},
		},
	}
}

// Definitions returns the schemas for kinds.
func Definitions(kinds []ToolKind) []ToolDefinition {
	defs := make([]ToolDefinition, len(kinds))
	for i, k := range kinds {
		defs[i] = k.Definition()
	}
	return defs
}

// Handler receives a tool's single string argument. Its result is echoed
// back to the model: strings verbatim, anything else as JSON.
type Handler func(ctx context.Context, arg string) (any, error)

// Dispatch holds one typed handler per tool kind.
type Dispatch struct {
	CreateFunction Handler
	CreateClass    Handler
	ReportError    Handler
	// StopOnCall ends the conversation after the first honored tool call.
	StopOnCall bool
}

func (d Dispatch) handler(k ToolKind) Handler {
	switch k {
	case ToolCreateFunction:
		return d.CreateFunction
	case ToolCreateClass:
		return d.CreateClass
	case ToolReportError:
		return d.ReportError
	}
	return nil
}

// invoke validates the arguments for kind and runs its handler.
func (d Dispatch) invoke(ctx context.Context, k ToolKind, input map[string]interface{}) (any, error) {
	h := d.handler(k)
	if h == nil {
		return nil, fmt.Errorf("no handler for tool %s", k.Name())
	}
	raw, ok := input[k.argField()]
	if !ok {
		return nil, fmt.Errorf("tool %s: missing required argument %q", k.Name(), k.argField())
	}
	arg, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("tool %s: argument %q must be a string", k.Name(), k.argField())
	}
	return h(ctx, arg)
}
