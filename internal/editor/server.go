// Package editor serves directive-mode generation to editor plugins over a
// JSON-lines protocol: one request object per input line, one response
// object per output line. Requests operate on the live buffer text, so
// unsaved edits are honored.
package editor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"codesplice/internal/logging"
	"codesplice/internal/splice"
)

// Methods understood by the server.
const (
	MethodGenerate = "generate"
	MethodLocate   = "locate"
	MethodShutdown = "shutdown"
)

// Error codes returned in Response.Error.
const (
	CodeInvalidRequest = "invalid_request"
	CodeUnknownMethod  = "unknown_method"
	CodeStructure      = "structure"
	CodeSyntax         = "syntax"
	CodeInclude        = "include"
	CodeCanceled       = "canceled"
	CodeInternal       = "internal"
)

// maxLine bounds one request line; documents travel inline.
const maxLine = 64 << 20

// Request is one protocol message from the editor.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers one Request.
type Response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is a protocol-level failure. Line is 0-based and only set for
// parse errors.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    *int   `json:"line,omitempty"`
}

// GenerateParams asks for a directive-mode pass over a buffer.
type GenerateParams struct {
	Text      string   `json:"text"`
	Path      string   `json:"path"`
	Funcs     []string `json:"funcs"`
	Namespace string   `json:"namespace,omitempty"`
}

// FuncFailure is a function whose generation failed; its old text was kept.
type FuncFailure struct {
	Func  string `json:"func"`
	Error string `json:"error"`
}

// GenerateResult carries the replacement diffs and the full new text.
type GenerateResult struct {
	Text      string                   `json:"text"`
	Diffs     []splice.ReplacementDiff `json:"diffs"`
	Generated []string                 `json:"generated"`
	Failed    []FuncFailure            `json:"failed,omitempty"`
}

// LocateParams asks where a function's region lies in a buffer.
type LocateParams struct {
	Text      string `json:"text"`
	Func      string `json:"func"`
	Namespace string `json:"namespace,omitempty"`
}

// LocateResult holds the range, or null when the function is absent.
type LocateResult struct {
	Range *splice.Range `json:"range"`
}

// Server handles requests one at a time.
type Server struct {
	Gen       splice.Generator
	Namespace string

	mu  sync.Mutex
	enc *json.Encoder
}

// NewServer creates a server generating with gen.
func NewServer(gen splice.Generator, namespace string) *Server {
	if namespace == "" {
		namespace = splice.DefaultNamespace
	}
	return &Server{Gen: gen, Namespace: namespace}
}

// Serve reads requests from r until EOF, a shutdown request, or ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.mu.Lock()
	s.enc = json.NewEncoder(w)
	s.mu.Unlock()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	logging.Editor("serving editor protocol")
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			logging.EditorError("bad request: %v", err)
			if err := s.write(Response{Error: &Error{Code: CodeInvalidRequest, Message: err.Error()}}); err != nil {
				return err
			}
			continue
		}

		resp := s.Handle(ctx, req)
		if err := s.write(resp); err != nil {
			return err
		}
		if req.Method == MethodShutdown {
			logging.Editor("shutdown requested")
			return nil
		}
	}
	return scanner.Err()
}

func (s *Server) write(resp Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// Handle answers a single request.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID}
	logging.EditorDebug("request %s", req.Method)

	switch req.Method {
	case MethodGenerate:
		var p GenerateParams
		if err := decodeParams(req.Params, &p); err != nil {
			resp.Error = err
			return resp
		}
		ns := p.Namespace
		if ns == "" {
			ns = s.Namespace
		}
		res, err := splice.Rewrite(ctx, splice.Request{Source: p.Text, Path: p.Path, Namespace: ns, Targets: p.Funcs}, s.Gen)
		if err != nil {
			resp.Error = classify(err)
			return resp
		}
		out := GenerateResult{Text: res.Text, Diffs: res.Diffs, Generated: res.Generated}
		if out.Diffs == nil {
			out.Diffs = []splice.ReplacementDiff{}
		}
		if out.Generated == nil {
			out.Generated = []string{}
		}
		for _, f := range res.Failed {
			out.Failed = append(out.Failed, FuncFailure{Func: f.Func, Error: f.Err.Error()})
		}
		resp.Result = out

	case MethodLocate:
		var p LocateParams
		if err := decodeParams(req.Params, &p); err != nil {
			resp.Error = err
			return resp
		}
		ns := p.Namespace
		if ns == "" {
			ns = s.Namespace
		}
		resp.Result = LocateResult{Range: splice.Locate(p.Text, p.Func, ns)}

	case MethodShutdown:
		resp.Result = map[string]bool{"ok": true}

	default:
		resp.Error = &Error{Code: CodeUnknownMethod, Message: fmt.Sprintf("unknown method %q", req.Method)}
	}
	return resp
}

func decodeParams(raw json.RawMessage, v any) *Error {
	if len(raw) == 0 {
		return &Error{Code: CodeInvalidRequest, Message: "missing params"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &Error{Code: CodeInvalidRequest, Message: err.Error()}
	}
	return nil
}

// classify maps a Rewrite error to a protocol error.
func classify(err error) *Error {
	e := &Error{Code: CodeInternal, Message: err.Error()}
	var (
		structErr  *splice.StructureError
		syntaxErr  *splice.SyntaxError
		includeErr *splice.IncludeError
	)
	switch {
	case errors.As(err, &structErr):
		e.Code = CodeStructure
		e.Line = &structErr.Line
	case errors.As(err, &syntaxErr):
		e.Code = CodeSyntax
		e.Line = &syntaxErr.Line
	case errors.As(err, &includeErr):
		e.Code = CodeInclude
		e.Line = &includeErr.Line
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.Code = CodeCanceled
	}
	return e
}
