package editor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codesplice/internal/splice"
)

const doc = "package x\n\n/* @ai_func a\nWrite a. */\nold a\n/* @ai_endfunc */\n"

func stubGen(fail map[string]error) splice.Generator {
	return splice.GeneratorFunc(func(_ context.Context, req splice.GenerateRequest) (splice.Generation, error) {
		if err := fail[req.Func]; err != nil {
			return splice.Generation{}, err
		}
		return splice.Generation{Code: "func " + req.Func + "() {}"}, nil
	})
}

func line(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data) + "\n"
}

type rawResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

func serve(t *testing.T, s *Server, input string) []rawResponse {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), strings.NewReader(input), &out))

	var resps []rawResponse
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var r rawResponse
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		resps = append(resps, r)
	}
	return resps
}

func TestGenerate(t *testing.T) {
	s := NewServer(stubGen(nil), "")
	resps := serve(t, s, line(t, map[string]any{
		"id":     1,
		"method": MethodGenerate,
		"params": GenerateParams{Text: doc, Path: "/tmp/x.go", Funcs: []string{"a"}},
	}))
	require.Len(t, resps, 1)
	assert.JSONEq(t, "1", string(resps[0].ID))
	require.Nil(t, resps[0].Error)

	var res GenerateResult
	require.NoError(t, json.Unmarshal(resps[0].Result, &res))
	assert.Equal(t, []string{"a"}, res.Generated)
	assert.Contains(t, res.Text, "func a() {}")
	assert.NotContains(t, res.Text, "old a")
	require.Len(t, res.Diffs, 1)
	assert.Equal(t, "a", res.Diffs[0].Func)

	replayed, err := splice.ApplyDiffs(doc, res.Diffs)
	require.NoError(t, err)
	assert.Equal(t, res.Text, replayed)
}

func TestGenerateReportsFailedFunctions(t *testing.T) {
	s := NewServer(stubGen(map[string]error{"a": errors.New("upstream 503")}), "ai")
	resp := s.Handle(context.Background(), Request{
		Method: MethodGenerate,
		Params: json.RawMessage(line(t, GenerateParams{Text: doc, Path: "x.go", Funcs: []string{"all"}})),
	})
	require.Nil(t, resp.Error)

	res := resp.Result.(GenerateResult)
	assert.Equal(t, doc, res.Text)
	assert.Empty(t, res.Diffs)
	assert.NotNil(t, res.Diffs)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, FuncFailure{Func: "a", Error: "upstream 503"}, res.Failed[0])
}

func TestGenerateStructureError(t *testing.T) {
	s := NewServer(stubGen(nil), "")
	resp := s.Handle(context.Background(), Request{
		Method: MethodGenerate,
		Params: json.RawMessage(line(t, GenerateParams{Text: "x\n/* @ai_endfunc */\n", Funcs: []string{"all"}})),
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeStructure, resp.Error.Code)
	require.NotNil(t, resp.Error.Line)
	assert.Equal(t, 1, *resp.Error.Line)
	assert.Nil(t, resp.Result)
}

func TestGenerateHonorsNamespace(t *testing.T) {
	src := "/* @gpt_func a\np */\nold\n/* @gpt_endfunc */\n"
	s := NewServer(stubGen(nil), "gpt")
	resp := s.Handle(context.Background(), Request{
		Method: MethodGenerate,
		Params: json.RawMessage(line(t, GenerateParams{Text: src, Funcs: []string{"a"}})),
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, []string{"a"}, resp.Result.(GenerateResult).Generated)
}

func TestLocate(t *testing.T) {
	s := NewServer(stubGen(nil), "")
	resps := serve(t, s,
		line(t, map[string]any{"id": "one", "method": MethodLocate, "params": LocateParams{Text: doc, Func: "a"}})+
			line(t, map[string]any{"id": "two", "method": MethodLocate, "params": LocateParams{Text: doc, Func: "zz"}}))
	require.Len(t, resps, 2)

	assert.JSONEq(t, `"one"`, string(resps[0].ID))
	assert.JSONEq(t, `{"range":{"start_line":4,"end_line":5}}`, string(resps[0].Result))
	assert.JSONEq(t, `{"range":null}`, string(resps[1].Result))
}

func TestProtocolErrors(t *testing.T) {
	s := NewServer(stubGen(nil), "")
	resps := serve(t, s, "not json\n\n"+
		line(t, map[string]any{"id": 2, "method": "frobnicate"})+
		line(t, map[string]any{"id": 3, "method": MethodLocate})+
		line(t, map[string]any{"id": 4, "method": MethodLocate, "params": "text"}))
	require.Len(t, resps, 4)

	assert.Equal(t, CodeInvalidRequest, resps[0].Error.Code)
	assert.Equal(t, CodeUnknownMethod, resps[1].Error.Code)
	assert.Equal(t, CodeInvalidRequest, resps[2].Error.Code)
	assert.Equal(t, CodeInvalidRequest, resps[3].Error.Code)
}

func TestShutdownStopsServing(t *testing.T) {
	s := NewServer(stubGen(nil), "")
	resps := serve(t, s,
		line(t, map[string]any{"id": 1, "method": MethodShutdown})+
			line(t, map[string]any{"id": 2, "method": MethodLocate, "params": LocateParams{Text: doc, Func: "a"}}))
	require.Len(t, resps, 1)
	assert.JSONEq(t, `{"ok":true}`, string(resps[0].Result))
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewServer(stubGen(nil), "")
	var out bytes.Buffer
	err := s.Serve(ctx, strings.NewReader(line(t, map[string]any{"method": MethodShutdown})), &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, out.Len())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, CodeSyntax, classify(&splice.SyntaxError{Line: 3, Msg: "func without a name"}).Code)
	assert.Equal(t, CodeInclude, classify(&splice.IncludeError{Line: 0, Path: "p", Err: errors.New("nope")}).Code)
	assert.Equal(t, CodeCanceled, classify(context.Canceled).Code)
	assert.Equal(t, CodeInternal, classify(errors.New("boom")).Code)
}
