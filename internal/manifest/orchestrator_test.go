package manifest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"codesplice/internal/history"
	"codesplice/internal/splice"
)

type fakeGen struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeGen) GenerateFile(_ context.Context, system, user string) (splice.Generation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, user)
	f.mu.Unlock()

	switch {
	case strings.Contains(user, "FAIL"):
		return splice.Generation{}, errors.New("transport down")
	case strings.Contains(user, "REFUSE"):
		return splice.Generation{ErrorMessage: "cannot do that"}, nil
	}
	first, _, _ := strings.Cut(user, "\n")
	return splice.Generation{Code: "// " + first + "\n\n"}, nil
}

func (f *fakeGen) ProviderName() string { return "fake" }
func (f *fakeGen) Model() string        { return "fake-1" }

func (f *fakeGen) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memRecorder struct {
	mu   sync.Mutex
	runs []history.Run
}

func (r *memRecorder) Record(_ context.Context, run history.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

type workspace struct {
	dir  string
	m    *Manifest
	gen  *fakeGen
	rec  *memRecorder
	orch *Orchestrator
}

func newWorkspace(t *testing.T, manifestJSON string) *workspace {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "build.json")
	writeFile(t, path, manifestJSON)
	m, err := Load(path)
	require.NoError(t, err)

	ws := &workspace{dir: dir, m: m, gen: &fakeGen{}, rec: &memRecorder{}}
	ws.orch = NewOrchestrator(m, ws.gen, Options{
		Version:  "0.4.0",
		Recorder: ws.rec,
		Now:      func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	return ws
}

func (ws *workspace) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(ws.dir, rel))
	require.NoError(t, err)
	return string(data)
}

const twoTargets = `{
	"system_prompts": [{"file": "system.txt"}],
	"targets": [
		{"name": "stack", "file": "out/stack.go", "prompts": [{"file": "stack.txt"}]},
		{"name": "queue", "file": "out/queue.go", "prompts": [{"text": "A FIFO queue."}]}
	]
}`

func seed(t *testing.T, ws *workspace) {
	writeFile(t, filepath.Join(ws.dir, "system.txt"), "You write Go.")
	writeFile(t, filepath.Join(ws.dir, "stack.txt"), "A stack of ints.")
}

func TestBuild_WritesCodeAndFooter(t *testing.T) {
	ws := newWorkspace(t, twoTargets)
	seed(t, ws)

	res, err := ws.orch.Build(context.Background(), &ws.m.Targets[0], false)
	require.NoError(t, err)
	assert.Equal(t, StatusBuilt, res.Status)

	want := "// A stack of ints.\n\n" +
		"/*\n" +
		"@splice-build 0.4.0 fake-fake-1 2026-01-02T03:04:05Z\n" +
		"You write Go.\n" +
		"@splice-user\n" +
		"A stack of ints.\n" +
		"@splice-end\n" +
		"*/\n"
	assert.Equal(t, want, ws.read(t, "out/stack.go"))

	require.Len(t, ws.rec.runs, 1)
	assert.Equal(t, history.StatusBuilt, ws.rec.runs[0].Status)
	assert.Equal(t, "stack", ws.rec.runs[0].Target)
	assert.Equal(t, history.ModeManifest, ws.rec.runs[0].Mode)
}

func TestBuildChanged_IsIdempotent(t *testing.T) {
	ws := newWorkspace(t, twoTargets)
	seed(t, ws)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, ws.orch.Run(ctx, CmdBuildChanged, []string{"all"}, &out))
	assert.Equal(t, 2, ws.gen.count())
	first := ws.read(t, "out/stack.go")

	out.Reset()
	require.NoError(t, ws.orch.Run(ctx, CmdBuildChanged, []string{"all"}, &out))
	assert.Equal(t, 2, ws.gen.count(), "unchanged prompts must not reach the model")
	assert.Contains(t, out.String(), "stack: skipped")
	assert.Equal(t, first, ws.read(t, "out/stack.go"))

	writeFile(t, filepath.Join(ws.dir, "stack.txt"), "A stack of strings.")
	require.NoError(t, ws.orch.Run(ctx, CmdBuildChanged, []string{"all"}, &out))
	assert.Equal(t, 3, ws.gen.count(), "only the changed target is rebuilt")
	assert.True(t, strings.HasPrefix(ws.read(t, "out/stack.go"), "// A stack of strings."))
}

func TestBuildChanged_StampDoesNotMatter(t *testing.T) {
	ws := newWorkspace(t, twoTargets)
	seed(t, ws)
	ctx := context.Background()

	_, err := ws.orch.Build(ctx, &ws.m.Targets[1], false)
	require.NoError(t, err)

	ws.orch.opts.Now = func() time.Time { return time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC) }
	res, err := ws.orch.Build(ctx, &ws.m.Targets[1], true)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, 1, ws.gen.count())
}

func TestDiff(t *testing.T) {
	ws := newWorkspace(t, twoTargets)
	seed(t, ws)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, ws.orch.Diff(ctx, &ws.m.Targets[0], &out))
	assert.Contains(t, out.String(), "does not exist")

	_, err := ws.orch.Build(ctx, &ws.m.Targets[0], false)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, ws.orch.Diff(ctx, &ws.m.Targets[0], &out))
	assert.Equal(t, "stack: unchanged\n", out.String())

	writeFile(t, filepath.Join(ws.dir, "stack.txt"), "A stack of strings.")
	out.Reset()
	require.NoError(t, ws.orch.Diff(ctx, &ws.m.Targets[0], &out))
	assert.Contains(t, out.String(), "stack:\n")
	assert.Equal(t, 1, ws.gen.count(), "diff never calls the model")

	// Only the edited word is marked; both versions read back intact.
	marks := regexp.MustCompile(`\[-(.*?)-\]|\{\+(.*?)\+\}`)
	found := marks.FindAllStringSubmatch(out.String(), -1)
	require.NotEmpty(t, found)
	for _, m := range found {
		if m[1] != "" {
			assert.Contains(t, "ints", m[1])
		} else {
			assert.Contains(t, "strings", m[2])
		}
	}
	plain := marks.ReplaceAllString(out.String(), "")
	assert.Contains(t, plain, "You write Go.")
	assert.Contains(t, plain, "A stack of ")
	assert.Contains(t, marks.ReplaceAllString(out.String(), "$1"), "A stack of ints.")
	assert.Contains(t, marks.ReplaceAllString(out.String(), "$2"), "A stack of strings.")

	writeFile(t, filepath.Join(ws.dir, "out", "stack.go"), "package out\n")
	out.Reset()
	require.NoError(t, ws.orch.Diff(ctx, &ws.m.Targets[0], &out))
	assert.Contains(t, out.String(), "no prompt spec")
}

func TestBuild_ReportedErrorRetriesNextTime(t *testing.T) {
	ws := newWorkspace(t, `{"targets":[{"name":"x","file":"x.sh","prompts":[{"text":"REFUSE this"}]}]}`)
	ctx := context.Background()

	res, err := ws.orch.Build(ctx, &ws.m.Targets[0], true)
	var reported *ReportedError
	require.ErrorAs(t, err, &reported)
	assert.Equal(t, "cannot do that", reported.Message)
	assert.Equal(t, StatusReported, res.Status)
	assert.Equal(t, "# splice generation error: cannot do that\n", ws.read(t, "x.sh"))

	_, _ = ws.orch.Build(ctx, &ws.m.Targets[0], true)
	assert.Equal(t, 2, ws.gen.count(), "an annotation has no spec, so it is retried")
}

func TestBuildParallel_FailureIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)

	ws := newWorkspace(t, `{"targets":[
		{"name":"a","file":"a.go","prompts":[{"text":"alpha"}]},
		{"name":"b","file":"b.go","prompts":[{"text":"FAIL beta"}]},
		{"name":"c","file":"c.go","prompts":[{"text":"gamma"}]}
	]}`)
	targets, _ := ws.m.Select([]string{"all"})

	results, err := ws.orch.BuildParallel(context.Background(), targets, false).Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target b")
	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])

	assert.Equal(t, "// alpha", strings.SplitN(ws.read(t, "a.go"), "\n", 2)[0])
	assert.Equal(t, "// gamma", strings.SplitN(ws.read(t, "c.go"), "\n", 2)[0])
	_, statErr := os.Stat(filepath.Join(ws.dir, "b.go"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuildParallel_Limit(t *testing.T) {
	defer goleak.VerifyNone(t)

	ws := newWorkspace(t, `{"targets":[
		{"name":"a","file":"a.go","prompts":[{"text":"a"}]},
		{"name":"b","file":"b.go","prompts":[{"text":"b"}]}
	]}`)
	ws.orch.opts.Parallelism = 1
	targets, _ := ws.m.Select([]string{"all"})
	_, err := ws.orch.BuildParallel(context.Background(), targets, false).Wait()
	require.NoError(t, err)
	assert.Equal(t, 2, ws.gen.count())
}

func TestRun_Selection(t *testing.T) {
	ws := newWorkspace(t, twoTargets)
	seed(t, ws)
	ctx := context.Background()
	var out bytes.Buffer

	err := ws.orch.Run(ctx, CmdBuild, []string{"queue", "nope"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown target "nope"`)
	assert.Equal(t, 1, ws.gen.count())
	assert.Contains(t, out.String(), "queue: built")

	err = ws.orch.Run(ctx, CmdBuild, []string{"nope"}, &out)
	assert.Error(t, err)
	assert.Equal(t, 1, ws.gen.count())

	err = ws.orch.Run(ctx, Command("explode"), []string{"all"}, &out)
	assert.Error(t, err)
}

func TestRun_BuildAlwaysRegenerates(t *testing.T) {
	ws := newWorkspace(t, twoTargets)
	seed(t, ws)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, ws.orch.Run(ctx, CmdBuild, []string{"stack"}, &out))
	require.NoError(t, ws.orch.Run(ctx, CmdBuild, []string{"stack"}, &out))
	require.NoError(t, ws.orch.Run(ctx, CmdBuildParallel, []string{"stack"}, &out))
	assert.Equal(t, 3, ws.gen.count())
}

func TestParseCommand(t *testing.T) {
	for _, c := range Commands {
		got, ok := ParseCommand(string(c))
		assert.True(t, ok)
		assert.Equal(t, c, got)
	}
	_, ok := ParseCommand("deploy")
	assert.False(t, ok)
}
