package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"codesplice/internal/diff"
	"codesplice/internal/fileio"
	"codesplice/internal/filetype"
	"codesplice/internal/history"
	"codesplice/internal/logging"
	"codesplice/internal/splice"
	"codesplice/internal/usage"
)

// FileGenerator produces a whole file from a system and user prompt.
type FileGenerator interface {
	GenerateFile(ctx context.Context, system, user string) (splice.Generation, error)
	ProviderName() string
	Model() string
}

// Recorder receives one entry per build.
type Recorder interface {
	Record(ctx context.Context, r history.Run) error
}

// Linter reports problems in generated code.
type Linter interface {
	Lint(ctx context.Context, path, src string) ([]string, error)
}

// Command is a manifest-mode operation.
type Command string

const (
	CmdBuild         Command = "build"
	CmdBuildParallel Command = "build-parallel"
	CmdBuildChanged  Command = "build-changed"
	CmdDiff          Command = "diff"
)

// Commands lists every command in help order.
var Commands = []Command{CmdBuild, CmdBuildParallel, CmdBuildChanged, CmdDiff}

// ParseCommand maps a command word to its Command.
func ParseCommand(s string) (Command, bool) {
	for _, c := range Commands {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Options configures an Orchestrator. Every field is optional.
type Options struct {
	// Version is written into every prompt spec.
	Version string
	// Parallelism caps concurrent builds in BuildParallel (0 = unbounded).
	Parallelism int
	Recorder    Recorder
	Linter      Linter
	Renderer    *diff.Renderer
	// Now is the clock used for build stamps.
	Now func() time.Time
}

// Orchestrator runs manifest commands.
type Orchestrator struct {
	m    *Manifest
	gen  FileGenerator
	opts Options
}

// NewOrchestrator creates an orchestrator for m.
func NewOrchestrator(m *Manifest, gen FileGenerator, opts Options) *Orchestrator {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Renderer == nil {
		opts.Renderer = diff.NewRenderer(false)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{m: m, gen: gen, opts: opts}
}

// Manifest returns the manifest being built.
func (o *Orchestrator) Manifest() *Manifest {
	return o.m
}

// BuildStatus is the outcome of one Build.
type BuildStatus string

const (
	StatusBuilt    BuildStatus = "built"
	StatusSkipped  BuildStatus = "skipped"
	StatusReported BuildStatus = "reported"
)

// BuildResult describes one finished target.
type BuildResult struct {
	Target   string
	Path     string
	Status   BuildStatus
	Warnings []string
}

// ReportedError is returned when the model declined to generate a target.
type ReportedError struct {
	Target  string
	Message string
}

func (e *ReportedError) Error() string {
	return fmt.Sprintf("target %s: model reported an error: %s", e.Target, e.Message)
}

// spec assembles the prompt spec a target would be built from now.
func (o *Orchestrator) spec(t *Target) (PromptSpec, error) {
	system, err := o.m.SystemPrompt()
	if err != nil {
		return PromptSpec{}, err
	}
	user, err := o.m.UserPrompt(t)
	if err != nil {
		return PromptSpec{}, err
	}
	return PromptSpec{
		Version:  o.opts.Version,
		Provider: o.gen.ProviderName(),
		Model:    o.gen.Model(),
		Stamp:    o.opts.Now(),
		System:   system,
		User:     user,
	}, nil
}

// Build regenerates one target. With updateOnly, a target whose embedded
// prompt spec matches the current one is skipped without calling the model.
func (o *Orchestrator) Build(ctx context.Context, t *Target, updateOnly bool) (*BuildResult, error) {
	path := o.m.TargetPath(t)
	delims := filetype.ForPath(path)
	res := &BuildResult{Target: t.Name, Path: path}
	started := time.Now()

	spec, err := o.spec(t)
	if err != nil {
		return nil, err
	}

	if updateOnly {
		content, ok, err := fileio.ReadIfExists(path)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", t.Name, err)
		}
		if ok {
			if footer, err := ExtractPromptSpec(content, delims); err == nil && footer.Comparable() == spec.Comparable(delims) {
				logging.Build("%s: prompts unchanged, skipping", t.Name)
				res.Status = StatusSkipped
				o.record(ctx, t, path, history.StatusSkipped, "", time.Since(started))
				return res, nil
			}
		}
	}

	logging.Build("%s: generating %s", t.Name, path)
	gen, err := o.gen.GenerateFile(usage.WithTarget(ctx, t.Name), spec.System, spec.User)
	if err != nil {
		o.record(ctx, t, path, history.StatusFailed, err.Error(), time.Since(started))
		return nil, fmt.Errorf("target %s: %w", t.Name, err)
	}

	if gen.ErrorMessage != "" {
		annotation := delims.Comment(fmt.Sprintf("splice generation error: %s", gen.ErrorMessage)) + "\n"
		if err := fileio.WriteAtomic(path, []byte(annotation)); err != nil {
			return nil, fmt.Errorf("target %s: %w", t.Name, err)
		}
		logging.BuildWarn("%s: model reported an error: %s", t.Name, gen.ErrorMessage)
		res.Status = StatusReported
		o.record(ctx, t, path, history.StatusReported, gen.ErrorMessage, time.Since(started))
		return res, &ReportedError{Target: t.Name, Message: gen.ErrorMessage}
	}

	code := strings.TrimRight(gen.Code, "\n")
	if o.opts.Linter != nil {
		warnings, err := o.opts.Linter.Lint(ctx, path, code)
		if err != nil {
			logging.BuildWarn("%s: syntax check failed: %v", t.Name, err)
		}
		for _, w := range warnings {
			logging.BuildWarn("%s: %s", t.Name, w)
		}
		res.Warnings = warnings
	}

	content := code + "\n\n" + spec.Render(delims)
	if err := fileio.WriteAtomic(path, []byte(content)); err != nil {
		o.record(ctx, t, path, history.StatusFailed, err.Error(), time.Since(started))
		return nil, fmt.Errorf("target %s: %w", t.Name, err)
	}
	res.Status = StatusBuilt
	o.record(ctx, t, path, history.StatusBuilt, "", time.Since(started))
	return res, nil
}

func (o *Orchestrator) record(ctx context.Context, t *Target, path string, status history.Status, detail string, d time.Duration) {
	if o.opts.Recorder == nil {
		return
	}
	err := o.opts.Recorder.Record(ctx, history.Run{
		Mode:     history.ModeManifest,
		Target:   t.Name,
		File:     path,
		Provider: o.gen.ProviderName(),
		Model:    o.gen.Model(),
		Status:   status,
		Detail:   detail,
		Duration: d,
	})
	if err != nil {
		logging.BuildWarn("%s: history not recorded: %v", t.Name, err)
	}
}

// Diff writes a character diff between the embedded and the current prompt
// spec of a target. Missing files and missing footers are reported on w,
// not returned.
func (o *Orchestrator) Diff(ctx context.Context, t *Target, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := o.m.TargetPath(t)
	delims := filetype.ForPath(path)

	spec, err := o.spec(t)
	if err != nil {
		return err
	}

	content, ok, err := fileio.ReadIfExists(path)
	if err != nil {
		return fmt.Errorf("target %s: %w", t.Name, err)
	}
	if !ok {
		logging.BuildWarn("%s: %s does not exist", t.Name, path)
		_, err := fmt.Fprintf(w, "%s: %s does not exist\n", t.Name, path)
		return err
	}
	footer, err := ExtractPromptSpec(content, delims)
	if err != nil {
		logging.BuildWarn("%s: %v", t.Name, err)
		_, err := fmt.Fprintf(w, "%s: no prompt spec in %s\n", t.Name, path)
		return err
	}

	chunks := diff.Chars(footer.Comparable(), spec.Comparable(delims))
	if diff.Unchanged(chunks) {
		_, err := fmt.Fprintf(w, "%s: unchanged\n", t.Name)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s:\n", t.Name); err != nil {
		return err
	}
	return o.opts.Renderer.Chars(w, chunks)
}

// Pending is a batch of builds started by BuildParallel.
type Pending struct {
	g       errgroup.Group
	mu      sync.Mutex
	results []*BuildResult
	errs    []error
}

// Wait blocks until every build finished. Results are in target order;
// failed targets have a nil result. The error joins every failure.
func (p *Pending) Wait() ([]*BuildResult, error) {
	_ = p.g.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results, errors.Join(p.errs...)
}

// BuildParallel starts one build per target and returns immediately. A
// failing target never stops the others.
func (o *Orchestrator) BuildParallel(ctx context.Context, targets []*Target, updateOnly bool) *Pending {
	p := &Pending{results: make([]*BuildResult, len(targets))}
	if o.opts.Parallelism > 0 {
		p.g.SetLimit(o.opts.Parallelism)
	}
	for i, t := range targets {
		p.g.Go(func() error {
			res, err := o.Build(ctx, t, updateOnly)
			p.mu.Lock()
			defer p.mu.Unlock()
			p.results[i] = res
			if err != nil {
				logging.BuildError("%v", err)
				p.errs = append(p.errs, err)
			}
			return nil
		})
	}
	return p
}

// Run executes command over the named targets ("all" selects every
// target). Per-target failures do not stop the batch; they are joined into
// the returned error.
func (o *Orchestrator) Run(ctx context.Context, cmd Command, names []string, w io.Writer) error {
	targets, unknown := o.m.Select(names)
	var errs []error
	for _, n := range unknown {
		logging.BuildWarn("unknown target %q", n)
		errs = append(errs, fmt.Errorf("unknown target %q", n))
	}
	if len(targets) == 0 {
		errs = append(errs, fmt.Errorf("no targets selected"))
		return errors.Join(errs...)
	}

	timer := logging.StartTimer(logging.CategoryBuild, string(cmd))
	defer timer.Stop()

	switch cmd {
	case CmdBuild, CmdBuildChanged:
		updateOnly := cmd == CmdBuildChanged
		for _, t := range targets {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			res, err := o.Build(ctx, t, updateOnly)
			if err != nil {
				logging.BuildError("%v", err)
				errs = append(errs, err)
				continue
			}
			fmt.Fprintf(w, "%s: %s %s\n", res.Target, res.Status, res.Path)
		}
	case CmdBuildParallel:
		results, err := o.BuildParallel(ctx, targets, false).Wait()
		for _, res := range results {
			if res != nil {
				fmt.Fprintf(w, "%s: %s %s\n", res.Target, res.Status, res.Path)
			}
		}
		if err != nil {
			errs = append(errs, err)
		}
	case CmdDiff:
		for _, t := range targets {
			if err := o.Diff(ctx, t, w); err != nil {
				errs = append(errs, err)
			}
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return errors.Join(errs...)
}
