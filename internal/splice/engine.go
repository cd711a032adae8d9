package splice

import (
	"context"
	"path/filepath"
	"sort"

	"codesplice/internal/logging"
)

// Request describes one directive-mode pass over a document.
type Request struct {
	// Source is the document text, saved or not.
	Source string
	// Path is the document's path; its directory resolves includes.
	Path      string
	Namespace string
	Targets   []string
}

// Rewrite parses a document and regenerates its selected functions. It is
// the single entry point shared by the batch CLI and the editor protocol.
// Structural errors are returned before gen is ever called.
func Rewrite(ctx context.Context, req Request, gen Generator) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryParse, "rewrite "+req.Path)
	defer timer.Stop()

	dir := "."
	if req.Path != "" {
		dir = filepath.Dir(req.Path)
	}
	targets := NewTargetSet(req.Targets...)
	plan, err := Parse(req.Source, Options{
		Namespace: req.Namespace,
		Targets:   targets,
		Dir:       dir,
	})
	if err != nil {
		logging.ParseWarn("parse %s: %v", req.Path, err)
		return nil, err
	}
	if !targets.All() {
		for _, name := range missingTargets(plan, targets) {
			logging.ParseWarn("%s: no function %q to generate", req.Path, name)
		}
	}
	logging.ParseDebug("plan for %s:\n%s", req.Path, plan.Describe())
	return Write(ctx, plan, gen, WriteOptions{Path: req.Path})
}

// missingTargets returns the explicitly selected names that produced no
// region, sorted.
func missingTargets(plan *Plan, targets TargetSet) []string {
	have := make(map[string]bool)
	for _, r := range plan.Regions() {
		have[r.Func] = true
	}
	var missing []string
	for _, n := range targets.Names() {
		if !have[n] {
			missing = append(missing, n)
		}
	}
	sort.Strings(missing)
	return missing
}
