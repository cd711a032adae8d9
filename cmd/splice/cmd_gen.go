package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codesplice/internal/diff"
	"codesplice/internal/fileio"
	"codesplice/internal/history"
	"codesplice/internal/splice"
	"codesplice/internal/syntaxcheck"
)

var (
	genWrite bool
	genDiff  bool
)

var genCmd = &cobra.Command{
	Use:   "gen <file> [func|all]...",
	Short: "Regenerate @ai_func regions in a source file",
	Long: `Runs directive mode over one source file. Every selected function region
(all of them when none are named) is regenerated from its prompt; the rest of
the file is kept byte for byte.

The new text is printed to stdout unless --write or --diff is given. A
structural error in the directives exits non-zero without writing anything.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGen,
}

var locateCmd = &cobra.Command{
	Use:   "locate <file> <func>",
	Short: "Print the line range of a function region as JSON",
	Args:  cobra.ExactArgs(2),
	RunE:  runLocate,
}

func init() {
	genCmd.Flags().BoolVar(&genWrite, "write", false, "Rewrite the file in place")
	genCmd.Flags().BoolVar(&genDiff, "diff", false, "Print a line diff instead of the new text")
}

// recordingGenerator records one ledger entry per generated function.
type recordingGenerator struct {
	gen   splice.Generator
	store *history.Store
	path  string
	prov  string
	model string
}

func (r *recordingGenerator) Generate(ctx context.Context, req splice.GenerateRequest) (splice.Generation, error) {
	start := time.Now()
	g, err := r.gen.Generate(ctx, req)

	run := history.Run{
		Mode:     history.ModeDirective,
		Target:   req.Func,
		File:     r.path,
		Provider: r.prov,
		Model:    r.model,
		Status:   history.StatusBuilt,
		Duration: time.Since(start),
	}
	switch {
	case err != nil:
		run.Status, run.Detail = history.StatusFailed, err.Error()
	case g.ErrorMessage != "":
		run.Status, run.Detail = history.StatusReported, g.ErrorMessage
	}
	if recErr := r.store.Record(ctx, run); recErr != nil {
		logger.Warn("failed to record run", zap.String("func", req.Func), zap.Error(recErr))
	}
	return g, err
}

func runGen(cmd *cobra.Command, args []string) error {
	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, saveUsage := withUsage(commandContext(cmd), ws, "gen")
	defer saveUsage()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	funcs := args[1:]
	if len(funcs) == 0 {
		funcs = []string{splice.AllTargets}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	cg, err := newGenerator(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	var gen splice.Generator = cg
	if store := openHistory(cfg, ws); store != nil {
		defer store.Close()
		gen = &recordingGenerator{gen: cg, store: store, path: path, prov: cg.ProviderName(), model: cg.Model()}
	}

	res, err := splice.Rewrite(ctx, splice.Request{
		Source:    string(src),
		Path:      path,
		Namespace: cfg.Namespace,
		Targets:   funcs,
	}, gen)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	stderr := cmd.ErrOrStderr()
	for _, f := range res.Failed {
		fmt.Fprintf(stderr, "%s: %v (kept previous text)\n", args[0], f)
	}
	if cfg.Build.SyntaxCheck && syntaxcheck.Supported(path) && len(res.Generated) > 0 {
		issues, lintErr := syntaxcheck.Check(ctx, path, []byte(res.Text))
		if lintErr != nil {
			logger.Warn("syntax check failed", zap.Error(lintErr))
		}
		for _, is := range issues {
			fmt.Fprintf(stderr, "%s:%s\n", args[0], is)
		}
	}

	out := cmd.OutOrStdout()
	switch {
	case genDiff:
		if err := newRenderer().Hunks(out, args[0], args[0], diff.Lines(string(src), res.Text)); err != nil {
			return err
		}
	case !genWrite:
		fmt.Fprint(out, res.Text)
	}
	if genWrite && res.Text != string(src) {
		if err := fileio.WriteAtomic(path, []byte(res.Text)); err != nil {
			return err
		}
		logger.Info("rewrote file", zap.String("path", path), zap.Strings("generated", res.Generated))
	}

	if len(res.Failed) > 0 {
		errs := make([]error, len(res.Failed))
		for i, f := range res.Failed {
			errs[i] = f
		}
		return errors.Join(errs...)
	}
	return nil
}

func runLocate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	r := splice.Locate(string(src), args[1], cfg.Namespace)
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
