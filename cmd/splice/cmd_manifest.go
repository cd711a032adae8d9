package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codesplice/internal/config"
	"codesplice/internal/history"
	"codesplice/internal/manifest"
	"codesplice/internal/splice"
	"codesplice/internal/syntaxcheck"
)

var buildCmd = &cobra.Command{
	Use:   "build <target|all>... <manifest>",
	Short: "Generate the selected targets",
	Long: `Generates every selected target file from its system and user prompts and
appends a prompt spec footer recording the prompts that produced it.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runManifestCommand(manifest.CmdBuild),
}

var buildParallelCmd = &cobra.Command{
	Use:   "build-parallel <target|all>... <manifest>",
	Short: "Generate the selected targets concurrently",
	Long: `Like build, but every target is generated on its own goroutine. One
failing target never stops the others; output may interleave.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runManifestCommand(manifest.CmdBuildParallel),
}

var buildChangedCmd = &cobra.Command{
	Use:   "build-changed <target|all>... <manifest>",
	Short: "Regenerate targets whose prompts changed",
	Long: `Compares each target's current prompt spec with the footer embedded in the
file and regenerates only targets that differ. The build stamp line is
ignored, so rebuilding with the same prompts makes zero LLM calls.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runManifestCommand(manifest.CmdBuildChanged),
}

var diffCmd = &cobra.Command{
	Use:   "diff <target|all>... <manifest>",
	Short: "Show how each target's prompts changed since its last build",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runManifestCommand(manifest.CmdDiff),
}

func runManifestCommand(c manifest.Command) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		names, path, err := manifestArgs(args)
		if err != nil {
			return err
		}
		return runManifest(cmd, c, names, path)
	}
}

func runManifest(cmd *cobra.Command, c manifest.Command, names []string, path string) error {
	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, saveUsage := withUsage(commandContext(cmd), ws, string(c))
	defer saveUsage()

	store := openHistory(cfg, ws)
	if store != nil {
		defer store.Close()
	}

	orch, err := newOrchestrator(cmd, cfg, path, store, c != manifest.CmdDiff)
	if err != nil {
		return err
	}
	logger.Debug("running manifest command",
		zap.String("command", string(c)),
		zap.Strings("targets", names),
		zap.String("manifest", path))

	return orch.Run(ctx, c, names, cmd.OutOrStdout())
}

// newOrchestrator loads the manifest at path and wires the generator,
// ledger and linter the config asks for. store may be nil. Without generate
// the orchestrator can only compare prompt specs, so no API key is needed.
func newOrchestrator(cmd *cobra.Command, cfg *config.Config, path string, store *history.Store, generate bool) (*manifest.Orchestrator, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	// Flags beat the manifest, the manifest beats config.
	if provider != "" || model != "" {
		m.Provider, m.Model = cfg.LLM.Provider, cfg.LLM.Model
	}
	llm := cfg.LLMFor(m.Provider, m.Model)
	m.ApplyDefaults(llm.Provider, llm.Model)

	var gen manifest.FileGenerator = offlineGenerator{provider: llm.Provider, model: llm.Model}
	if generate {
		cg, err := newGenerator(commandContext(cmd), llm)
		if err != nil {
			return nil, err
		}
		gen = cg
	}

	opts := manifest.Options{
		Version:     cfg.Version,
		Parallelism: cfg.Build.Parallelism,
		Renderer:    newRenderer(),
	}
	if store != nil {
		opts.Recorder = store
	}
	if cfg.Build.SyntaxCheck {
		opts.Linter = syntaxcheck.Linter{}
	}
	return manifest.NewOrchestrator(m, gen, opts), nil
}

// offlineGenerator names a provider and model without being able to call
// them. It backs commands that only read prompt specs.
type offlineGenerator struct {
	provider, model string
}

func (g offlineGenerator) GenerateFile(context.Context, string, string) (splice.Generation, error) {
	return splice.Generation{}, errors.New("generation is not available for this command")
}

func (g offlineGenerator) ProviderName() string { return g.provider }

func (g offlineGenerator) Model() string { return g.model }

// manifestArgs splits "<target|all>... <manifest>" arguments.
func manifestArgs(args []string) ([]string, string, error) {
	if len(args) < 2 {
		return nil, "", fmt.Errorf("expected <target|all>... <manifest>, got %d arguments", len(args))
	}
	return args[:len(args)-1], args[len(args)-1], nil
}
