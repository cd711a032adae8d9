package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codesplice/internal/config"
	"codesplice/internal/diff"
	"codesplice/internal/gateway"
	"codesplice/internal/history"
	"codesplice/internal/logging"
	"codesplice/internal/usage"
)

var (
	// Global flags
	verbose   bool
	workspace string
	noColor   bool
	provider  string
	model     string
	namespace string
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "splice",
	Short: "codesplice - prompt-driven code generation spliced into source files",
	Long: `codesplice regenerates code from prompts.

Manifest mode builds whole files from a JSON or YAML manifest and records the
prompts that produced each file in a footer, so unchanged targets are skipped.

Directive mode rewrites the regions of a source file that follow
@ai_func comments, leaving everything else byte for byte intact.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.SetBase(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the codesplice version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "splice %s\n", config.DefaultConfig().Version)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory holding .splice/ (default: current)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored diff output")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "LLM provider: anthropic, openai, gemini or mock")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "LLM model (default from config or manifest)")
	rootCmd.PersistentFlags().StringVar(&namespace, "ns", "", "Directive namespace (default from config: ai)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request LLM timeout (default from config)")

	rootCmd.AddCommand(
		buildCmd,
		buildParallelCmd,
		buildChangedCmd,
		diffCmd,
		genCmd,
		locateCmd,
		serveCmd,
		watchCmd,
		historyCmd,
		usageCmd,
		versionCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext returns the command's context, or a background context when
// the command was invoked directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func resolveWorkspace() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	return os.Getwd()
}

// loadConfig reads the workspace config, applies flag overrides and sets up
// category logging.
func loadConfig() (*config.Config, string, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve workspace: %w", err)
	}
	cfg, err := config.Load(config.ConfigPath(ws))
	if err != nil {
		return nil, "", err
	}
	if provider != "" || model != "" {
		cfg.LLM = cfg.LLMFor(provider, model)
	}
	if namespace != "" {
		cfg.Namespace = namespace
	}
	if timeout > 0 {
		cfg.LLM.Timeout = timeout.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logging.Initialize(ws, cfg.Logging.Options()); err != nil {
		return nil, "", err
	}
	logging.Boot("workspace %s (provider %s, namespace %s)", ws, cfg.LLM.Provider, cfg.Namespace)
	logging.BootDebug("config path %s", config.ConfigPath(ws))
	return cfg, ws, nil
}

// newGenerator builds the gateway-backed code generator for llm.
func newGenerator(ctx context.Context, llm config.LLMConfig) (*gateway.CodeGenerator, error) {
	if err := llm.Validate(); err != nil {
		return nil, err
	}
	p, err := gateway.NewProvider(ctx, llm)
	if err != nil {
		return nil, err
	}
	gw := gateway.New(p, llm.MaxResultBytes)
	return gateway.NewCodeGenerator(gw, llm.Model, llm.GetMaxTurns()), nil
}

// openHistory opens the ledger, or returns nil when it is disabled or
// cannot be opened. Ledger errors never fail a build.
func openHistory(cfg *config.Config, ws string) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.History.ResolvePath(ws))
	if err != nil {
		logger.Warn("history ledger unavailable", zap.Error(err))
		return nil
	}
	return store
}

// withUsage attaches the workspace token tracker to ctx, labelled with op.
// The returned func persists what was tracked.
func withUsage(ctx context.Context, ws, op string) (context.Context, func()) {
	ctx = usage.WithOperation(ctx, op)
	tracker, err := usage.NewTracker(usage.DefaultPath(ws))
	if err != nil {
		logger.Warn("usage tracking unavailable", zap.Error(err))
		return ctx, func() {}
	}
	return usage.NewContext(ctx, tracker), func() {
		if err := tracker.Save(); err != nil {
			logger.Warn("failed to save usage", zap.Error(err))
		}
	}
}

// colorEnabled reports whether diffs written to stdout should be colored.
func colorEnabled() bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func newRenderer() *diff.Renderer {
	return diff.NewRenderer(colorEnabled())
}
