package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"codesplice/internal/editor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the editor protocol on stdin/stdout",
	Long: `Reads one JSON request per line from stdin and writes one JSON response
per line to stdout. Editor plugins send the live buffer text, so unsaved
changes are honored.

Methods:
  generate  {text, path, funcs, namespace?} -> {text, diffs, generated, failed}
  locate    {text, func, namespace?}        -> {range}
  shutdown                                   -> {ok}`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, saveUsage := withUsage(ctx, ws, "serve")
	defer saveUsage()
	gen, err := newGenerator(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	srv := editor.NewServer(gen, cfg.Namespace)
	return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}
