package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codesplice/internal/manifest"
	"codesplice/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <target|all>... <manifest>",
	Short: "Rebuild changed targets whenever the manifest or a prompt file changes",
	Long: `Runs build-changed once, then watches the manifest and every prompt file
it references. Each settled batch of changes reloads the manifest and runs
build-changed again. Stop with Ctrl-C.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	names, path, err := manifestArgs(args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, saveUsage := withUsage(ctx, ws, "watch")
	defer saveUsage()
	store := openHistory(cfg, ws)
	if store != nil {
		defer store.Close()
	}

	orch, err := newOrchestrator(cmd, cfg, path, store, true)
	if err != nil {
		return err
	}

	out, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	var mu sync.Mutex
	rebuild := func(ctx context.Context) {
		mu.Lock()
		defer mu.Unlock()
		if err := orch.Run(ctx, manifest.CmdBuildChanged, names, out); err != nil {
			fmt.Fprintln(stderr, err)
		}
	}
	rebuild(ctx)

	var w *watch.Watcher
	w, err = watch.New(orch.Manifest().Files(), cfg.Build.GetDebounce(), func(ctx context.Context, changed []string) {
		logger.Info("inputs changed", zap.Strings("files", changed))
		next, err := newOrchestrator(cmd, cfg, path, store, true)
		if err != nil {
			// Keep the last good manifest until the edit is fixed.
			fmt.Fprintf(stderr, "reload %s: %v\n", path, err)
			return
		}
		mu.Lock()
		orch = next
		mu.Unlock()
		if err := w.SetFiles(next.Manifest().Files()); err != nil {
			logger.Warn("failed to update watched files", zap.Error(err))
		}
		rebuild(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	fmt.Fprintf(stderr, "watching %d files (Ctrl-C to stop)\n", len(orch.Manifest().Files()))
	w.Start(ctx)
	<-ctx.Done()
	w.Stop()

	st := w.Stats()
	logger.Debug("watch stopped", zap.Int("events", st.Events), zap.Int("batches", st.Batches))
	return nil
}
