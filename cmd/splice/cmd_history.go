package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"codesplice/internal/history"
)

var (
	historyLimit  int
	historyTarget string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent generation runs",
	Long: `Lists generation runs recorded in the workspace ledger
(.splice/history.db by default), newest first.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list")
	historyCmd.Flags().StringVar(&historyTarget, "target", "", "Only list runs for this target or function")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in %s", cfg.History.ResolvePath(ws))
	}

	store, err := history.Open(cfg.History.ResolvePath(ws))
	if err != nil {
		return err
	}
	defer store.Close()

	var runs []history.Run
	if historyTarget != "" {
		runs, err = store.ForTarget(ctx, historyTarget, historyLimit)
	} else {
		runs, err = store.Recent(ctx, historyLimit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	return printRuns(out, runs, colorEnabled())
}

func printRuns(w io.Writer, runs []history.Run, color bool) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tMODE\tTARGET\tSTATUS\tMODEL\tTOOK\tDETAIL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s/%s\t%s\t%s\n",
			r.At.Local().Format(time.DateTime),
			r.Mode,
			r.Target,
			r.Status,
			r.Provider, r.Model,
			r.Duration.Round(time.Millisecond),
			firstLine(r.Detail),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	header, rest, _ := strings.Cut(buf.String(), "\n")
	if color {
		header = lipgloss.NewStyle().Bold(true).Render(header)
	}
	_, err := io.WriteString(w, header+"\n"+rest)
	return err
}

func firstLine(s string) string {
	if line, _, more := strings.Cut(s, "\n"); more {
		return line + " ..."
	}
	return s
}
