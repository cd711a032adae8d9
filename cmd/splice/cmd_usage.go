package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"codesplice/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show LLM token usage for this workspace",
	Args:  cobra.NoArgs,
	RunE:  runUsage,
}

func runUsage(cmd *cobra.Command, args []string) error {
	_, ws, err := loadConfig()
	if err != nil {
		return err
	}
	tracker, err := usage.NewTracker(usage.DefaultPath(ws))
	if err != nil {
		return err
	}

	stats := tracker.Stats()
	out := cmd.OutOrStdout()
	if stats.Total.Calls == 0 {
		fmt.Fprintln(out, "No usage recorded.")
		return nil
	}
	return printUsage(out, stats)
}

func printUsage(w io.Writer, stats usage.AggregatedStats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tCALLS\tINPUT\tOUTPUT\tTOTAL\t")
	row := func(label string, c usage.TokenCounts) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t\n", label, c.Calls, c.Input, c.Output, c.Total)
	}
	row("total", stats.Total)

	for _, section := range []struct {
		name string
		m    map[string]usage.TokenCounts
	}{
		{"provider", stats.ByProvider},
		{"model", stats.ByModel},
		{"operation", stats.ByOperation},
		{"target", stats.ByTarget},
	} {
		keys := make([]string, 0, len(section.m))
		for k := range section.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			row(section.name+" "+k, section.m[k])
		}
	}
	return tw.Flush()
}
