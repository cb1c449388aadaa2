package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/serialpong/internal/storage"
)

var flagRunsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Show the run journal",
	Long: `Without arguments, lists the most recent runs. With a run ID (or a
unique prefix of one), shows that run and its diagnostics.

Examples:
  serialpong runs
  serialpong runs --limit 50
  serialpong runs 3f2a`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&flagRunsLimit, "limit", 20, "Number of runs to list")
}

func runRuns(_ *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fail("%v", err)
	}

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		fail("opening run journal: %v", err)
	}
	defer store.Close()

	if len(args) == 1 {
		showRun(store, args[0])
		return
	}

	runs, err := store.RecentRuns(flagRunsLimit)
	if err != nil {
		store.Close()
		fail("retrieving runs: %v", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		fmt.Println()
		fmt.Println("Start one with 'serialpong run'.")
		return
	}

	fmt.Printf("  %-8s  %-16s  %-8s  %-8s  %8s  %8s  %-10s\n", "ID", "Started", "Variant", "Sink", "Frames", "Duration", "End")
	fmt.Printf("  %-8s  %-16s  %-8s  %-8s  %8s  %8s  %-10s\n", "--", "-------", "-------", "----", "------", "--------", "---")
	for _, r := range runs {
		fmt.Printf("  %-8s  %-16s  %-8s  %-8s  %8d  %8s  %-10s\n",
			r.ID[:8], r.StartedAt.Format("2006-01-02 15:04"), r.Variant, r.Sink,
			r.Rendered, runDuration(r), r.EndReason)
	}
}

func showRun(store *storage.Store, prefix string) {
	runs, err := store.RecentRuns(1 << 20)
	if err != nil {
		store.Close()
		fail("retrieving runs: %v", err)
	}

	var match *storage.Run
	for i := range runs {
		if len(runs[i].ID) >= len(prefix) && runs[i].ID[:len(prefix)] == prefix {
			if match != nil {
				store.Close()
				fail("run ID prefix %q is ambiguous", prefix)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		store.Close()
		fail("no run matches %q", prefix)
	}

	r := match
	fmt.Printf("Run %s\n\n", r.ID)
	fmt.Printf("  Variant    %s (%dx%d, tick %s)\n", r.Variant, r.Width, r.Height, r.Tick)
	fmt.Printf("  Sink       %s\n", r.Sink)
	fmt.Printf("  Started    %s\n", r.StartedAt.Format(time.DateTime))
	fmt.Printf("  Duration   %s\n", runDuration(*r))
	fmt.Printf("  Frames     %d produced, %d rendered, %d skipped, %d dropped, %d leftover\n",
		r.Produced, r.Rendered, r.Skipped, r.Dropped, r.Leftover)
	fmt.Printf("  Retries    %d\n", r.Retries)
	fmt.Printf("  End        %s\n", r.EndReason)
	if r.Error != "" {
		fmt.Printf("  Error      %s\n", r.Error)
	}

	diags, err := store.Diagnostics(r.ID)
	if err != nil {
		store.Close()
		fail("retrieving diagnostics: %v", err)
	}
	if len(diags) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Diagnostics:")
	for _, d := range diags {
		fmt.Printf("  %s  %-10s  %-7s  %s\n", d.At.Format("15:04:05.000"), d.Task, d.Severity, d.Message)
	}
}

func runDuration(r storage.Run) string {
	if r.EndedAt.IsZero() {
		return "-"
	}
	return r.EndedAt.Sub(r.StartedAt).Round(time.Second).String()
}
