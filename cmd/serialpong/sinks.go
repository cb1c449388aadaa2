package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/serialpong/internal/registry"
)

var sinksCmd = &cobra.Command{
	Use:   "sinks",
	Short: "List all available sinks",
	Long:  `Shows the sink kinds that can be used with 'serialpong run --sink'.`,
	Run:   runSinks,
}

func runSinks(_ *cobra.Command, _ []string) {
	sinks := registry.List()

	fmt.Println("Available sinks:")
	fmt.Println()

	// Calculate column widths
	maxKindLen := len(sinkTUI)
	for _, s := range sinks {
		maxKindLen = max(maxKindLen, len(s.Kind))
	}

	// Print header
	fmt.Printf("  %-*s  %s\n", maxKindLen, "Kind", "Title")
	fmt.Printf("  %-*s  %s\n", maxKindLen, "----", "-----")

	for _, s := range sinks {
		fmt.Printf("  %-*s  %s\n", maxKindLen, s.Kind, s.Title)
	}
	fmt.Printf("  %-*s  %s\n", maxKindLen, sinkTUI, "Local styled viewer")

	fmt.Println()
	fmt.Println("Run 'serialpong run --sink <kind>' to use one.")
}
