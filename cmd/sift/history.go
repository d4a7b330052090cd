package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sift/pkg/sift/config"
	"github.com/jamesainslie/sift/pkg/sift/manifest"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	Long: `View the history of searches, cache lookups and cache edits.

Every operation appends an entry under the data directory recording the
target hash, the roots, the terminal state and the counts.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a specific operation",
	Long:  `Display one entry. The id may be shortened to its first 8 characters.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than history.retention_days.`,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", config.DefaultHistoryLimit, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyManifest() (*manifest.Manifest, error) {
	m, err := manifest.New(cfg.HistoryDir())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}
	return m, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	m, err := historyManifest()
	if err != nil {
		return err
	}

	entries, err := m.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'sift search <root> --hash <sha256>' to record one.")
		return nil
	}

	printHistoryTable(cmd.OutOrStdout(), entries)
	printInfo("\nUse 'sift history show <id>' for details on a specific entry.")
	return nil
}

func printHistoryTable(w io.Writer, entries []manifest.Entry) {
	fmt.Fprintf(w, "%-8s  %-19s  %-6s  %-9s  %-7s  %s\n", "ID", "TIME", "OP", "STATE", "MATCHES", "TARGET")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, e := range entries {
		fmt.Fprintf(w, "%-8s  %-19s  %-6s  %-9s  %-7d  %s\n",
			truncateString(e.ID, 8),
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Operation,
			e.State,
			e.Counts.Matches,
			truncateString(e.Target, 16),
		)
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	m, err := historyManifest()
	if err != nil {
		return err
	}

	entry, err := m.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	printHistoryEntry(cmd.OutOrStdout(), entry)
	return nil
}

func printHistoryEntry(w io.Writer, e *manifest.Entry) {
	fmt.Fprintln(w, "Operation Details")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "ID:         %s\n", e.ID)
	fmt.Fprintf(w, "Timestamp:  %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Operation:  %s\n", e.Operation)
	if e.ScanID != "" {
		fmt.Fprintf(w, "Scan:       %s\n", e.ScanID)
	}
	if e.Target != "" {
		fmt.Fprintf(w, "Target:     %s\n", e.Target)
	}
	if len(e.Roots) > 0 {
		fmt.Fprintf(w, "Roots:      %s\n", strings.Join(e.Roots, ", "))
	}
	if e.State != "" {
		fmt.Fprintf(w, "State:      %s\n", e.State)
	}
	if e.Duration != "" {
		fmt.Fprintf(w, "Duration:   %s\n", e.Duration)
	}

	c := e.Counts
	switch e.Operation {
	case manifest.OpScan:
		fmt.Fprintf(w, "Hashed:     %d of %d (%s)\n", c.Digested, c.Submitted, types.FormatSize(c.BytesHashed))
		fmt.Fprintf(w, "Results:    %d matches, %d non-matches, %d skipped\n", c.Matches, c.NonMatches, c.Skipped)
	case manifest.OpSmart:
		fmt.Fprintf(w, "Known:      %d\n", c.Known)
	case manifest.OpDelete, manifest.OpClear:
		fmt.Fprintf(w, "Removed:    %d\n", c.Removed)
	}
	if e.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", e.Error)
	}

	if len(e.Matches) > 0 {
		fmt.Fprintln(w, "\nMatches:")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		limit := min(len(e.Matches), 50)
		for _, p := range e.Matches[:limit] {
			fmt.Fprintln(w, p)
		}
		if len(e.Matches) > limit {
			fmt.Fprintf(w, "\n... and %d more\n", len(e.Matches)-limit)
		}
	}
}

func runHistoryClean(_ *cobra.Command, _ []string) error {
	m, err := historyManifest()
	if err != nil {
		return err
	}

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultHistoryRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := m.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
