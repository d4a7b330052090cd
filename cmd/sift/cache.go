package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/sift/pkg/sift/cache"
	"github.com/jamesainslie/sift/pkg/sift/filter"
	"github.com/jamesainslie/sift/pkg/sift/manifest"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the scan cache",
	Long: `Commands for managing the sift scan cache.

The cache remembers every file a search has hashed: matches in one partition,
non-matches in the other. Smart lookups answer from it without touching the
disk. Data is stored under the XDG data directory (typically
~/.local/share/sift).`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE:  runCacheStats,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached records, newest first",
	Long: `List cached records, newest first.

--ext keeps records with exactly that extension ("all" keeps every record).
--match keeps records whose path or hash contains the text; a pattern with
*, ?, [ or { is a glob that must match the whole path or hash.`,
	Example: `  sift cache list --ext pdf
  sift cache list -p non-matches --match report
  sift cache list --match '*/Downloads/*'`,
	RunE: runCacheList,
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <path> [hash]",
	Short: "Remove the records for a path",
	Long: `Remove the records for a path from both partitions. With a hash, only
records carrying that hash are removed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCacheDelete,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached records",
	Long:  `Removes every record. The next smart lookup will miss until a search repopulates the cache.`,
	RunE:  runCacheClear,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the cache location",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CachePath())
	},
}

var (
	listPartition  string
	clearPartition string
	cacheLimit     int
	listExt        string
	listMatch      string
)

func init() {
	cacheListCmd.Flags().StringVarP(&listPartition, "partition", "p", "matches", "partition to list: matches, non-matches")
	cacheListCmd.Flags().IntVarP(&cacheLimit, "limit", "l", 50, "maximum records to list (0 = all)")
	cacheListCmd.Flags().StringVar(&listExt, "ext", filter.AllExtensions, "only records with this extension")
	_ = cacheListCmd.Flags().SetAnnotation("ext", unboundAnnotation, []string{"true"})
	cacheListCmd.Flags().StringVarP(&listMatch, "match", "m", "", "only records whose path or hash matches this text or glob")
	cacheClearCmd.Flags().StringVarP(&clearPartition, "partition", "p", "", "clear only this partition")

	cacheCmd.AddCommand(cacheStatsCmd, cacheListCmd, cacheDeleteCmd, cacheClearCmd, cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	st, err := c.Stats(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Backend:      %s\n", st.Backend)
	fmt.Fprintf(w, "Location:     %s\n", st.Path)
	fmt.Fprintf(w, "Matches:      %s\n", humanize.Comma(st.Matches))
	fmt.Fprintf(w, "Non-matches:  %s\n", humanize.Comma(st.NonMatches))
	return nil
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	part, err := types.ParsePartition(listPartition)
	if err != nil {
		return err
	}

	query, err := filter.NewQuery(listMatch)
	if err != nil {
		return err
	}

	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	recs, err := c.List(cmd.Context(), part, 0)
	if err != nil {
		return err
	}
	recs = filterRecords(recs, listExt, query, cacheLimit)
	if len(recs) == 0 {
		printInfo("No %s records cached.", part)
		return nil
	}

	printRecords(cmd.OutOrStdout(), recs)
	return nil
}

// filterRecords keeps records with extension ext that match q, up to limit.
// Extensions compare exactly after normalizing case and the leading dot.
func filterRecords(recs []types.FileRecord, ext string, q *filter.Query, limit int) []types.FileRecord {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == filter.AllExtensions {
		ext = ""
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	out := recs[:0:0]
	for _, r := range recs {
		if limit > 0 && len(out) == limit {
			break
		}
		if ext != "" {
			recExt := r.Extension
			if recExt == "" {
				recExt = filter.Ext(r.Path)
			}
			if recExt != ext {
				continue
			}
		}
		if !q.Match(r.Path, r.Hash) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func printRecords(w io.Writer, recs []types.FileRecord) {
	fmt.Fprintf(w, "%-6s  %-14s  %-12s  %s\n", "ID", "RECORDED", "HASH", "PATH")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, r := range recs {
		fmt.Fprintf(w, "%-6d  %-14s  %-12s  %s\n",
			r.ID,
			humanize.Time(r.RecordedAt),
			truncateString(r.Hash, 12),
			r.Path,
		)
	}
}

func runCacheDelete(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	var hash string
	if len(args) == 2 {
		hash = strings.ToLower(args[1])
		if err := types.ValidateHash(hash); err != nil {
			return err
		}
	}

	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	removed, err := c.Delete(cmd.Context(), path, hash)
	if err != nil {
		return err
	}

	if hist, err := openManifest(); err == nil && hist != nil {
		if _, err := hist.LogDelete(path, hash, removed); err != nil {
			printVerbose("Failed to record history: %v", err)
		}
	}

	if removed == 0 {
		printInfo("No records for %s.", path)
		return nil
	}
	printInfo("Removed %d record(s) for %s.", removed, path)
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	var parts []types.Partition
	if clearPartition != "" {
		part, err := types.ParsePartition(clearPartition)
		if err != nil {
			return err
		}
		parts = append(parts, part)
	}

	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	removed, err := clearCache(cmd.Context(), c, parts)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	hist, err := openManifest()
	if err == nil {
		recordHistory(hist, manifest.Entry{
			Operation: manifest.OpClear,
			Counts:    manifest.Counts{Removed: removed},
		})
	}

	printInfo("Cache cleared (%s records).", humanize.Comma(removed))
	return nil
}

// clearCache empties parts, or both partitions when none are given, and
// returns the number of records removed.
func clearCache(ctx context.Context, c *cache.Cache, parts []types.Partition) (int64, error) {
	st, err := c.Stats(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	if len(parts) == 0 {
		parts = types.Partitions
	}
	for _, part := range parts {
		switch part {
		case types.PartitionMatches:
			removed += st.Matches
		case types.PartitionNonMatches:
			removed += st.NonMatches
		}
	}
	return removed, c.Clear(ctx, parts...)
}
