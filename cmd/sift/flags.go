package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sift/pkg/sift/filter"
)

// requestFlags are the flags shared by the commands that build a search.
type requestFlags struct {
	hash      string
	types     string
	maxAge    string
	signature string
}

// reportFlags control how results are filtered and formatted.
type reportFlags struct {
	template string
	include  string
	omit     string
	limit    int
	sortBy   string
	reverse  bool
}

// addScanFlags registers the flags that feed the scanner configuration.
func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceP("ext", "e", nil, "extension allow-list, e.g. .pdf,.zip (default: all)")
	f.StringSliceP("exclude", "x", nil, "directories to skip")
	f.StringP("min-size", "m", "", "minimum file size to hash, e.g. 1M")
	f.IntP("workers", "w", 0, "digest workers (default: CPU count)")
	f.Int("queue-size", 0, "job queue capacity (default: sized from RAM)")
	f.String("chunk-size", "", "read buffer size per digest, e.g. 128KiB")
}

func addRequestFlags(cmd *cobra.Command, rf *requestFlags) {
	f := cmd.Flags()
	f.StringVarP(&rf.hash, "hash", "H", "", "target SHA-256 digest (required)")
	f.StringVarP(&rf.types, "type", "t", "", "file type groups: "+strings.Join(typeGroupNames(), ","))
	f.StringVar(&rf.maxAge, "max-age", "", "only report files modified within this age, e.g. 30, 2w, 1mo")
	f.StringVar(&rf.signature, "signature", "all", "signature filter: all, valid, invalid, unknown")
	_ = cmd.MarkFlagRequired("hash")
}

func addReportFlags(cmd *cobra.Command, of *reportFlags) {
	f := cmd.Flags()
	f.StringP("output", "o", "", "output format: "+strings.Join(availableFormats(), ", "))
	f.StringVar(&of.template, "template", "", "Go template for the template format")
	f.StringVar(&of.include, "include", "", "only report paths matching these globs (comma-separated)")
	f.StringVar(&of.omit, "omit", "", "drop paths matching these globs (comma-separated)")
	f.IntVarP(&of.limit, "limit", "n", 0, "maximum records to report (0 = unlimited)")
	f.StringVar(&of.sortBy, "sort", "path", "sort by: path, size, age")
	f.BoolVarP(&of.reverse, "reverse", "r", false, "reverse the sort order")
}

// parseMaxAge converts an age such as "30", "2w" or "36h" to whole days,
// rounding up. Empty disables the filter.
func parseMaxAge(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := filter.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid max-age %q: %w", s, err)
	}
	return int((d + filter.Day - 1) / filter.Day), nil
}

// buildFilter creates the report filter from the output flags.
func buildFilter(of reportFlags, maxAgeDays int) (*filter.Filter, error) {
	opts := []filter.Option{filter.WithLimit(of.limit)}

	if patterns := parseCommaSeparated(of.include); len(patterns) > 0 {
		opts = append(opts, filter.WithInclude(patterns...))
	}
	if patterns := parseCommaSeparated(of.omit); len(patterns) > 0 {
		opts = append(opts, filter.WithExclude(patterns...))
	}
	if maxAgeDays < 0 {
		return nil, fmt.Errorf("invalid max-age %d: %w", maxAgeDays, filter.ErrNegativeValue)
	}
	if maxAgeDays > 0 {
		opts = append(opts, filter.WithMaxAgeDays(maxAgeDays))
	}

	if of.sortBy != "" {
		field, err := filter.ParseSortField(of.sortBy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, filter.WithSortBy(field))
	}
	opts = append(opts, filter.WithSortDescending(of.reverse))

	return filter.New(opts...), nil
}

// parseCommaSeparated splits a comma-separated string into a slice of
// trimmed, non-empty strings.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
