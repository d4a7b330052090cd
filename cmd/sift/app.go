package main

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jamesainslie/sift/cmd/sift/tui"
	"github.com/jamesainslie/sift/pkg/sift/cache"
	"github.com/jamesainslie/sift/pkg/sift/digest"
	"github.com/jamesainslie/sift/pkg/sift/events"
	"github.com/jamesainslie/sift/pkg/sift/filter"
	"github.com/jamesainslie/sift/pkg/sift/logging"
	"github.com/jamesainslie/sift/pkg/sift/manifest"
	"github.com/jamesainslie/sift/pkg/sift/report"
	"github.com/jamesainslie/sift/pkg/sift/scanner"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

func typeGroupNames() []string {
	names := make([]string, 0, len(filter.TypeGroups))
	for name := range filter.TypeGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func availableFormats() []string {
	return report.Available()
}

// buildRequest assembles a scan request from the arguments, the request
// flags and the loaded configuration. Roots default to the working
// directory. The hash is lowercased before validation.
func buildRequest(args []string, rf requestFlags) (types.ScanRequest, error) {
	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}

	minSize, err := cfg.MinSizeBytes()
	if err != nil {
		return types.ScanRequest{}, err
	}

	exts := append([]string(nil), cfg.Extensions...)
	if groups := parseCommaSeparated(rf.types); len(groups) > 0 {
		expanded, unknown := filter.ExpandTypeGroups(groups...)
		if len(unknown) > 0 {
			return types.ScanRequest{}, fmt.Errorf("unknown file type %q (valid: %s)",
				unknown[0], strings.Join(typeGroupNames(), ", "))
		}
		exts = append(exts, expanded...)
	}

	maxAge, err := parseMaxAge(rf.maxAge)
	if err != nil {
		return types.ScanRequest{}, err
	}

	sig, err := types.ParseSignatureFilter(rf.signature)
	if err != nil {
		return types.ScanRequest{}, err
	}

	req := types.ScanRequest{
		Roots:      roots,
		TargetHash: strings.ToLower(strings.TrimSpace(rf.hash)),
		Extensions: exts,
		Exclude:    cfg.Exclude,
		MinSize:    minSize,
		MaxAgeDays: maxAge,
		Signature:  sig,
	}
	return req.Normalize()
}

// scannerOptions builds scanner options from the configuration.
func scannerOptions(bc *events.Broadcaster) (scanner.Options, error) {
	chunk, err := cfg.ChunkSizeBytes()
	if err != nil {
		return scanner.Options{}, err
	}
	return scanner.Options{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		Digester:  digest.NewSHA256(chunk),
		Events:    bc,
	}, nil
}

func openCache() (*cache.Cache, error) {
	path := cfg.CachePath()
	printVerbose("Cache: %s (%s)", path, cfg.Cache.Backend)
	return cache.Open(cache.Options{Backend: cfg.Cache.Backend, Path: path})
}

// openManifest returns the history manifest, or nil when history is
// disabled.
func openManifest() (*manifest.Manifest, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	return manifest.New(cfg.HistoryDir())
}

// recordHistory appends e to the manifest. Failures are logged, never
// returned: history is advisory.
func recordHistory(m *manifest.Manifest, e manifest.Entry) {
	if m == nil {
		return
	}
	if _, err := m.Append(e); err != nil {
		logging.Get("cli").Warn("recording history", "op", e.Operation, "error", err)
		printVerbose("Failed to record history: %v", err)
	}
}

// watchScan follows a started scanner until it reaches a terminal state.
// In live mode the feed owns the terminal; otherwise matches are echoed to
// stderr as they are found. sub must have been subscribed before the scan
// started.
func watchScan(s *scanner.Scanner, bc *events.Broadcaster, sub *events.Subscriber, live bool) scanner.Summary {
	if live {
		if _, err := tui.Run(s, sub.Events, s.Request()); err != nil {
			printVerbose("Live feed failed: %v", err)
			bc.Unsubscribe(sub.ID)
		}
		summary := s.Wait()
		bc.Close()
		return summary
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for e := range sub.Events {
			switch e.Type {
			case events.EventMatch:
				printInfo("%s %s", report.SuccessStyle.Render("match"), e.Match.Path)
			case events.EventError:
				printVerbose("%v", e.Err)
			}
		}
	}()

	summary := s.Wait()
	bc.Close()
	<-drained
	return summary
}

// scanResult converts a scan summary into a report, applying the output
// filter to the matches.
func scanResult(summary scanner.Summary, known []types.FileRecord, f *filter.Filter) *report.Result {
	now := time.Now()
	req := summary.Request

	res := &report.Result{
		ScanID:  summary.ScanID,
		Target:  req.TargetHash,
		Roots:   req.Roots,
		State:   summary.StateName,
		Records: report.Apply(report.FromMatches(summary.Matches, report.SourceNormal, now), f),
		Known:   report.FromFileRecords(known, report.SourceNonMatch, now),
		Stats: report.Stats{
			Submitted:   summary.Progress.Submitted,
			Digested:    summary.Progress.Digested,
			NonMatches:  summary.Progress.NonMatches,
			Skipped:     summary.Progress.Skipped,
			BytesHashed: summary.Progress.BytesHashed,
			Duration:    summary.Elapsed(),
		},
		Interrupted: summary.State == scanner.StateStopped,
	}
	res.Warnings = requestWarnings(req)
	if summary.Progress.Skipped > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d files could not be read", summary.Progress.Skipped))
	}
	return res
}

func requestWarnings(req types.ScanRequest) []string {
	if req.Signature == types.SignatureAll {
		return nil
	}
	return []string{fmt.Sprintf("signature filter %q is recorded but signatures are not verified", req.Signature)}
}

// formatterFor resolves the output formatter. A template string selects
// the template format implicitly.
func formatterFor(of reportFlags) (report.Formatter, error) {
	format := cfg.Output.Format
	if of.template != "" {
		return report.NewTemplateFormatter(of.template), nil
	}
	if format == "template" {
		return nil, fmt.Errorf("--template is required with -o template")
	}
	return report.Get(format)
}

func writeReport(w io.Writer, of reportFlags, res *report.Result) error {
	formatter, err := formatterFor(of)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, res); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// confirmScan asks on stdin whether to run a full scan. Anything but an
// explicit yes declines.
func confirmScan(in io.Reader, out io.Writer, roots []string) bool {
	fmt.Fprintf(out, "No cached records for this hash. Scan %s now? [y/N] ", strings.Join(roots, ", "))
	var answer string
	if _, err := fmt.Fscanln(in, &answer); err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// scanError maps a terminal summary to the command's error.
func scanError(summary scanner.Summary) error {
	if summary.State != scanner.StateFailed {
		return nil
	}
	if summary.Err != nil {
		return fmt.Errorf("scan failed: %w", summary.Err)
	}
	return fmt.Errorf("scan failed")
}
