package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sift/pkg/sift/events"
	"github.com/jamesainslie/sift/pkg/sift/filter"
	"github.com/jamesainslie/sift/pkg/sift/manifest"
	"github.com/jamesainslie/sift/pkg/sift/report"
	"github.com/jamesainslie/sift/pkg/sift/smart"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

var (
	smartReq     requestFlags
	smartOut     reportFlags
	smartHistory bool
	smartLive    bool

	smartCmd = &cobra.Command{
		Use:   "smart [roots...]",
		Short: "Answer from the cache, scanning only on a miss",
		Long: `Look the hash up in the scan cache before touching the disk. Files the
cache has already seen with this digest are reported straight away.

On a miss, --fallback decides what happens next:
  ask     prompt before scanning (default)
  always  run a full scan without asking
  never   report the miss and exit`,
		Example: `  sift smart ~ --hash 9f86d0...
  sift smart ~ --hash 9f86d0... --history
  sift smart /srv --hash 9f86d0... --fallback always -o json`,
		RunE: runSmart,
	}
)

func init() {
	addScanFlags(smartCmd)
	addRequestFlags(smartCmd, &smartReq)
	addReportFlags(smartCmd, &smartOut)
	f := smartCmd.Flags()
	f.BoolVar(&smartHistory, "history", false, "include every cached record with this hash")
	f.String("fallback", "", "on a cache miss: ask, always, never")
	f.BoolVar(&smartLive, "live", false, "show a live feed if a full scan runs")
	rootCmd.AddCommand(smartCmd)
}

func runSmart(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(args, smartReq)
	if err != nil {
		return err
	}
	flt, err := buildFilter(smartOut, req.MaxAgeDays)
	if err != nil {
		return err
	}
	if _, err := formatterFor(smartOut); err != nil {
		return err
	}
	policy, err := smart.ParseFallback(cfg.Smart.Fallback)
	if err != nil {
		return err
	}

	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	hist, err := openManifest()
	if err != nil {
		return err
	}

	bc := events.New()
	defer bc.Close()
	opts, err := scannerOptions(bc)
	if err != nil {
		return err
	}
	sub := bc.Subscribe(0)

	confirm := func(*smart.Result) bool {
		ok := confirmScan(os.Stdin, os.Stderr, req.Roots)
		if ok && smartLive {
			_ = initLogging(cfg, true)
		}
		return ok
	}

	lookup := smart.New(c, smart.Options{IncludeHistory: smartHistory})
	found, s, err := lookup.Search(context.Background(), req, policy, confirm, opts)
	if err != nil {
		return err
	}

	if s == nil {
		recordHistory(hist, manifest.FromLookup(req.TargetHash, req.Roots, found.Known))
		if found.NeedsFullScan {
			printInfo("No cached records for this hash; no scan was run.")
		}
		return writeReport(cmd.OutOrStdout(), smartOut, lookupResult(req, found, flt))
	}

	release := controlScanner(s)
	summary := watchScan(s, bc, sub, smartLive)
	release()

	recordHistory(hist, manifest.FromSummary(summary))

	res := scanResult(summary, found.Known, flt)
	if err := writeReport(cmd.OutOrStdout(), smartOut, res); err != nil {
		return err
	}
	return scanError(summary)
}

// lookupResult reports a cache-only answer. With history, cached matches
// become records and cached non-matches join the known list.
func lookupResult(req types.ScanRequest, found *smart.Result, f *filter.Filter) *report.Result {
	now := time.Now()
	res := &report.Result{
		Target:   req.TargetHash,
		Roots:    req.Roots,
		Known:    report.FromFileRecords(found.Known, report.SourceNonMatch, now),
		Warnings: requestWarnings(req),
	}

	if len(found.History) > 0 {
		res.Known = nil
		for _, rec := range report.FromFileRecords(found.History, "", now) {
			if rec.Source == report.SourceSmart {
				res.Records = append(res.Records, rec)
			} else {
				res.Known = append(res.Known, rec)
			}
		}
	}
	res.Records = report.Apply(res.Records, f)
	return res
}
