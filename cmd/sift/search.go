package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sift/pkg/sift/events"
	"github.com/jamesainslie/sift/pkg/sift/manifest"
	"github.com/jamesainslie/sift/pkg/sift/scanner"
	"github.com/jamesainslie/sift/pkg/sift/tuner"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

var (
	searchReq  requestFlags
	searchOut  reportFlags
	searchLive bool

	searchCmd = &cobra.Command{
		Use:   "search [roots...]",
		Short: "Scan directories for files with a given hash",
		Long: `Walk every root, hash each admitted file and report those whose SHA-256
digest equals --hash. Every file hashed is recorded in the cache, matches and
non-matches alike.

Send SIGUSR1 to pause and SIGUSR2 to resume. Interrupting stops the scan and
reports what was found so far.`,
		Example: `  sift search ~/Downloads --hash 9f86d0...
  sift search / --hash 9f86d0... --exclude /mnt --type archive,executable
  sift search . --hash 9f86d0... --live
  sift search . --hash 9f86d0... -o json`,
		RunE: runSearch,
	}
)

func init() {
	addScanFlags(searchCmd)
	addRequestFlags(searchCmd, &searchReq)
	addReportFlags(searchCmd, &searchOut)
	searchCmd.Flags().BoolVar(&searchLive, "live", false, "show a live feed while scanning")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(args, searchReq)
	if err != nil {
		return err
	}
	flt, err := buildFilter(searchOut, req.MaxAgeDays)
	if err != nil {
		return err
	}
	if _, err := formatterFor(searchOut); err != nil {
		return err
	}
	if searchLive {
		if err := initLogging(cfg, true); err != nil {
			return err
		}
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
	opts, err := scannerOptions(bc)
	if err != nil {
		return err
	}
	logTuning(opts)

	s, err := scanner.New(req, c, opts)
	if err != nil {
		return err
	}
	sub := bc.Subscribe(0)

	if err := s.Start(context.Background()); err != nil {
		return err
	}
	release := controlScanner(s)
	summary := watchScan(s, bc, sub, searchLive)
	release()

	recordHistory(hist, manifest.FromSummary(summary))

	res := scanResult(summary, nil, flt)
	if err := writeReport(cmd.OutOrStdout(), searchOut, res); err != nil {
		return err
	}
	return scanError(summary)
}

// logTuning reports the resolved pool sizes in verbose mode.
func logTuning(opts scanner.Options) {
	if !verbose {
		return
	}
	resources, err := tuner.Detect()
	if err != nil {
		printVerbose("Failed to detect system resources: %v", err)
		return
	}
	tuned := tuner.CalculateWithOverrides(resources, opts.Workers, opts.QueueSize)
	printVerbose("System: %d CPUs, %s RAM, %s available",
		resources.CPUCores,
		types.FormatSize(resources.TotalRAM),
		types.FormatSize(resources.AvailableRAM))
	printVerbose("Config: %d hash workers, %d walk workers, queue size %d",
		tuned.HashWorkers, tuned.WalkWorkers, tuned.QueueSize)
}
