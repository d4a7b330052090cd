package main

import (
	"fmt"
	"io"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sift/pkg/sift/events"
	"github.com/jamesainslie/sift/pkg/sift/manifest"
	"github.com/jamesainslie/sift/pkg/sift/scanner"
	"github.com/jamesainslie/sift/pkg/sift/watcher"
)

var (
	watchReq      requestFlags
	watchInitial  bool
	watchDebounce time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch [roots...]",
		Short: "Hash new and modified files as they appear",
		Long: `Watch the roots for files being created or written and hash each one once
it has been quiet for the debounce interval. Outcomes are recorded in the
cache exactly as a search would record them. Matching paths are printed to
stdout as they are found.

With --initial-scan, a full search runs before watching begins.`,
		Example: `  sift watch ~/Downloads --hash 9f86d0...
  sift watch /srv/uploads --hash 9f86d0... --initial-scan`,
		RunE: runWatch,
	}
)

func init() {
	addScanFlags(watchCmd)
	addRequestFlags(watchCmd, &watchReq)
	f := watchCmd.Flags()
	f.BoolVar(&watchInitial, "initial-scan", false, "run a full search before watching")
	f.DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before a changed file is hashed")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(args, watchReq)
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

	ctx, stop := signal.NotifyContext(cmd.Context(), stopSignals...)
	defer stop()

	bc := events.New()
	opts, err := scannerOptions(bc)
	if err != nil {
		return err
	}

	sub := bc.Subscribe(0)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printMatches(cmd.OutOrStdout(), sub.Events)
	}()
	defer func() {
		bc.Close()
		<-printed
	}()

	if watchInitial {
		s, err := scanner.New(req, c, opts)
		if err != nil {
			return err
		}
		if err := s.Start(ctx); err != nil {
			return err
		}
		summary := s.Wait()
		recordHistory(hist, manifest.FromSummary(summary))
		if err := scanError(summary); err != nil {
			return err
		}
		printInfo("Initial scan %s: %d matches in %d files.",
			summary.StateName, summary.Progress.Matches, summary.Progress.Digested)
		if ctx.Err() != nil {
			return nil
		}
	}

	w, err := watcher.New(req, c, watcher.Options{
		Digester: opts.Digester,
		Events:   bc,
		Debounce: watchDebounce,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	printInfo("Watching %d root(s). Press Ctrl+C to stop.", len(req.Roots))
	if err := w.Run(ctx); err != nil {
		return err
	}

	st := w.Stats()
	printInfo("\nWatched %d directories: %d hashed, %d matches, %d skipped.",
		st.Dirs, st.Digested, st.Matches, st.Skipped)
	return nil
}

// printMatches writes each matching path to w until events closes.
func printMatches(w io.Writer, evs <-chan events.Event) {
	for e := range evs {
		switch e.Type {
		case events.EventMatch:
			fmt.Fprintln(w, e.Match.Path)
		case events.EventError:
			printVerbose("%v", e.Err)
		}
	}
}
