// Package watcher keeps hashing files as they are created or written under
// the roots of a search, classifying and recording each one the way a scan
// does.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/jamesainslie/sift/pkg/sift/digest"
	"github.com/jamesainslie/sift/pkg/sift/events"
	"github.com/jamesainslie/sift/pkg/sift/filter"
	"github.com/jamesainslie/sift/pkg/sift/logging"
	"github.com/jamesainslie/sift/pkg/sift/scanner"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

// DefaultDebounce is how long a file must stay quiet before it is hashed.
const DefaultDebounce = 250 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Digester computes file digests. Nil uses SHA-256.
	Digester digest.Digester

	// Events receives match events. Optional.
	Events *events.Broadcaster

	// Debounce coalesces bursts of writes to one file. Zero uses
	// DefaultDebounce.
	Debounce time.Duration
}

// Stats contains watcher counters.
type Stats struct {
	Dirs       int64
	Digested   int64
	Matches    int64
	NonMatches int64
	Skipped    int64
}

// Watcher watches the roots of a request for new and modified files.
type Watcher struct {
	id   string
	req  types.ScanRequest
	rec  scanner.Recorder
	opts Options
	log  *logging.Logger

	exclusions *filter.Exclusions
	extensions *filter.Extensions

	fsw    *fsnotify.Watcher
	mu     sync.Mutex
	paths  map[string]bool
	closed bool

	// pending maps a path to the time of its last event.
	pending map[string]time.Time

	digested   atomic.Int64
	matches    atomic.Int64
	nonMatches atomic.Int64
	skipped    atomic.Int64
}

// New validates req and creates a watcher. rec may be nil, in which case
// outcomes are not persisted.
func New(req types.ScanRequest, rec scanner.Recorder, opts Options) (*Watcher, error) {
	norm, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	if opts.Digester == nil {
		opts.Digester = digest.NewSHA256(digest.DefaultChunkSize)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		id:         uuid.New().String(),
		req:        norm,
		rec:        rec,
		opts:       opts,
		exclusions: filter.NewExclusions(norm.Exclude...),
		extensions: filter.NewExtensions(norm.Extensions...),
		fsw:        fsw,
		paths:      make(map[string]bool),
		pending:    make(map[string]time.Time),
	}
	w.log = logging.Get("watcher").With("watch", w.id[:8])
	return w, nil
}

// ID returns the identifier carried on published events.
func (w *Watcher) ID() string { return w.id }

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	dirs := int64(len(w.paths))
	w.mu.Unlock()

	return Stats{
		Dirs:       dirs,
		Digested:   w.digested.Load(),
		Matches:    w.matches.Load(),
		NonMatches: w.nonMatches.Load(),
		Skipped:    w.skipped.Load(),
	}
}

// Run watches every root of the request until ctx is cancelled. It returns
// nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	for _, root := range w.req.Roots {
		if err := w.watchTree(root); err != nil {
			return err
		}
	}
	w.log.Info("watching", "roots", w.req.Roots, "dirs", w.Stats().Dirs)
	w.publish(events.Event{Type: events.EventStarted})
	defer w.publish(events.Event{Type: events.EventFinished, State: scanner.StateStopped.String()})

	tick := time.NewTicker(max(w.opts.Debounce/2, time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case now := <-tick.C:
			w.flush(ctx, now)
		}
	}
}

// Close releases the underlying watches.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.paths = make(map[string]bool)
	return w.fsw.Close()
}

// watchTree adds a watch to root and every directory below it that is not
// excluded. Symlinks are not followed.
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			return nil //nolint:nilerr // unreadable subtrees are skipped
		}
		if !d.IsDir() {
			return nil
		}
		if w.exclusions.ShouldExclude(path) {
			return filepath.SkipDir
		}
		if err := w.addWatch(path); err != nil && path == root {
			return err
		}
		return nil
	})
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("watcher closed")
	}
	if w.paths[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		w.log.Warn("failed to add watch", "path", path, "error", err)
		return err
	}
	w.paths[path] = true
	return nil
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		w.handleCreate(event.Name)
	case event.Has(fsnotify.Write):
		w.schedule(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.handleRemove(event.Name)
	}
}

func (w *Watcher) handleCreate(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		if w.exclusions.ShouldExclude(path) {
			return
		}
		// Files created before the watch was added produce no events of
		// their own, so the new subtree is swept as well.
		_ = filepath.WalkDir(path, func(sub string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil //nolint:nilerr // unreadable subtrees are skipped
			}
			if d.IsDir() {
				if w.exclusions.ShouldExclude(sub) {
					return filepath.SkipDir
				}
				_ = w.addWatch(sub)
				return nil
			}
			w.schedule(sub)
			return nil
		})
		return
	}
	w.schedule(path)
}

func (w *Watcher) handleRemove(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.pending, path)
	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.fsw.Remove(p)
			delete(w.paths, p)
		}
	}
}

// schedule queues path for hashing once it has been quiet for the debounce
// interval.
func (w *Watcher) schedule(path string) {
	if w.exclusions.ShouldExclude(path) || !w.extensions.Allows(filepath.Base(path)) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// flush hashes every pending path whose last event is older than the
// debounce interval.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	var due []string
	w.mu.Lock()
	for path, at := range w.pending {
		if now.Sub(at) >= w.opts.Debounce {
			due = append(due, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range due {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	if w.req.MinSize > 0 && info.Size() < w.req.MinSize {
		return
	}

	outcome, hash, _, err := scanner.Classify(w.opts.Digester, path, w.req.TargetHash)
	if err != nil {
		w.skipped.Add(1)
		w.log.Debug("skip", "path", path, "error", err)
		return
	}
	w.digested.Add(1)

	if outcome == types.OutcomeMatch {
		w.matches.Add(1)
		w.log.Info("match", "path", path)
		w.publish(events.Event{Type: events.EventMatch, Match: types.Match{Path: path, Hash: hash}})
	} else {
		w.nonMatches.Add(1)
	}

	if w.rec == nil {
		return
	}
	if err := scanner.Record(ctx, w.rec, outcome, path, hash); err != nil {
		w.log.Error("record failed", "path", path, "error", err)
		w.publish(events.Event{Type: events.EventError, Err: err})
	}
}

func (w *Watcher) publish(e events.Event) {
	if w.opts.Events == nil {
		return
	}
	st := w.Stats()
	e.ScanID = w.id
	e.Progress = types.ScanProgress{
		Digested:   st.Digested,
		Matches:    st.Matches,
		NonMatches: st.NonMatches,
		Skipped:    st.Skipped,
	}
	w.opts.Events.Publish(e)
}

func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
