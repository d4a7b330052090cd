// Package walker enumerates candidate files under one or more roots.
//
// Traversal is delegated to fastwalk. Excluded directories are pruned before
// they are opened, symbolic links are never followed and I/O errors end only
// the affected subtree. Paths are delivered lazily over a channel so that a
// slow consumer applies backpressure to the traversal.
package walker

import (
	"context"
	"errors"
	"io/fs"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/sift/pkg/sift/filter"
	"github.com/jamesainslie/sift/pkg/sift/logging"
)

// Options configures a Walker.
type Options struct {
	// Exclusions prunes directories. Nil excludes nothing.
	Exclusions *filter.Exclusions

	// Extensions is the file extension allow-list. Nil allows every file.
	Extensions *filter.Extensions

	// MinSize is the minimum file size in bytes. Zero disables the check.
	MinSize int64

	// QueueSize is the buffer of the output channel. Zero means unbuffered.
	QueueSize int

	// Concurrency is the number of fastwalk traversal goroutines.
	// Zero uses the fastwalk default.
	Concurrency int
}

// Stats counts what a walk visited.
type Stats struct {
	Dirs    int64 `json:"dirs"`
	Pruned  int64 `json:"pruned"`
	Yielded int64 `json:"yielded"`
	Skipped int64 `json:"skipped"`
	Errors  int64 `json:"errors"`
}

// Walker produces candidate file paths. A Walker runs one walk at a time;
// counters are reset when Walk is called.
type Walker struct {
	opts Options

	dirs    atomic.Int64
	pruned  atomic.Int64
	yielded atomic.Int64
	skipped atomic.Int64
	errs    atomic.Int64
}

// New creates a Walker with the given options.
func New(opts Options) *Walker {
	if opts.MinSize < 0 {
		opts.MinSize = 0
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	return &Walker{opts: opts}
}

// Stats returns a snapshot of the counters of the current or last walk.
func (w *Walker) Stats() Stats {
	return Stats{
		Dirs:    w.dirs.Load(),
		Pruned:  w.pruned.Load(),
		Yielded: w.yielded.Load(),
		Skipped: w.skipped.Load(),
		Errors:  w.errs.Load(),
	}
}

// Walk starts a fresh traversal of roots, in order, and returns a channel of
// qualifying file paths. The channel is closed when every root has been
// walked or ctx is cancelled. Cancellation is not reported as an error.
func (w *Walker) Walk(ctx context.Context, roots ...string) <-chan string {
	w.dirs.Store(0)
	w.pruned.Store(0)
	w.yielded.Store(0)
	w.skipped.Store(0)
	w.errs.Store(0)

	out := make(chan string, w.opts.QueueSize)
	go func() {
		defer close(out)
		for _, root := range roots {
			if ctx.Err() != nil {
				return
			}
			w.walkRoot(ctx, root, out)
		}
	}()
	return out
}

// walkRoot walks a single root, swallowing every error it encounters.
func (w *Walker) walkRoot(ctx context.Context, root string, out chan<- string) {
	log := logging.Get("walker")

	if w.opts.Exclusions.ShouldExclude(root) {
		w.pruned.Add(1)
		log.Debug("root excluded", "root", root)
		return
	}

	conf := fastwalk.Config{
		Follow:     false, // Don't follow symlinks.
		NumWorkers: w.opts.Concurrency,
	}

	err := fastwalk.Walk(&conf, root, w.callback(ctx, out))
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		w.errs.Add(1)
		log.Debug("walk ended early", "root", root, "error", err)
	}
}

// callback returns the fastwalk callback for one walk. fastwalk invokes it
// from several goroutines at once.
func (w *Walker) callback(ctx context.Context, out chan<- string) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		// A directory that cannot be read is reported here after its
		// callback already ran. Returning nil ends only that subtree.
		if err != nil {
			w.errs.Add(1)
			return nil
		}

		if d.IsDir() {
			if w.opts.Exclusions.ShouldExclude(path) {
				w.pruned.Add(1)
				return fastwalk.SkipDir
			}
			w.dirs.Add(1)
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if !w.admit(d) {
			w.skipped.Add(1)
			return nil
		}

		select {
		case out <- path:
			w.yielded.Add(1)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// admit applies the extension and minimum size filters to a regular file.
func (w *Walker) admit(d fs.DirEntry) bool {
	if !w.opts.Extensions.Allows(d.Name()) {
		return false
	}
	if w.opts.MinSize == 0 {
		return true
	}
	info, err := d.Info()
	if err != nil {
		return false
	}
	return info.Size() >= w.opts.MinSize
}
