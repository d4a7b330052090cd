// Package scanner searches directory trees for files whose content digest
// equals a target hash. One producer feeds a bounded job queue from the
// walker; a fixed pool of workers digests, classifies and records each file.
package scanner

import (
	"context"

	"github.com/jamesainslie/sift/pkg/sift/digest"
	"github.com/jamesainslie/sift/pkg/sift/events"
	"github.com/jamesainslie/sift/pkg/sift/tuner"
)

// Recorder persists classification outcomes. *cache.Cache implements it.
type Recorder interface {
	RecordMatch(ctx context.Context, path, hash, ext string) error
	RecordNonMatch(ctx context.Context, path, hash, ext string) error
}

// Options configures the scanner behavior.
type Options struct {
	// Workers is the number of digest workers. Zero sizes the pool from
	// the detected CPU count.
	Workers int

	// QueueSize bounds the job queue. The producer blocks when it is full.
	// Zero sizes it from available memory.
	QueueSize int

	// WalkWorkers is the number of traversal goroutines. Zero uses the
	// tuned default.
	WalkWorkers int

	// Digester computes file digests. Nil uses SHA-256 with the default
	// chunk size.
	Digester digest.Digester

	// Events receives started, match, finished and error events. Optional.
	Events *events.Broadcaster
}

// withDefaults fills zero fields from the tuner.
func (o Options) withDefaults() Options {
	if o.Workers <= 0 || o.QueueSize <= 0 || o.WalkWorkers <= 0 {
		tuned := tuner.Auto(o.Workers, o.QueueSize)
		if o.Workers <= 0 {
			o.Workers = tuned.HashWorkers
		}
		if o.QueueSize <= 0 {
			o.QueueSize = tuned.QueueSize
		}
		if o.WalkWorkers <= 0 {
			o.WalkWorkers = tuned.WalkWorkers
		}
	}
	o.Workers = max(o.Workers, 1)
	if o.Digester == nil {
		o.Digester = digest.NewSHA256(digest.DefaultChunkSize)
	}
	return o
}
