// Package smart answers a search from the scan cache before any disk scan.
//
// A lookup consults the non-match partition for records carrying the target
// hash. When some exist they are returned without touching the disk; when
// none exist the caller decides whether to escalate to a full scan.
package smart

import (
	"context"

	"github.com/jamesainslie/sift/pkg/sift/logging"
	"github.com/jamesainslie/sift/pkg/sift/scanner"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

// Cache is the subset of the scan cache used by smart lookups and by the
// scanner they escalate to. *cache.Cache implements it.
type Cache interface {
	scanner.Recorder
	LookupByHash(ctx context.Context, hash string) ([]types.FileRecord, error)
	LookupNonMatchByHash(ctx context.Context, hash string) ([]types.FileRecord, error)
}

// Options configures a Lookup.
type Options struct {
	// IncludeHistory adds records from both partitions to Result.History.
	IncludeHistory bool
}

// Result is the outcome of a smart lookup.
type Result struct {
	// TargetHash is the hash that was looked up.
	TargetHash string `json:"target_hash"`

	// Known lists non-match records carrying the target hash, newest first.
	// These are files the cache has seen with that digest; they are
	// reported for information only.
	Known []types.FileRecord `json:"known"`

	// History lists records from both partitions when requested.
	History []types.FileRecord `json:"history,omitempty"`

	// NeedsFullScan is true when the cache had nothing for the hash.
	NeedsFullScan bool `json:"needs_full_scan"`
}

// Lookup performs cache lookups on behalf of one caller.
type Lookup struct {
	cache Cache
	opts  Options
	log   *logging.Logger
}

// New creates a Lookup over cache.
func New(cache Cache, opts Options) *Lookup {
	return &Lookup{
		cache: cache,
		opts:  opts,
		log:   logging.Get("smart"),
	}
}

// Lookup validates the target hash and consults the cache. It never reads
// files under the request roots.
func (l *Lookup) Lookup(ctx context.Context, req types.ScanRequest) (*Result, error) {
	if err := types.ValidateHash(req.TargetHash); err != nil {
		return nil, err
	}

	known, err := l.cache.LookupNonMatchByHash(ctx, req.TargetHash)
	if err != nil {
		return nil, err
	}

	res := &Result{
		TargetHash:    req.TargetHash,
		Known:         known,
		NeedsFullScan: len(known) == 0,
	}

	if l.opts.IncludeHistory {
		if res.History, err = l.cache.LookupByHash(ctx, req.TargetHash); err != nil {
			return nil, err
		}
	}

	l.log.Info("smart lookup",
		"hash", req.TargetHash[:12],
		"known", len(res.Known),
		"history", len(res.History),
		"needs_full_scan", res.NeedsFullScan,
	)
	return res, nil
}

// Escalate builds a full scanner over the request roots, recording into the
// same cache. The scanner is not started.
func (l *Lookup) Escalate(req types.ScanRequest, opts scanner.Options) (*scanner.Scanner, error) {
	s, err := scanner.New(req, l.cache, opts)
	if err != nil {
		return nil, err
	}
	l.log.Info("escalating to full scan", "scan", s.ID(), "roots", s.Request().Roots)
	return s, nil
}
