// Package manifest keeps a history of sift operations as JSON files, one
// entry per file, in a directory under the data dir.
package manifest

import (
	"time"

	"github.com/jamesainslie/sift/pkg/sift/scanner"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

// OperationType represents the type of operation.
type OperationType string

const (
	// OpScan is a full disk scan.
	OpScan OperationType = "scan"
	// OpSmart is a smart lookup answered from the cache.
	OpSmart OperationType = "smart"
	// OpDelete is a cache record deletion.
	OpDelete OperationType = "delete"
	// OpClear is a cache clear.
	OpClear OperationType = "clear"
)

// Entry represents a single history entry.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Operation OperationType `json:"operation"`
	ScanID    string        `json:"scan_id,omitempty"`
	Target    string        `json:"target,omitempty"`
	Roots     []string      `json:"roots,omitempty"`
	State     string        `json:"state,omitempty"`
	Matches   []string      `json:"matches,omitempty"`
	Counts    Counts        `json:"counts"`
	Duration  string        `json:"duration,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Counts contains the operation counters.
type Counts struct {
	Submitted   int64 `json:"submitted,omitempty"`
	Digested    int64 `json:"digested,omitempty"`
	Matches     int64 `json:"matches"`
	NonMatches  int64 `json:"non_matches,omitempty"`
	Skipped     int64 `json:"skipped,omitempty"`
	BytesHashed int64 `json:"bytes_hashed,omitempty"`
	Known       int64 `json:"known,omitempty"`
	Removed     int64 `json:"removed,omitempty"`
}

// FromSummary builds a scan entry from a finished scan.
func FromSummary(s scanner.Summary) Entry {
	e := Entry{
		Operation: OpScan,
		ScanID:    s.ScanID,
		Target:    s.Request.TargetHash,
		Roots:     s.Request.Roots,
		State:     s.StateName,
		Counts: Counts{
			Submitted:   s.Progress.Submitted,
			Digested:    s.Progress.Digested,
			Matches:     s.Progress.Matches,
			NonMatches:  s.Progress.NonMatches,
			Skipped:     s.Progress.Skipped,
			BytesHashed: s.Progress.BytesHashed,
		},
	}
	for _, m := range s.Matches {
		e.Matches = append(e.Matches, m.Path)
	}
	if d := s.Elapsed(); d > 0 {
		e.Duration = d.String()
	}
	if s.Err != nil {
		e.Error = s.Err.Error()
	}
	return e
}

// FromLookup builds a smart entry for a lookup answered from the cache.
func FromLookup(target string, roots []string, known []types.FileRecord) Entry {
	e := Entry{
		Operation: OpSmart,
		Target:    target,
		Roots:     roots,
		Counts:    Counts{Known: int64(len(known))},
	}
	for _, r := range known {
		e.Matches = append(e.Matches, r.Path)
	}
	return e
}
