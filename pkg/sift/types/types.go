// Package types provides the core data types for sift.
// It includes the immutable scan request, persisted file records, scan outcomes
// and progress snapshots, along with helpers for parsing and formatting sizes.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// HashLength is the length of a hex-encoded SHA-256 digest.
const HashLength = 64

// Partition identifies one half of the scan cache.
type Partition string

const (
	// PartitionMatches holds files whose digest equalled the target of the scan
	// that recorded them.
	PartitionMatches Partition = "matches"

	// PartitionNonMatches holds files that were hashed and found not to match.
	PartitionNonMatches Partition = "non_matches"
)

// Partitions lists both partitions in lookup order.
var Partitions = []Partition{PartitionMatches, PartitionNonMatches}

// ParsePartition converts a user supplied name to a Partition.
func ParsePartition(s string) (Partition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "matches", "match", "history", "search_history":
		return PartitionMatches, nil
	case "non_matches", "non-matches", "nonmatches", "non_matching_hashes":
		return PartitionNonMatches, nil
	default:
		return "", fmt.Errorf("unknown partition %q (valid: matches, non-matches)", s)
	}
}

// FileRecord is a single persisted classification outcome.
type FileRecord struct {
	// ID is assigned by the store on first insert and never reused.
	ID int64 `json:"id"`

	// Path is the absolute path of the file. Unique within a partition.
	Path string `json:"path"`

	// Hash is the lowercase hex digest computed when the record was written.
	Hash string `json:"hash"`

	// Extension is the lowercased extension including the leading dot.
	Extension string `json:"extension"`

	// RecordedAt is when the record was first written.
	RecordedAt time.Time `json:"recorded_at"`

	// Partition is the partition the record was read from.
	Partition Partition `json:"partition"`
}

// Outcome is the classification of one unit of work.
type Outcome int

const (
	// OutcomeSkip means the file could not be digested. No record is written.
	OutcomeSkip Outcome = iota
	// OutcomeMatch means the digest equalled the target.
	OutcomeMatch
	// OutcomeNonMatch means the digest differed from the target.
	OutcomeNonMatch
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "match"
	case OutcomeNonMatch:
		return "non-match"
	default:
		return "skip"
	}
}

// Match is a file whose digest equals the target hash.
type Match struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// ScanProgress is a point-in-time snapshot of a running scan.
type ScanProgress struct {
	// Submitted is the number of paths handed to the worker pool.
	Submitted int64 `json:"submitted"`

	// Digested is the number of files hashed successfully.
	Digested int64 `json:"digested"`

	// Matches is the number of files matching the target so far.
	Matches int64 `json:"matches"`

	// NonMatches is the number of files hashed that did not match.
	NonMatches int64 `json:"non_matches"`

	// Skipped is the number of files that could not be read.
	Skipped int64 `json:"skipped"`

	// BytesHashed is the total size of files digested so far.
	BytesHashed int64 `json:"bytes_hashed"`

	// WalkComplete indicates that traversal has finished.
	WalkComplete bool `json:"walk_complete,omitempty"`
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// Plain byte counts ("1024") and K, M, G, T suffixes with optional B or iB are
// accepted, case-insensitively. Decimal values are truncated to the nearest byte.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string using IEC units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
