package types

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SignatureFilter selects files by digital-signature status in reports.
// It is carried on the request and never gates hash comparison.
type SignatureFilter int

const (
	// SignatureAll disables the filter.
	SignatureAll SignatureFilter = iota
	// SignatureValid selects signed files with a valid signature.
	SignatureValid
	// SignatureInvalid selects signed files whose signature failed to verify.
	SignatureInvalid
	// SignatureUnknown selects files whose signature state could not be determined.
	SignatureUnknown
)

// String returns the filter name.
func (s SignatureFilter) String() string {
	switch s {
	case SignatureValid:
		return "valid"
	case SignatureInvalid:
		return "invalid"
	case SignatureUnknown:
		return "unknown"
	default:
		return "all"
	}
}

// ParseSignatureFilter converts a name to a SignatureFilter.
func ParseSignatureFilter(s string) (SignatureFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return SignatureAll, nil
	case "valid":
		return SignatureValid, nil
	case "invalid":
		return SignatureInvalid, nil
	case "unknown":
		return SignatureUnknown, nil
	default:
		return SignatureAll, fmt.Errorf("unknown signature filter %q (valid: all, valid, invalid, unknown)", s)
	}
}

// ScanRequest describes one search invocation. It is created once and treated
// as immutable; Normalize returns a validated copy rather than editing in place.
type ScanRequest struct {
	// Roots are the directories to search, walked in order.
	Roots []string `json:"roots"`

	// TargetHash is the lowercase hex SHA-256 digest to look for.
	TargetHash string `json:"target_hash"`

	// Extensions is the allow-list. Empty, or containing "all", disables it.
	Extensions []string `json:"extensions,omitempty"`

	// Exclude lists directories whose subtrees are never entered.
	Exclude []string `json:"exclude,omitempty"`

	// MinSize is the minimum file size in bytes. Zero disables the filter.
	MinSize int64 `json:"min_size,omitempty"`

	// MaxAgeDays limits reported matches to files modified within this many
	// days. Zero disables it. Not used during scanning.
	MaxAgeDays int `json:"max_age_days,omitempty"`

	// Signature is the reporting signature filter. Not used during scanning.
	Signature SignatureFilter `json:"signature,omitempty"`
}

// ValidateHash checks that hash is a 64 character lowercase hex string.
func ValidateHash(hash string) error {
	if len(hash) != HashLength {
		return &ValidationError{Field: "hash", Value: hash, Err: ErrInvalidHash}
	}
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return &ValidationError{Field: "hash", Value: hash, Err: ErrInvalidHash}
		}
	}
	return nil
}

// ExpandHome replaces a leading ~ in path with the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// absPath expands ~ and makes path absolute and clean.
func absPath(path string) (string, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// Normalize validates the request and returns a copy with absolute, cleaned
// roots and exclusions, with ~ expanded. Roots must exist and be directories.
func (r ScanRequest) Normalize() (ScanRequest, error) {
	if err := ValidateHash(r.TargetHash); err != nil {
		return ScanRequest{}, err
	}
	if len(r.Roots) == 0 {
		return ScanRequest{}, &ValidationError{Field: "roots", Err: ErrNoRoots}
	}
	if r.MinSize < 0 {
		return ScanRequest{}, &ValidationError{Field: "min_size", Value: fmt.Sprint(r.MinSize), Err: ErrNegativeSize}
	}
	if r.MaxAgeDays < 0 {
		return ScanRequest{}, &ValidationError{
			Field: "max_age_days",
			Value: fmt.Sprint(r.MaxAgeDays),
			Err:   fmt.Errorf("must not be negative"),
		}
	}

	out := r
	out.Roots = make([]string, 0, len(r.Roots))
	for _, root := range r.Roots {
		abs, err := absPath(root)
		if err != nil {
			return ScanRequest{}, &ValidationError{Field: "root", Value: root, Err: err}
		}
		info, err := os.Stat(abs)
		if err != nil {
			return ScanRequest{}, &ValidationError{Field: "root", Value: root, Err: ErrRootNotFound}
		}
		if !info.IsDir() {
			return ScanRequest{}, &ValidationError{Field: "root", Value: root, Err: ErrRootNotDir}
		}
		out.Roots = append(out.Roots, abs)
	}

	out.Exclude = make([]string, 0, len(r.Exclude))
	for _, ex := range r.Exclude {
		if strings.TrimSpace(ex) == "" {
			continue
		}
		abs, err := absPath(strings.TrimSpace(ex))
		if err != nil {
			return ScanRequest{}, &ValidationError{Field: "exclude", Value: ex, Err: err}
		}
		out.Exclude = append(out.Exclude, abs)
	}

	out.Extensions = slices.Clone(r.Extensions)
	return out, nil
}
