package filter

import (
	"path/filepath"
	"strings"

	"github.com/jamesainslie/sift/pkg/sift/types"
)

// Exclusions decides whether a directory is pruned from traversal.
// The set is snapshotted at construction; later changes to the caller's slice
// do not affect it.
type Exclusions struct {
	paths []string
}

// NewExclusions builds an exclusion set from the given paths. Each entry is
// made absolute and cleaned. Empty entries are ignored.
func NewExclusions(paths ...string) *Exclusions {
	e := &Exclusions{paths: make([]string, 0, len(paths))}
	for _, p := range paths {
		if n := normalize(p); n != "" {
			e.paths = append(e.paths, n)
		}
	}
	return e
}

// Len returns the number of entries in the set.
func (e *Exclusions) Len() int {
	if e == nil {
		return 0
	}
	return len(e.paths)
}

// Paths returns a copy of the normalized entries.
func (e *Exclusions) Paths() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.paths))
	copy(out, e.paths)
	return out
}

// ShouldExclude reports whether path equals, or is nested under, an entry.
// The test is on whole path components: /data/secret excludes
// /data/secret/x but not /data/secrets.
func (e *Exclusions) ShouldExclude(path string) bool {
	if e == nil || len(e.paths) == 0 {
		return false
	}
	candidate := normalize(path)
	if candidate == "" {
		return false
	}
	for _, ex := range e.paths {
		if isWithin(candidate, ex) {
			return true
		}
	}
	return false
}

// isWithin reports whether path is parent or a descendant of parent.
func isWithin(path, parent string) bool {
	if path == parent {
		return true
	}
	sep := string(filepath.Separator)
	if strings.HasSuffix(parent, sep) {
		// Root directory ("/") already ends in a separator.
		return strings.HasPrefix(path, parent)
	}
	return len(path) > len(parent) && path[:len(parent)+1] == parent+sep
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if expanded, err := types.ExpandHome(p); err == nil {
		p = expanded
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}
