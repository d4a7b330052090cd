// Package filter provides the path and extension predicates used while
// walking, and the filtering, sorting and limiting applied to reported
// matches.
package filter

import (
	"cmp"
	"slices"
	"time"

	"github.com/gobwas/glob"
)

// FileInfo is the subset of file metadata that report filters act on.
type FileInfo struct {
	Path    string
	Name    string
	Ext     string
	Size    int64
	ModTime time.Time
}

// Filter narrows, orders and limits a list of reported files.
type Filter struct {
	// Include contains glob patterns. If non-empty, files must match at least one.
	Include []string

	// Exclude contains glob patterns. Matching files are dropped.
	Exclude []string

	// MaxAge drops files modified longer ago than this. Zero disables it.
	MaxAge time.Duration

	// SortBy specifies the field to sort results by.
	SortBy SortField

	// SortDescending reverses the sort order.
	SortDescending bool

	// Limit is the maximum number of files to return. 0 means unlimited.
	Limit int

	include []glob.Glob
	exclude []glob.Glob
	now     func() time.Time
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// New creates a Filter. By default nothing is dropped and results are sorted
// by path ascending with no limit.
func New(opts ...Option) *Filter {
	f := &Filter{
		SortBy: SortPath,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.include = compileAll(f.Include)
	f.exclude = compileAll(f.Exclude)
	return f
}

// WithLimit sets the maximum number of files to return.
func WithLimit(limit int) Option {
	return func(f *Filter) {
		if limit < 0 {
			limit = 0
		}
		f.Limit = limit
	}
}

// WithInclude sets the include glob patterns.
func WithInclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Include = patterns
	}
}

// WithExclude sets the exclude glob patterns.
func WithExclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Exclude = patterns
	}
}

// WithMaxAge drops files last modified more than d ago.
func WithMaxAge(d time.Duration) Option {
	return func(f *Filter) {
		if d < 0 {
			d = 0
		}
		f.MaxAge = d
	}
}

// WithMaxAgeDays is WithMaxAge expressed in whole days.
func WithMaxAgeDays(days int) Option {
	return WithMaxAge(time.Duration(days) * Day)
}

// WithSortBy sets the field to sort results by.
func WithSortBy(field SortField) Option {
	return func(f *Filter) {
		f.SortBy = field
	}
}

// WithSortDescending sets whether to sort in descending order.
func WithSortDescending(desc bool) Option {
	return func(f *Filter) {
		f.SortDescending = desc
	}
}

// withClock overrides the time source used for age checks.
func withClock(now func() time.Time) Option {
	return func(f *Filter) {
		f.now = now
	}
}

// Match returns true if the file passes the age and pattern criteria.
func (f *Filter) Match(fi FileInfo) bool {
	if f.MaxAge > 0 && !fi.ModTime.IsZero() && fi.ModTime.Before(f.now().Add(-f.MaxAge)) {
		return false
	}
	if matchesAny(fi.Path, f.exclude) {
		return false
	}
	if len(f.include) > 0 && !matchesAny(fi.Path, f.include) {
		return false
	}
	return true
}

// Sort returns a sorted copy of files. The input is not modified.
func (f *Filter) Sort(files []FileInfo) []FileInfo {
	sorted := slices.Clone(files)
	if sorted == nil {
		sorted = []FileInfo{}
	}

	slices.SortStableFunc(sorted, func(a, b FileInfo) int {
		var result int
		switch f.SortBy {
		case SortSize:
			result = cmp.Compare(a.Size, b.Size)
		case SortAge:
			// Older files have the larger age.
			result = -a.ModTime.Compare(b.ModTime)
		default:
			result = cmp.Compare(a.Path, b.Path)
		}
		if f.SortDescending {
			return -result
		}
		return result
	})

	return sorted
}

// Apply runs Match, Sort and Limit in that order.
func (f *Filter) Apply(files []FileInfo) []FileInfo {
	var matched []FileInfo
	for _, fi := range files {
		if f.Match(fi) {
			matched = append(matched, fi)
		}
	}

	sorted := f.Sort(matched)
	if f.Limit > 0 && len(sorted) > f.Limit {
		return sorted[:f.Limit]
	}
	return sorted
}

func compileAll(patterns []string) []glob.Glob {
	var out []glob.Glob
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			continue // Skip invalid patterns
		}
		out = append(out, g)
	}
	return out
}

func matchesAny(path string, globs []glob.Glob) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}
