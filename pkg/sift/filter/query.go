package filter

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Query is a free-text record filter. A pattern with glob metacharacters
// must match a whole field; any other pattern is a case-insensitive
// substring. The empty query matches everything.
type Query struct {
	text string
	glob glob.Glob
}

// NewQuery compiles pattern.
func NewQuery(pattern string) (*Query, error) {
	pattern = strings.TrimSpace(pattern)
	q := &Query{}
	if pattern == "" {
		return q, nil
	}
	if strings.ContainsAny(pattern, "*?[{") {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		q.glob = g
		return q, nil
	}
	q.text = strings.ToLower(pattern)
	return q, nil
}

// Match reports whether any of fields matches.
func (q *Query) Match(fields ...string) bool {
	if q == nil || (q.glob == nil && q.text == "") {
		return true
	}
	for _, f := range fields {
		if q.glob != nil {
			if q.glob.Match(f) {
				return true
			}
			continue
		}
		if strings.Contains(strings.ToLower(f), q.text) {
			return true
		}
	}
	return false
}
