package smart

import (
	"context"
	"fmt"
	"strings"

	"github.com/jamesainslie/sift/pkg/sift/scanner"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

// Fallback is the escalation policy applied when a lookup misses.
type Fallback int

const (
	// FallbackAsk asks the caller before scanning.
	FallbackAsk Fallback = iota
	// FallbackAlways scans without asking.
	FallbackAlways
	// FallbackNever reports the miss and stops.
	FallbackNever
)

// String returns the policy name.
func (f Fallback) String() string {
	switch f {
	case FallbackAlways:
		return "always"
	case FallbackNever:
		return "never"
	default:
		return "ask"
	}
}

// ParseFallback converts a policy name to a Fallback.
func ParseFallback(s string) (Fallback, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ask":
		return FallbackAsk, nil
	case "always", "yes":
		return FallbackAlways, nil
	case "never", "no":
		return FallbackNever, nil
	default:
		return FallbackAsk, fmt.Errorf("invalid fallback %q (valid: ask, always, never)", s)
	}
}

// Search looks req up and, on a miss, escalates according to policy. confirm
// is consulted only for FallbackAsk; a nil confirm declines. The returned
// scanner is nil unless a scan was started.
func (l *Lookup) Search(
	ctx context.Context,
	req types.ScanRequest,
	policy Fallback,
	confirm func(*Result) bool,
	opts scanner.Options,
) (*Result, *scanner.Scanner, error) {
	res, err := l.Lookup(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if !res.NeedsFullScan {
		return res, nil, nil
	}

	switch policy {
	case FallbackNever:
		return res, nil, nil
	case FallbackAsk:
		if confirm == nil || !confirm(res) {
			l.log.Debug("full scan declined")
			return res, nil, nil
		}
	}

	s, err := l.Escalate(req, opts)
	if err != nil {
		return res, nil, err
	}
	if err := s.Start(ctx); err != nil {
		return res, nil, err
	}
	return res, s, nil
}
