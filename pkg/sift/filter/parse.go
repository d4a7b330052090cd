package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration constants.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day  // Approximate
	Year  = 365 * Day // Approximate
)

// SortField specifies the field to sort files by.
type SortField int

const (
	// SortPath sorts files by path alphabetically.
	SortPath SortField = iota
	// SortSize sorts files by size in bytes.
	SortSize
	// SortAge sorts files by modification time.
	SortAge
)

// String returns the string representation of the sort field.
func (s SortField) String() string {
	switch s {
	case SortSize:
		return "size"
	case SortAge:
		return "age"
	default:
		return "path"
	}
}

// ErrInvalidSortField indicates that the sort field string could not be parsed.
var ErrInvalidSortField = errors.New("invalid sort field")

// ParseSortField parses "path", "size" or "age" (case-insensitive).
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "path":
		return SortPath, nil
	case "size":
		return SortSize, nil
	case "age":
		return SortAge, nil
	default:
		return SortPath, fmt.Errorf("%w: %q", ErrInvalidSortField, s)
	}
}

// ErrInvalidDuration indicates that the duration string could not be parsed.
var ErrInvalidDuration = errors.New("invalid duration format")

// ErrNegativeValue indicates that a negative value was provided.
var ErrNegativeValue = errors.New("value cannot be negative")

var durationPattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*(d|w|mo|y)?\s*$`)

// ParseDuration parses an age such as "30", "30d", "2w", "1mo", "1y" or a Go
// duration like "36h". A bare number is a count of days.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidDuration)
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeValue
	}

	matches := durationPattern.FindStringSubmatch(s)
	if matches == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		return d, nil
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	multiplier := Day
	switch strings.ToLower(matches[2]) {
	case "w":
		multiplier = Week
	case "mo":
		multiplier = Month
	case "y":
		multiplier = Year
	}

	return time.Duration(value * float64(multiplier)), nil
}
