package main

import (
	"testing"
	"time"

	"github.com/jamesainslie/sift/pkg/sift/filter"
)

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name           string
		flags          reportFlags
		maxAge         int
		wantLimit      int
		wantSortBy     filter.SortField
		wantDescending bool
		wantInclude    int
		wantExclude    int
		wantMaxAge     time.Duration
		wantErr        bool
	}{
		{
			name:       "defaults",
			flags:      reportFlags{sortBy: "path"},
			wantSortBy: filter.SortPath,
		},
		{
			name:           "limit and reverse size",
			flags:          reportFlags{limit: 10, sortBy: "size", reverse: true},
			wantLimit:      10,
			wantSortBy:     filter.SortSize,
			wantDescending: true,
		},
		{
			name:        "include and omit globs",
			flags:       reportFlags{include: "*.pdf, *.zip", omit: "*/tmp/*"},
			wantSortBy:  filter.SortPath,
			wantInclude: 2,
			wantExclude: 1,
		},
		{
			name:       "max age in days",
			flags:      reportFlags{sortBy: "age"},
			maxAge:     7,
			wantSortBy: filter.SortAge,
			wantMaxAge: 7 * filter.Day,
		},
		{
			name:    "invalid sort field",
			flags:   reportFlags{sortBy: "colour"},
			wantErr: true,
		},
		{
			name:    "negative max age",
			maxAge:  -1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := buildFilter(tt.flags, tt.maxAge)
			if tt.wantErr {
				if err == nil {
					t.Fatal("buildFilter() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildFilter() unexpected error: %v", err)
			}

			if f.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", f.Limit, tt.wantLimit)
			}
			if f.SortBy != tt.wantSortBy {
				t.Errorf("SortBy = %v, want %v", f.SortBy, tt.wantSortBy)
			}
			if f.SortDescending != tt.wantDescending {
				t.Errorf("SortDescending = %v, want %v", f.SortDescending, tt.wantDescending)
			}
			if len(f.Include) != tt.wantInclude {
				t.Errorf("Include = %v, want %d patterns", f.Include, tt.wantInclude)
			}
			if len(f.Exclude) != tt.wantExclude {
				t.Errorf("Exclude = %v, want %d patterns", f.Exclude, tt.wantExclude)
			}
			if f.MaxAge != tt.wantMaxAge {
				t.Errorf("MaxAge = %v, want %v", f.MaxAge, tt.wantMaxAge)
			}
		})
	}
}

func TestParseMaxAge(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"7", 7, false},
		{"2w", 14, false},
		{"36h", 2, false},
		{"1mo", 30, false},
		{"-3", 0, true},
		{"later", 0, true},
	}

	for _, tt := range tests {
		got, err := parseMaxAge(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMaxAge(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMaxAge(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestParseCommaSeparated(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ,, c ", []string{"a", "b", "c"}},
		{",,", []string{}},
	}

	for _, tt := range tests {
		got := parseCommaSeparated(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("parseCommaSeparated(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseCommaSeparated(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}
