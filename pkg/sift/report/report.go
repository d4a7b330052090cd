// Package report turns scan outcomes into report records and renders them
// in various output formats (pretty, plain, json, yaml, etc.).
//
// Formatters are registered by name and selected at runtime:
//
//	formatter, err := report.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package report

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Stats contains the counters of the scan behind a report.
type Stats struct {
	Submitted   int64         `json:"submitted" yaml:"submitted"`
	Digested    int64         `json:"digested" yaml:"digested"`
	NonMatches  int64         `json:"non_matches" yaml:"non_matches"`
	Skipped     int64         `json:"skipped" yaml:"skipped"`
	BytesHashed int64         `json:"bytes_hashed" yaml:"bytes_hashed"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// Result contains the complete output data for formatting.
type Result struct {
	// ScanID identifies the scan, empty for pure cache lookups.
	ScanID string `json:"scan_id,omitempty" yaml:"scan_id,omitempty"`

	// Target is the hash that was searched for.
	Target string `json:"target" yaml:"target"`

	// Roots are the searched directories.
	Roots []string `json:"roots,omitempty" yaml:"roots,omitempty"`

	// State is the terminal scan state, empty for pure cache lookups.
	State string `json:"state,omitempty" yaml:"state,omitempty"`

	// Records are the matches.
	Records []Record `json:"records" yaml:"records"`

	// Known are cached non-match records carrying the target hash.
	Known []Record `json:"known,omitempty" yaml:"known,omitempty"`

	// Stats contains scan counters.
	Stats Stats `json:"stats" yaml:"stats"`

	// Warnings contains any warning messages generated during the scan.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Interrupted indicates the scan was stopped before completing.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`
}

// TotalSize returns the sum of all record sizes.
func (r *Result) TotalSize() int64 {
	var total int64
	for _, rec := range r.Records {
		total += rec.Size
	}
	return total
}

// All returns the matches followed by the known records.
func (r *Result) All() []Record {
	out := make([]Record, 0, len(r.Records)+len(r.Known))
	out = append(out, r.Records...)
	return append(out, r.Known...)
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry, replacing any existing
// formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
