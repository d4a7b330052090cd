package report

import (
	"bytes"
	"encoding/json"
)

type jsonOutput struct {
	Records []Record  `json:"records"`
	Known   []Record  `json:"known,omitempty"`
	Stats   jsonStats `json:"stats"`
	Meta    jsonMeta  `json:"meta"`
}

type jsonStats struct {
	Submitted   int64  `json:"submitted"`
	Digested    int64  `json:"digested"`
	NonMatches  int64  `json:"non_matches"`
	Skipped     int64  `json:"skipped"`
	BytesHashed int64  `json:"bytes_hashed"`
	Duration    string `json:"duration,omitempty"`
}

type jsonMeta struct {
	ScanID      string   `json:"scan_id,omitempty"`
	Target      string   `json:"target"`
	Roots       []string `json:"roots,omitempty"`
	State       string   `json:"state,omitempty"`
	TotalFiles  int      `json:"total_files"`
	TotalSize   int64    `json:"total_size"`
	Warnings    []string `json:"warnings,omitempty"`
	Interrupted bool     `json:"interrupted"`
}

// JSONFormatter formats output as a single indented JSON document.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	records := r.Records
	if records == nil {
		records = []Record{}
	}

	out := jsonOutput{
		Records: records,
		Known:   r.Known,
		Stats: jsonStats{
			Submitted:   r.Stats.Submitted,
			Digested:    r.Stats.Digested,
			NonMatches:  r.Stats.NonMatches,
			Skipped:     r.Stats.Skipped,
			BytesHashed: r.Stats.BytesHashed,
		},
		Meta: jsonMeta{
			ScanID:      r.ScanID,
			Target:      r.Target,
			Roots:       r.Roots,
			State:       r.State,
			TotalFiles:  len(r.Records),
			TotalSize:   r.TotalSize(),
			Warnings:    r.Warnings,
			Interrupted: r.Interrupted,
		},
	}
	if r.Stats.Duration > 0 {
		out.Stats.Duration = r.Stats.Duration.String()
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// JSONLFormatter writes one compact JSON object per record, matches first.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	for _, rec := range r.All() {
		if err := encoder.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	Register("json", func() Formatter { return &JSONFormatter{} })
	Register("jsonl", func() Formatter { return &JSONLFormatter{} })
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*JSONLFormatter)(nil)
)
