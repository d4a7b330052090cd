package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
)

var columns = []string{"NAME", "PATH", "HASH", "STATUS", "SIZE", "EXT", "CREATED", "MODIFIED", "AGE_DAYS", "SOURCE"}

func row(rec Record) []string {
	return []string{
		rec.Name,
		rec.Path,
		rec.Hash,
		string(rec.Status),
		rec.SizeHuman,
		rec.Ext,
		formatTime(rec.Created),
		formatTime(rec.Modified),
		fmt.Sprintf("%.1f", rec.AgeDays),
		string(rec.Source),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// PlainFormatter writes one unstyled line per record: status, size and path.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, rec := range r.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Source, rec.Status, rec.SizeHuman, rec.Path)
	}
	return nil
}

// TSVFormatter formats output as tab-separated values with a header row.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(strings.Join(columns, "\t"))
	w.WriteByte('\n')
	for _, rec := range r.All() {
		w.WriteString(strings.Join(row(rec), "\t"))
		w.WriteByte('\n')
	}
	return nil
}

// CSVFormatter formats output as RFC 4180 comma-separated values.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return err
	}
	for _, rec := range r.All() {
		if err := writer.Write(row(rec)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// MarkdownFormatter formats output as a GitHub-flavored Markdown table.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	w.WriteString(strings.Repeat("|---", len(columns)) + "|\n")
	for _, rec := range r.All() {
		cells := row(rec)
		for i, c := range cells {
			cells[i] = escapeMarkdownPipe(c)
		}
		w.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return nil
}

func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// PathsFormatter writes one matching path per line, for piping to other tools.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, rec := range r.Records {
		w.WriteString(rec.Path)
		w.WriteByte('\n')
	}
	return nil
}

// NullFormatter writes matching paths separated by NUL bytes, for xargs -0.
type NullFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *NullFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, rec := range r.Records {
		w.WriteString(rec.Path)
		w.WriteByte(0)
	}
	return nil
}

func init() {
	Register("plain", func() Formatter { return &PlainFormatter{} })
	Register("tsv", func() Formatter { return &TSVFormatter{} })
	Register("csv", func() Formatter { return &CSVFormatter{} })
	Register("markdown", func() Formatter { return &MarkdownFormatter{} })
	Register("paths", func() Formatter { return &PathsFormatter{} })
	Register("null", func() Formatter { return &NullFormatter{} })
}

var (
	_ Formatter = (*PlainFormatter)(nil)
	_ Formatter = (*TSVFormatter)(nil)
	_ Formatter = (*CSVFormatter)(nil)
	_ Formatter = (*MarkdownFormatter)(nil)
	_ Formatter = (*PathsFormatter)(nil)
	_ Formatter = (*NullFormatter)(nil)
)
