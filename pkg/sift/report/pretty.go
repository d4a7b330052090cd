package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter renders a styled terminal report with lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	w.WriteString(f.formatTable(r.Records, "No matching files found"))
	if len(r.Known) > 0 {
		w.WriteString("\n")
		w.WriteString(LabelStyle.Render("Known non-matches with this hash:"))
		w.WriteString("\n")
		w.WriteString(f.formatTable(r.Known, ""))
	}

	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
		w.WriteString("\n")
		for _, warning := range r.Warnings {
			w.WriteString(WarningStyle.Render("  " + warning))
			w.WriteString("\n")
		}
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	lines := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Target:"), ValueStyle.Render(r.Target)),
	}
	if len(r.Roots) > 0 {
		lines = append(lines, fmt.Sprintf("%s %s",
			LabelStyle.Render("Roots:"), ValueStyle.Render(strings.Join(r.Roots, ", "))))
	}

	var info []string
	if r.State != "" {
		info = append(info, fmt.Sprintf("%s %s", LabelStyle.Render("State:"), ValueStyle.Render(r.State)))
	}
	if r.Stats.Digested > 0 || r.Stats.Duration > 0 {
		info = append(info, fmt.Sprintf("%s %s", LabelStyle.Render("Hashed:"),
			ValueStyle.Render(fmt.Sprintf("%d files (%s) in %s",
				r.Stats.Digested,
				humanize.IBytes(uint64(r.Stats.BytesHashed)),
				formatDuration(r.Stats.Duration)))))
	}
	if len(info) > 0 {
		lines = append(lines, strings.Join(info, "  "))
	}

	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Scan stopped before completion"))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(records []Record, empty string) string {
	if len(records) == 0 {
		if empty == "" {
			return ""
		}
		return MutedStyle.Render("  "+empty) + "\n"
	}

	sizeWidth := 8
	statusWidth := len(StatusAvailable)
	for _, rec := range records {
		sizeWidth = max(sizeWidth, len(rec.SizeHuman))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
		TableHeaderStyle.Render(padRight("STATUS", statusWidth)),
		TableHeaderStyle.Render(padLeft("SIZE", sizeWidth)),
		TableHeaderStyle.Render(padLeft("AGE", 7)),
		TableHeaderStyle.Render("PATH"),
	)
	for _, rec := range records {
		fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
			StatusStyle(rec.Status).Render(padRight(string(rec.Status), statusWidth)),
			SizeStyle.Render(padLeft(rec.SizeHuman, sizeWidth)),
			MutedStyle.Render(padLeft(formatAge(rec), 7)),
			PathStyle.Render(rec.Path),
		)
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Matches:"), ValueStyle.Render(fmt.Sprintf("%d", len(r.Records)))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Total:"), SizeStyle.Render(humanize.IBytes(uint64(r.TotalSize())))),
	}
	if r.Stats.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%s %s",
			LabelStyle.Render("Skipped:"), WarningStyle.Render(fmt.Sprintf("%d", r.Stats.Skipped))))
	}
	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))
	return FooterBox.Render(strings.Join(parts, "  "))
}

func formatAge(rec Record) string {
	if rec.Status == StatusDeleted {
		return "-"
	}
	return fmt.Sprintf("%.1fd", rec.AgeDays)
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
