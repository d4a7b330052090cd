package report

import (
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/sift/pkg/sift/filter"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

// Status tells whether a reported file still exists.
type Status string

const (
	StatusAvailable Status = "Available"
	StatusDeleted   Status = "Deleted"
)

// Source tells how a record was obtained.
type Source string

const (
	// SourceNormal is a match found by a disk scan.
	SourceNormal Source = "Normal"
	// SourceSmart is a match answered from the cache.
	SourceSmart Source = "Smart"
	// SourceNonMatch is a cached non-match record.
	SourceNonMatch Source = "NonMatch"
)

// Record is one reported file.
type Record struct {
	Name      string    `json:"name" yaml:"name"`
	Path      string    `json:"path" yaml:"path"`
	Hash      string    `json:"hash" yaml:"hash"`
	Status    Status    `json:"status" yaml:"status"`
	Size      int64     `json:"size" yaml:"size"`
	SizeHuman string    `json:"size_human" yaml:"size_human"`
	Ext       string    `json:"ext,omitempty" yaml:"ext,omitempty"`
	Created   time.Time `json:"created,omitzero" yaml:"created,omitempty"`
	Modified  time.Time `json:"modified,omitzero" yaml:"modified,omitempty"`
	AgeDays   float64   `json:"age_days" yaml:"age_days"`
	Source    Source    `json:"source" yaml:"source"`
}

// Build stats path and returns its report record. A file that no longer
// exists is reported as Deleted with zero size and times.
func Build(path, hash string, src Source, now time.Time) Record {
	rec := Record{
		Name:      filepath.Base(path),
		Path:      path,
		Hash:      hash,
		Status:    StatusDeleted,
		SizeHuman: types.FormatSize(0),
		Ext:       filter.Ext(path),
		Source:    src,
	}

	info, err := os.Stat(path)
	if err != nil {
		return rec
	}

	rec.Status = StatusAvailable
	rec.Size = info.Size()
	rec.SizeHuman = types.FormatSize(rec.Size)
	rec.Modified = info.ModTime()
	rec.Created = birthTime(path, info)
	rec.AgeDays = now.Sub(rec.Modified).Hours() / 24
	return rec
}

// FromMatches builds records for scan matches.
func FromMatches(matches []types.Match, src Source, now time.Time) []Record {
	out := make([]Record, 0, len(matches))
	for _, m := range matches {
		out = append(out, Build(m.Path, m.Hash, src, now))
	}
	return out
}

// FromFileRecords builds records for cache records. The source is derived
// from the partition when src is empty.
func FromFileRecords(recs []types.FileRecord, src Source, now time.Time) []Record {
	out := make([]Record, 0, len(recs))
	for _, fr := range recs {
		s := src
		if s == "" {
			s = SourceSmart
			if fr.Partition == types.PartitionNonMatches {
				s = SourceNonMatch
			}
		}
		out = append(out, Build(fr.Path, fr.Hash, s, now))
	}
	return out
}

// Apply filters, sorts and limits records with f.
func Apply(records []Record, f *filter.Filter) []Record {
	if f == nil {
		return records
	}

	byPath := make(map[string]Record, len(records))
	infos := make([]filter.FileInfo, 0, len(records))
	for _, rec := range records {
		byPath[rec.Path] = rec
		infos = append(infos, filter.FileInfo{
			Path:    rec.Path,
			Name:    rec.Name,
			Ext:     rec.Ext,
			Size:    rec.Size,
			ModTime: rec.Modified,
		})
	}

	kept := f.Apply(infos)
	out := make([]Record, 0, len(kept))
	for _, fi := range kept {
		out = append(out, byPath[fi.Path])
	}
	return out
}
