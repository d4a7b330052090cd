package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manifest reads and writes history entries in a directory.
type Manifest struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New creates a Manifest for dir. The directory is created on first write.
func New(dir string) (*Manifest, error) {
	if dir == "" {
		return nil, errors.New("manifest directory cannot be empty")
	}
	return &Manifest{dir: dir, now: time.Now}, nil
}

// Dir returns the manifest directory.
func (m *Manifest) Dir() string { return m.dir }

// EnsureDir creates the manifest directory if it does not exist.
func (m *Manifest) EnsureDir() error {
	return os.MkdirAll(m.dir, 0o755)
}

// Append stamps e with an ID and timestamp, persists it and returns the
// stored entry.
func (m *Manifest) Append(e Entry) (*Entry, error) {
	if e.Operation == "" {
		return nil, errors.New("entry operation cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = uuid.New().String()
	e.Timestamp = m.now().UTC()

	if err := m.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := m.writeEntry(&e); err != nil {
		return nil, fmt.Errorf("failed to write manifest entry: %w", err)
	}
	return &e, nil
}

// LogDelete records the removal of cache records for path.
func (m *Manifest) LogDelete(path, hash string, removed int) (*Entry, error) {
	return m.Append(Entry{
		Operation: OpDelete,
		Target:    hash,
		Matches:   []string{path},
		Counts:    Counts{Removed: int64(removed)},
	})
}

// writeEntry writes e atomically through a temp file and rename.
func (m *Manifest) writeEntry(e *Entry) error {
	filePath := filepath.Join(m.dir, entryFilename(e))

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// entryFilename is "<op>-<timestamp>-<id prefix>.json", so a directory
// listing sorts chronologically within an operation type.
func entryFilename(e *Entry) string {
	return fmt.Sprintf("%s-%s-%s.json", e.Operation, e.Timestamp.Format("2006-01-02T15-04-05.000"), e.ID[:8])
}

// List returns entries newest first. A limit <= 0 returns all of them.
// Files that cannot be parsed are skipped.
func (m *Manifest) List(limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.readAll()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get returns the entry with the given ID, or an ID prefix of at least
// eight characters.
func (m *Manifest) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.readAll()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == id || (len(id) >= 8 && strings.HasPrefix(entries[i].ID, id)) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("entry not found: %s", id)
}

// Cleanup removes entries older than retentionDays and returns how many
// were removed. A retentionDays <= 0 keeps everything.
func (m *Manifest) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		entry, err := m.readEntryFile(f.Name())
		if err != nil {
			continue
		}
		if entry.Timestamp.Before(cutoff) {
			if err := os.Remove(filepath.Join(m.dir, f.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (m *Manifest) readAll() ([]Entry, error) {
	files, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		entry, err := m.readEntryFile(f.Name())
		if err != nil {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (m *Manifest) readEntryFile(filename string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}
