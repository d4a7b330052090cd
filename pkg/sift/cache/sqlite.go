package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jamesainslie/sift/pkg/sift/types"
)

// Table names for each partition.
var tables = map[types.Partition]string{
	types.PartitionMatches:    "search_history",
	types.PartitionNonMatches: "non_matching_hashes",
}

// SQLiteStore keeps each partition in its own table.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates a SQLite database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(FULL)")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the underlying database resources.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	var b strings.Builder
	for _, table := range tables {
		fmt.Fprintf(&b, `
CREATE TABLE IF NOT EXISTS %[1]s (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        file_path TEXT NOT NULL UNIQUE,
        file_hash TEXT NOT NULL,
        extension TEXT NOT NULL DEFAULT '',
        recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_hash ON %[1]s(file_hash);
`, table)
	}

	if _, err := s.db.Exec(b.String()); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

func table(part types.Partition) (string, error) {
	name, ok := tables[part]
	if !ok {
		return "", fmt.Errorf("unknown partition %q", part)
	}
	return name, nil
}

// Insert implements Store.
func (s *SQLiteStore) Insert(ctx context.Context, part types.Partition, rec types.FileRecord) (bool, error) {
	tbl, err := table(part)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+tbl+` (file_path, file_hash, extension, recorded_at) VALUES (?, ?, ?, ?)`,
		rec.Path, rec.Hash, rec.Extension, rec.RecordedAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	return n > 0, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, part types.Partition, path string) (types.FileRecord, error) {
	tbl, err := table(part)
	if err != nil {
		return types.FileRecord{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_path, file_hash, extension, recorded_at FROM `+tbl+` WHERE file_path = ?`, path)
	rec, err := scanRecord(row, part)
	if errors.Is(err, sql.ErrNoRows) {
		return types.FileRecord{}, ErrNotFound
	}
	return rec, err
}

// FindByHash implements Store.
func (s *SQLiteStore) FindByHash(ctx context.Context, part types.Partition, hash string) ([]types.FileRecord, error) {
	tbl, err := table(part)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, part,
		`SELECT id, file_path, file_hash, extension, recorded_at FROM `+tbl+` WHERE file_hash = ?`, hash)
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, part types.Partition, path, hash string) (bool, error) {
	tbl, err := table(part)
	if err != nil {
		return false, err
	}

	var res sql.Result
	if hash == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM `+tbl+` WHERE file_path = ?`, path)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM `+tbl+` WHERE file_path = ? AND file_hash = ?`, path, hash)
	}
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	return n > 0, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, part types.Partition) ([]types.FileRecord, error) {
	tbl, err := table(part)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, part, `SELECT id, file_path, file_hash, extension, recorded_at FROM `+tbl)
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context, part types.Partition) (int64, error) {
	tbl, err := table(part)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tbl).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context, part types.Partition) error {
	tbl, err := table(part)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+tbl); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

func (s *SQLiteStore) query(ctx context.Context, part types.Partition, query string, args ...any) ([]types.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []types.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows, part)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, part types.Partition) (types.FileRecord, error) {
	var (
		rec        types.FileRecord
		recordedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.Path, &rec.Hash, &rec.Extension, &recordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan record: %w", err)
	}
	rec.RecordedAt = time.Unix(0, recordedAt)
	rec.Partition = part
	return rec, nil
}
