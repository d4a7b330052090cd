package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/sift/pkg/sift/filter"
	"github.com/jamesainslie/sift/pkg/sift/logging"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

// Options configures Open.
type Options struct {
	// Backend is "badger" (default) or "sqlite".
	Backend string

	// Path is the badger directory or the sqlite database file.
	Path string
}

// Stats summarizes the cache contents.
type Stats struct {
	Backend    string `json:"backend" yaml:"backend"`
	Path       string `json:"path" yaml:"path"`
	Matches    int64  `json:"matches" yaml:"matches"`
	NonMatches int64  `json:"non_matches" yaml:"non_matches"`
}

// Cache is the scan cache service. It remembers which files matched a
// target and which were hashed and did not, so repeat searches can skip
// re-hashing.
//
// All mutations are serialized by one writer lock. Reads go straight to the
// backend.
type Cache struct {
	store   Store
	backend string
	path    string

	writeMu sync.Mutex
	now     func() time.Time
	log     *logging.Logger
}

// Open opens the backend described by opts.
func Open(opts Options) (*Cache, error) {
	store, err := OpenStore(opts.Backend, opts.Path)
	if err != nil {
		return nil, &types.StorageError{Op: "open", Err: err}
	}

	backend := opts.Backend
	if backend == "" {
		backend = BackendBadger
	}

	c := New(store)
	c.backend = backend
	c.path = opts.Path
	c.log.Debug("cache opened", "backend", backend, "path", opts.Path)
	return c, nil
}

// New wraps an already opened Store.
func New(store Store) *Cache {
	return &Cache{
		store: store,
		now:   time.Now,
		log:   logging.Get("cache"),
	}
}

// Close closes the backend.
func (c *Cache) Close() error {
	if err := c.store.Close(); err != nil {
		return &types.StorageError{Op: "close", Err: err}
	}
	return nil
}

// Backend returns the backend name.
func (c *Cache) Backend() string { return c.backend }

// Path returns the backend location.
func (c *Cache) Path() string { return c.path }

// RecordMatch records that path hashed to the target hash. If ext is empty it
// is derived from path. A second call for the same path is a no-op.
func (c *Cache) RecordMatch(ctx context.Context, path, hash, ext string) error {
	return c.record(ctx, types.PartitionMatches, path, hash, ext)
}

// RecordNonMatch records that path was hashed and did not match. If ext is
// empty it is derived from path. A second call for the same path is a no-op.
func (c *Cache) RecordNonMatch(ctx context.Context, path, hash, ext string) error {
	return c.record(ctx, types.PartitionNonMatches, path, hash, ext)
}

func (c *Cache) record(ctx context.Context, part types.Partition, path, hash, ext string) error {
	if ext == "" {
		ext = filter.Ext(path)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	inserted, err := c.store.Insert(ctx, part, types.FileRecord{
		Path:       path,
		Hash:       hash,
		Extension:  ext,
		RecordedAt: c.now(),
	})
	if err != nil {
		return &types.StorageError{Op: "record " + string(part), Err: err}
	}
	if !inserted {
		c.log.Debug("record exists", "partition", part, "path", path)
	}
	return nil
}

// LookupByHash returns records from both partitions whose hash equals hash,
// newest first. Ties are broken by descending ID.
func (c *Cache) LookupByHash(ctx context.Context, hash string) ([]types.FileRecord, error) {
	var out []types.FileRecord
	for _, part := range types.Partitions {
		recs, err := c.store.FindByHash(ctx, part, hash)
		if err != nil {
			return nil, &types.StorageError{Op: "lookup", Err: err}
		}
		out = append(out, recs...)
	}
	sortNewestFirst(out)
	return out, nil
}

// LookupNonMatchByHash returns non-match records whose hash equals hash,
// newest first.
func (c *Cache) LookupNonMatchByHash(ctx context.Context, hash string) ([]types.FileRecord, error) {
	recs, err := c.store.FindByHash(ctx, types.PartitionNonMatches, hash)
	if err != nil {
		return nil, &types.StorageError{Op: "lookup non-match", Err: err}
	}
	sortNewestFirst(recs)
	return recs, nil
}

// Get returns the record for path in part. The boolean is false if none exists.
func (c *Cache) Get(ctx context.Context, part types.Partition, path string) (types.FileRecord, bool, error) {
	rec, err := c.store.Get(ctx, part, path)
	if errors.Is(err, ErrNotFound) {
		return types.FileRecord{}, false, nil
	}
	if err != nil {
		return types.FileRecord{}, false, &types.StorageError{Op: "get", Err: err}
	}
	return rec, true, nil
}

// Delete removes path from both partitions where the stored hash equals hash.
// An empty hash removes path regardless of its hash. It returns the number of
// records removed; absent records are not an error.
func (c *Cache) Delete(ctx context.Context, path, hash string) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	removed := 0
	for _, part := range types.Partitions {
		ok, err := c.store.Delete(ctx, part, path, hash)
		if err != nil {
			return removed, &types.StorageError{Op: "delete", Err: err}
		}
		if ok {
			removed++
		}
	}
	c.log.Debug("deleted records", "path", path, "removed", removed)
	return removed, nil
}

// List returns records from part, newest first. A limit of zero or less
// returns everything.
func (c *Cache) List(ctx context.Context, part types.Partition, limit int) ([]types.FileRecord, error) {
	recs, err := c.store.List(ctx, part)
	if err != nil {
		return nil, &types.StorageError{Op: "list", Err: err}
	}
	sortNewestFirst(recs)
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// Stats returns record counts for both partitions.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Backend: c.backend, Path: c.path}

	var err error
	if st.Matches, err = c.store.Count(ctx, types.PartitionMatches); err != nil {
		return st, &types.StorageError{Op: "stats", Err: err}
	}
	if st.NonMatches, err = c.store.Count(ctx, types.PartitionNonMatches); err != nil {
		return st, &types.StorageError{Op: "stats", Err: err}
	}
	return st, nil
}

// Clear removes every record from the given partitions, or from both when
// none are given.
func (c *Cache) Clear(ctx context.Context, parts ...types.Partition) error {
	if len(parts) == 0 {
		parts = types.Partitions
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for _, part := range parts {
		if err := c.store.Clear(ctx, part); err != nil {
			return &types.StorageError{Op: "clear " + string(part), Err: err}
		}
	}
	c.log.Info("cache cleared", "partitions", parts)
	return nil
}

func sortNewestFirst(recs []types.FileRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].RecordedAt.Equal(recs[j].RecordedAt) {
			return recs[i].RecordedAt.After(recs[j].RecordedAt)
		}
		return recs[i].ID > recs[j].ID
	})
}
