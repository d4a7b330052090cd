package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/sift/pkg/sift/types"
)

func openCache(t *testing.T, backend string) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache")
	if backend == BackendSQLite {
		path = filepath.Join(path, "sift.db")
	}
	c, err := Open(Options{Backend: backend, Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// tick returns a clock that advances one second per call.
func tick(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestCacheRecordNonMatchIdempotent(t *testing.T) {
	for _, backend := range Backends {
		t.Run(backend, func(t *testing.T) {
			c := openCache(t, backend)
			ctx := context.Background()

			require.NoError(t, c.RecordNonMatch(ctx, "/r/b.txt", hashB, ""))
			require.NoError(t, c.RecordNonMatch(ctx, "/r/b.txt", hashA, ""))

			recs, err := c.LookupNonMatchByHash(ctx, hashB)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, "/r/b.txt", recs[0].Path)
			assert.Equal(t, ".txt", recs[0].Extension, "extension derived from path")

			recs, err = c.LookupNonMatchByHash(ctx, hashA)
			require.NoError(t, err)
			assert.Empty(t, recs)

			st, err := c.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), st.NonMatches)
			assert.Equal(t, backend, st.Backend)
		})
	}
}

func TestCacheRecordMatchLookupRoundTrip(t *testing.T) {
	for _, backend := range Backends {
		t.Run(backend, func(t *testing.T) {
			c := openCache(t, backend)
			ctx := context.Background()

			require.NoError(t, c.RecordMatch(ctx, "/r/a.txt", hashA, ".TXT"))

			recs, err := c.LookupByHash(ctx, hashA)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, "/r/a.txt", recs[0].Path)
			assert.Equal(t, hashA, recs[0].Hash)
			assert.Equal(t, types.PartitionMatches, recs[0].Partition)
		})
	}
}

func TestCacheLookupByHashNewestFirst(t *testing.T) {
	for _, backend := range Backends {
		t.Run(backend, func(t *testing.T) {
			c := openCache(t, backend)
			c.now = tick(time.Unix(1700000000, 0))
			ctx := context.Background()

			require.NoError(t, c.RecordNonMatch(ctx, "/r/old.txt", hashA, ""))
			require.NoError(t, c.RecordMatch(ctx, "/r/mid.txt", hashA, ""))
			require.NoError(t, c.RecordNonMatch(ctx, "/r/new.txt", hashA, ""))

			recs, err := c.LookupByHash(ctx, hashA)
			require.NoError(t, err)
			require.Len(t, recs, 3)
			assert.Equal(t, "/r/new.txt", recs[0].Path)
			assert.Equal(t, "/r/mid.txt", recs[1].Path)
			assert.Equal(t, "/r/old.txt", recs[2].Path)
		})
	}
}

func TestCacheTiesBrokenByID(t *testing.T) {
	c := openCache(t, BackendBadger)
	fixed := time.Unix(1700000000, 0)
	c.now = func() time.Time { return fixed }
	ctx := context.Background()

	require.NoError(t, c.RecordNonMatch(ctx, "/r/first.txt", hashA, ""))
	require.NoError(t, c.RecordNonMatch(ctx, "/r/second.txt", hashA, ""))

	recs, err := c.LookupNonMatchByHash(ctx, hashA)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "/r/second.txt", recs[0].Path)
	assert.Greater(t, recs[0].ID, recs[1].ID)
}

func TestCacheDeleteRemovesFromBothPartitions(t *testing.T) {
	for _, backend := range Backends {
		t.Run(backend, func(t *testing.T) {
			c := openCache(t, backend)
			ctx := context.Background()

			require.NoError(t, c.RecordMatch(ctx, "/r/a.txt", hashA, ""))
			require.NoError(t, c.RecordNonMatch(ctx, "/r/a.txt", hashA, ""))
			require.NoError(t, c.RecordNonMatch(ctx, "/r/b.txt", hashB, ""))

			n, err := c.Delete(ctx, "/r/a.txt", hashA)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			recs, err := c.LookupByHash(ctx, hashA)
			require.NoError(t, err)
			assert.Empty(t, recs)

			n, err = c.Delete(ctx, "/r/missing.txt", hashA)
			require.NoError(t, err)
			assert.Zero(t, n)

			_, ok, err := c.Get(ctx, types.PartitionNonMatches, "/r/b.txt")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestCacheListLimit(t *testing.T) {
	c := openCache(t, BackendBadger)
	c.now = tick(time.Unix(1700000000, 0))
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, c.RecordNonMatch(ctx, fmt.Sprintf("/r/%d.bin", i), hashB, ""))
	}

	recs, err := c.List(ctx, types.PartitionNonMatches, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "/r/4.bin", recs[0].Path)
	assert.Equal(t, "/r/3.bin", recs[1].Path)

	all, err := c.List(ctx, types.PartitionNonMatches, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestCacheClear(t *testing.T) {
	c := openCache(t, BackendSQLite)
	ctx := context.Background()

	require.NoError(t, c.RecordMatch(ctx, "/r/a.txt", hashA, ""))
	require.NoError(t, c.RecordNonMatch(ctx, "/r/b.txt", hashB, ""))

	require.NoError(t, c.Clear(ctx, types.PartitionMatches))
	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Matches)
	assert.Equal(t, int64(1), st.NonMatches)

	require.NoError(t, c.Clear(ctx))
	st, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.NonMatches)
}

func TestCacheConcurrentWriters(t *testing.T) {
	c := openCache(t, BackendBadger)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 25 {
				path := fmt.Sprintf("/r/%d/%d.txt", i, j)
				assert.NoError(t, c.RecordNonMatch(ctx, path, hashB, ""))
				// Every writer also races on one shared path.
				assert.NoError(t, c.RecordNonMatch(ctx, "/r/shared.txt", hashB, ""))
			}
		}()
	}
	wg.Wait()

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8*25+1), st.NonMatches)
}

// failingStore fails every call with err.
type failingStore struct{ err error }

func (f failingStore) Insert(context.Context, types.Partition, types.FileRecord) (bool, error) {
	return false, f.err
}

func (f failingStore) FindByHash(context.Context, types.Partition, string) ([]types.FileRecord, error) {
	return nil, f.err
}

func (f failingStore) Get(context.Context, types.Partition, string) (types.FileRecord, error) {
	return types.FileRecord{}, f.err
}

func (f failingStore) Delete(context.Context, types.Partition, string, string) (bool, error) {
	return false, f.err
}

func (f failingStore) List(context.Context, types.Partition) ([]types.FileRecord, error) {
	return nil, f.err
}

func (f failingStore) Count(context.Context, types.Partition) (int64, error) { return 0, f.err }
func (f failingStore) Clear(context.Context, types.Partition) error          { return f.err }
func (f failingStore) Close() error                                          { return f.err }

func TestCacheWrapsBackendErrors(t *testing.T) {
	disk := errors.New("disk on fire")
	c := New(failingStore{err: disk})
	ctx := context.Background()

	checks := map[string]error{
		"record match":     c.RecordMatch(ctx, "/a", hashA, ""),
		"record non-match": c.RecordNonMatch(ctx, "/a", hashA, ""),
		"clear":            c.Clear(ctx),
		"close":            c.Close(),
	}
	_, err := c.LookupByHash(ctx, hashA)
	checks["lookup"] = err
	_, err = c.LookupNonMatchByHash(ctx, hashA)
	checks["lookup non-match"] = err
	_, err = c.Delete(ctx, "/a", hashA)
	checks["delete"] = err
	_, err = c.List(ctx, types.PartitionMatches, 0)
	checks["list"] = err
	_, err = c.Stats(ctx)
	checks["stats"] = err

	for name, err := range checks {
		t.Run(name, func(t *testing.T) {
			require.Error(t, err)
			assert.True(t, types.IsStorage(err), "want StorageError, got %T", err)
			assert.ErrorIs(t, err, disk)
		})
	}
}

func TestOpenUnknownBackendIsStorageError(t *testing.T) {
	_, err := Open(Options{Backend: "etcd", Path: t.TempDir()})
	require.Error(t, err)
	assert.True(t, types.IsStorage(err))
}
