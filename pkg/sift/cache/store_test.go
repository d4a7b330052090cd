package cache

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/sift/pkg/sift/types"
)

const (
	hashA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	hashB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

// openStores opens one store per backend in a temp dir.
func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	badgerStore, err := OpenBadger(filepath.Join(dir, "badger"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerStore.Close() })

	sqliteStore, err := OpenSQLite(filepath.Join(dir, "sqlite", "sift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		BackendBadger: badgerStore,
		BackendSQLite: sqliteStore,
	}
}

func rec(path, hash string) types.FileRecord {
	return types.FileRecord{
		Path:       path,
		Hash:       hash,
		Extension:  ".txt",
		RecordedAt: time.Unix(1700000000, 0),
	}
}

func paths(recs []types.FileRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Path)
	}
	sort.Strings(out)
	return out
}

func TestStoreInsertIfAbsent(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			inserted, err := s.Insert(ctx, types.PartitionNonMatches, rec("/r/a.txt", hashA))
			require.NoError(t, err)
			assert.True(t, inserted)

			inserted, err = s.Insert(ctx, types.PartitionNonMatches, rec("/r/a.txt", hashB))
			require.NoError(t, err)
			assert.False(t, inserted, "second insert for same path must be ignored")

			got, err := s.Get(ctx, types.PartitionNonMatches, "/r/a.txt")
			require.NoError(t, err)
			assert.Equal(t, hashA, got.Hash, "stored hash must not change")
			assert.Equal(t, ".txt", got.Extension)
			assert.Equal(t, types.PartitionNonMatches, got.Partition)
			assert.Positive(t, got.ID)
			assert.True(t, got.RecordedAt.Equal(time.Unix(1700000000, 0)))

			n, err := s.Count(ctx, types.PartitionNonMatches)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestStorePartitionsAreIndependent(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Insert(ctx, types.PartitionMatches, rec("/r/a.txt", hashA))
			require.NoError(t, err)
			inserted, err := s.Insert(ctx, types.PartitionNonMatches, rec("/r/a.txt", hashB))
			require.NoError(t, err)
			assert.True(t, inserted)

			_, err = s.Get(ctx, types.PartitionMatches, "/r/b.txt")
			assert.ErrorIs(t, err, ErrNotFound)

			m, err := s.Count(ctx, types.PartitionMatches)
			require.NoError(t, err)
			nm, err := s.Count(ctx, types.PartitionNonMatches)
			require.NoError(t, err)
			assert.Equal(t, int64(1), m)
			assert.Equal(t, int64(1), nm)
		})
	}
}

func TestStoreFindByHash(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			part := types.PartitionNonMatches

			for _, r := range []types.FileRecord{
				rec("/r/a.txt", hashA),
				rec("/r/b.txt", hashB),
				rec("/r/c.txt", hashA),
			} {
				_, err := s.Insert(ctx, part, r)
				require.NoError(t, err)
			}

			got, err := s.FindByHash(ctx, part, hashA)
			require.NoError(t, err)
			assert.Equal(t, []string{"/r/a.txt", "/r/c.txt"}, paths(got))

			got, err = s.FindByHash(ctx, types.PartitionMatches, hashA)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStoreIDsAreUnique(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, p := range []string{"/a", "/b", "/c"} {
				_, err := s.Insert(ctx, types.PartitionMatches, rec(p, hashA))
				require.NoError(t, err)
			}

			all, err := s.List(ctx, types.PartitionMatches)
			require.NoError(t, err)
			require.Len(t, all, 3)

			seen := map[int64]bool{}
			for _, r := range all {
				assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
				seen[r.ID] = true
			}
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			part := types.PartitionMatches

			_, err := s.Insert(ctx, part, rec("/r/a.txt", hashA))
			require.NoError(t, err)

			deleted, err := s.Delete(ctx, part, "/r/a.txt", hashB)
			require.NoError(t, err)
			assert.False(t, deleted, "hash mismatch must not delete")

			deleted, err = s.Delete(ctx, part, "/r/a.txt", hashA)
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = s.Delete(ctx, part, "/r/a.txt", hashA)
			require.NoError(t, err)
			assert.False(t, deleted, "absent record is a no-op")

			found, err := s.FindByHash(ctx, part, hashA)
			require.NoError(t, err)
			assert.Empty(t, found, "hash index must be cleaned up")

			_, err = s.Insert(ctx, part, rec("/r/b.txt", hashB))
			require.NoError(t, err)
			deleted, err = s.Delete(ctx, part, "/r/b.txt", "")
			require.NoError(t, err)
			assert.True(t, deleted, "empty hash deletes unconditionally")
		})
	}
}

func TestStoreClear(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Insert(ctx, types.PartitionMatches, rec("/r/a.txt", hashA))
			require.NoError(t, err)
			_, err = s.Insert(ctx, types.PartitionNonMatches, rec("/r/b.txt", hashB))
			require.NoError(t, err)

			require.NoError(t, s.Clear(ctx, types.PartitionNonMatches))

			n, err := s.Count(ctx, types.PartitionNonMatches)
			require.NoError(t, err)
			assert.Zero(t, n)

			found, err := s.FindByHash(ctx, types.PartitionNonMatches, hashB)
			require.NoError(t, err)
			assert.Empty(t, found)

			n, err = s.Count(ctx, types.PartitionMatches)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestStoreRejectsUnknownPartition(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Insert(context.Background(), types.Partition("bogus"), rec("/a", hashA))
			assert.Error(t, err)
		})
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, backend := range Backends {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(dir, backend, "store")

			s, err := OpenStore(backend, path)
			require.NoError(t, err)
			_, err = s.Insert(ctx, types.PartitionNonMatches, rec("/r/a.txt", hashA))
			require.NoError(t, err)
			require.NoError(t, s.Close())

			s, err = OpenStore(backend, path)
			require.NoError(t, err)
			defer s.Close()

			got, err := s.Get(ctx, types.PartitionNonMatches, "/r/a.txt")
			require.NoError(t, err)
			assert.Equal(t, hashA, got.Hash)

			// New ids continue after the old ones.
			_, err = s.Insert(ctx, types.PartitionNonMatches, rec("/r/b.txt", hashA))
			require.NoError(t, err)
			b, err := s.Get(ctx, types.PartitionNonMatches, "/r/b.txt")
			require.NoError(t, err)
			assert.Greater(t, b.ID, got.ID)
		})
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	_, err := OpenStore("postgres", t.TempDir())
	assert.ErrorContains(t, err, "unknown cache backend")
}

func TestBadgerSchemaStamped(t *testing.T) {
	s, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	schema := s.GetSchema()
	require.NotNil(t, schema)
	assert.Equal(t, CurrentSchemaVersion, schema.Version)
}

func TestBadgerRejectsNewerSchema(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetSchema(&Schema{Version: CurrentSchemaVersion + 1, UpdatedAt: time.Now()}))
	require.NoError(t, s.Close())

	_, err = OpenBadger(dir)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestBadgerClosed(t *testing.T) {
	s, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	_, err = s.Insert(context.Background(), types.PartitionMatches, rec("/a", hashA))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHashKeyRoundTrip(t *testing.T) {
	key := hashKey(types.PartitionMatches, hashA, "/some/path with spaces")
	assert.Equal(t, "/some/path with spaces", pathFromHashKey(key))
	assert.Equal(t, "", pathFromHashKey([]byte("no-separator")))
}
