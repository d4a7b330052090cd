package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jamesainslie/sift/pkg/sift/types"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache store is closed")

// Store is a persistence backend for the two cache partitions.
//
// Implementations are safe for concurrent readers. Writers are serialized by
// Cache, so a Store need not order concurrent writes itself.
type Store interface {
	// Insert writes rec into part unless a record for rec.Path already
	// exists there. It reports whether a new record was written. The store
	// assigns rec.ID.
	Insert(ctx context.Context, part types.Partition, rec types.FileRecord) (bool, error)

	// FindByHash returns every record in part whose hash equals hash.
	FindByHash(ctx context.Context, part types.Partition, hash string) ([]types.FileRecord, error)

	// Get returns the record for path in part, or ErrNotFound.
	Get(ctx context.Context, part types.Partition, path string) (types.FileRecord, error)

	// Delete removes path from part if its stored hash equals hash, or
	// unconditionally when hash is empty. It reports whether a record was
	// removed.
	Delete(ctx context.Context, part types.Partition, path, hash string) (bool, error)

	// List returns every record in part in no particular order.
	List(ctx context.Context, part types.Partition) ([]types.FileRecord, error)

	// Count returns the number of records in part.
	Count(ctx context.Context, part types.Partition) (int64, error)

	// Clear removes every record from part.
	Clear(ctx context.Context, part types.Partition) error

	// Close releases the backend.
	Close() error
}

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("cache record not found")

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Backends lists the supported backend names.
var Backends = []string{BackendBadger, BackendSQLite}

// OpenStore opens the named backend at path. For badger, path is a
// directory; for sqlite it is the database file.
func OpenStore(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendBadger:
		return OpenBadger(path)
	case BackendSQLite, "sqlite3":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown cache backend %q (valid: %s)", backend, strings.Join(Backends, ", "))
	}
}

func validPartition(part types.Partition) error {
	switch part {
	case types.PartitionMatches, types.PartitionNonMatches:
		return nil
	default:
		return fmt.Errorf("unknown partition %q", part)
	}
}
