package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/sift/pkg/sift/types"
)

const sequenceKey = prefixMeta + "__id_seq__"

// BadgerStore keeps both partitions in one Badger database, separated by key
// prefix, with a secondary hash index per partition.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence

	closeOnce sync.Once
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens or creates a Badger store in directory path.
// Writes are synced to disk before they are acknowledged.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	s := &BadgerStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	seq, err := db.GetSequence([]byte(sequenceKey), 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening id sequence: %w", err)
	}
	s.seq = seq

	return s, nil
}

// Close releases the id sequence and closes the database.
func (s *BadgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = errors.Join(s.seq.Release(), s.db.Close())
	})
	return err
}

// Insert implements Store.
func (s *BadgerStore) Insert(_ context.Context, part types.Partition, rec types.FileRecord) (bool, error) {
	if err := s.check(part); err != nil {
		return false, err
	}

	key := recordKey(part, rec.Path)
	inserted := false

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		id, err := s.seq.Next()
		if err != nil {
			return fmt.Errorf("allocating id: %w", err)
		}

		stored := storedRecord{
			ID:         int64(id) + 1,
			Hash:       rec.Hash,
			Extension:  rec.Extension,
			RecordedAt: rec.RecordedAt.UnixNano(),
		}
		value, err := stored.encode()
		if err != nil {
			return err
		}

		if err := txn.Set(key, value); err != nil {
			return err
		}
		if err := txn.Set(hashKey(part, rec.Hash, rec.Path), nil); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Get implements Store.
func (s *BadgerStore) Get(_ context.Context, part types.Partition, path string) (types.FileRecord, error) {
	if err := s.check(part); err != nil {
		return types.FileRecord{}, err
	}

	var rec storedRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(part, path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(rec.decode)
	})
	if err != nil {
		return types.FileRecord{}, err
	}
	return rec.toFileRecord(part, path), nil
}

// FindByHash implements Store.
func (s *BadgerStore) FindByHash(_ context.Context, part types.Partition, hash string) ([]types.FileRecord, error) {
	if err := s.check(part); err != nil {
		return nil, err
	}

	var out []types.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := hashPrefix(part, hash)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			path := pathFromHashKey(it.Item().Key())

			item, err := txn.Get(recordKey(part, path))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue // Dangling index entry
			}
			if err != nil {
				return err
			}

			var rec storedRecord
			if err := item.Value(rec.decode); err != nil {
				return err
			}
			if rec.Hash != hash {
				continue
			}
			out = append(out, rec.toFileRecord(part, path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete implements Store.
func (s *BadgerStore) Delete(_ context.Context, part types.Partition, path, hash string) (bool, error) {
	if err := s.check(part); err != nil {
		return false, err
	}

	deleted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(part, path)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var rec storedRecord
		if err := item.Value(rec.decode); err != nil {
			return err
		}
		if hash != "" && rec.Hash != hash {
			return nil
		}

		if err := txn.Delete(key); err != nil {
			return err
		}
		if err := txn.Delete(hashKey(part, rec.Hash, path)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// List implements Store.
func (s *BadgerStore) List(_ context.Context, part types.Partition) ([]types.FileRecord, error) {
	if err := s.check(part); err != nil {
		return nil, err
	}

	var out []types.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := recordPrefix(part)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var rec storedRecord
			if err := item.Value(rec.decode); err != nil {
				return err
			}
			out = append(out, rec.toFileRecord(part, pathFromRecordKey(part, item.Key())))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count implements Store.
func (s *BadgerStore) Count(_ context.Context, part types.Partition) (int64, error) {
	if err := s.check(part); err != nil {
		return 0, err
	}

	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := recordPrefix(part)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear implements Store.
func (s *BadgerStore) Clear(_ context.Context, part types.Partition) error {
	if err := s.check(part); err != nil {
		return err
	}
	return s.db.DropPrefix(recordPrefix(part), hashPartitionPrefix(part))
}

func (s *BadgerStore) check(part types.Partition) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	return validPartition(part)
}
