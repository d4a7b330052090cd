package cache

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/jamesainslie/sift/pkg/sift/types"
)

// KeySeparator separates hash from path in index keys.
const KeySeparator = '\x00'

// Key prefixes. Record keys are r:<partition>:<path>, index keys are
// h:<partition>:<hash>\x00<path>.
const (
	prefixRecord = "r:"
	prefixHash   = "h:"
	prefixMeta   = "m:"
)

// storedRecord is the on-disk form of a record in the badger backend.
type storedRecord struct {
	ID         int64
	Hash       string
	Extension  string
	RecordedAt int64 // UnixNano
}

func (r *storedRecord) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *storedRecord) decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(r)
}

func (r *storedRecord) toFileRecord(part types.Partition, path string) types.FileRecord {
	return types.FileRecord{
		ID:         r.ID,
		Path:       path,
		Hash:       r.Hash,
		Extension:  r.Extension,
		RecordedAt: time.Unix(0, r.RecordedAt),
		Partition:  part,
	}
}

func recordPrefix(part types.Partition) []byte {
	return []byte(prefixRecord + string(part) + ":")
}

func recordKey(part types.Partition, path string) []byte {
	return append(recordPrefix(part), path...)
}

func pathFromRecordKey(part types.Partition, key []byte) string {
	return string(key[len(recordPrefix(part)):])
}

func hashPartitionPrefix(part types.Partition) []byte {
	return []byte(prefixHash + string(part) + ":")
}

func hashPrefix(part types.Partition, hash string) []byte {
	return append(append(hashPartitionPrefix(part), hash...), KeySeparator)
}

func hashKey(part types.Partition, hash, path string) []byte {
	return append(hashPrefix(part, hash), path...)
}

func pathFromHashKey(key []byte) string {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return ""
	}
	return string(key[idx+1:])
}
