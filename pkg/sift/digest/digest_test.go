package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/sift/pkg/sift/types"
)

const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSHA256KnownValues(t *testing.T) {
	d := NewSHA256(0)
	assert.Equal(t, DefaultChunkSize, d.ChunkSize())

	got, err := d.Digest(writeFile(t, "empty", nil))
	require.NoError(t, err)
	assert.Equal(t, emptySHA256, got)

	got, err = d.Digest(writeFile(t, "abc", []byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestSHA256MultiChunk(t *testing.T) {
	// Span several chunks with a ragged tail.
	data := bytes.Repeat([]byte("0123456789"), 40_000)
	path := writeFile(t, "big", data)

	sum := sha256.Sum256(data)
	want := hex.EncodeToString(sum[:])

	for _, chunk := range []int{1, 7, 4096, DefaultChunkSize, len(data) * 2} {
		got, n, err := NewSHA256(chunk).DigestSize(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, "chunk size %d", chunk)
		assert.Equal(t, int64(len(data)), n)
	}
}

func TestSHA256Deterministic(t *testing.T) {
	a := writeFile(t, "a", []byte("same bytes"))
	b := writeFile(t, "b", []byte("same bytes"))

	ha, err := File(a)
	require.NoError(t, err)
	hb, err := File(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Equal(t, Bytes([]byte("same bytes")), ha)
}

func TestSHA256MissingFile(t *testing.T) {
	_, err := NewSHA256(0).Digest(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	var fae *types.FileAccessError
	require.True(t, errors.As(err, &fae))
	assert.Equal(t, "open", fae.Op)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSHA256Directory(t *testing.T) {
	_, err := NewSHA256(0).Digest(t.TempDir())
	var fae *types.FileAccessError
	assert.True(t, errors.As(err, &fae), "reading a directory is a file access error, got %v", err)
}

func TestSHA256Concurrent(t *testing.T) {
	d := NewSHA256(16)
	path := writeFile(t, "shared", bytes.Repeat([]byte("x"), 1000))
	want := Bytes(bytes.Repeat([]byte("x"), 1000))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := d.Digest(path)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestCounting(t *testing.T) {
	path := writeFile(t, "x", []byte("x"))
	c := NewCounting(nil)

	_, err := c.Digest(path)
	require.NoError(t, err)
	_, err = c.Digest(path + ".missing")
	require.Error(t, err)

	assert.Equal(t, int64(2), c.Calls())
	assert.Equal(t, []string{path, path + ".missing"}, c.Paths())
}

func BenchmarkSHA256(b *testing.B) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 1<<16)
	path := filepath.Join(b.TempDir(), "blob")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		b.Fatal(err)
	}

	for _, chunk := range []int{4 << 10, DefaultChunkSize, 1 << 20} {
		b.Run(fmt.Sprintf("chunk=%d", chunk), func(b *testing.B) {
			d := NewSHA256(chunk)
			b.SetBytes(int64(len(data)))
			for b.Loop() {
				if _, err := d.Digest(path); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
