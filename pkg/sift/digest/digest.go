// Package digest computes streaming content hashes of files.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/jamesainslie/sift/pkg/sift/types"
)

// DefaultChunkSize is the read size used while hashing.
const DefaultChunkSize = 128 * 1024

// Digester computes the hex digest of a file. Errors are *types.FileAccessError.
type Digester interface {
	Digest(path string) (string, error)
}

// SizedDigester is implemented by digesters that also report how many bytes
// they read.
type SizedDigester interface {
	Digester
	DigestSize(path string) (hash string, n int64, err error)
}

// SHA256 hashes files with SHA-256, reading ChunkSize bytes at a time.
// It is safe for concurrent use; read buffers are pooled.
type SHA256 struct {
	chunkSize int
	buffers   sync.Pool
}

// NewSHA256 returns a SHA-256 digester. A chunkSize <= 0 uses DefaultChunkSize.
func NewSHA256(chunkSize int) *SHA256 {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	d := &SHA256{chunkSize: chunkSize}
	d.buffers.New = func() any {
		buf := make([]byte, d.chunkSize)
		return &buf
	}
	return d
}

// ChunkSize returns the read size in bytes.
func (d *SHA256) ChunkSize() int {
	return d.chunkSize
}

// Digest returns the lowercase hex SHA-256 of the file at path.
func (d *SHA256) Digest(path string) (string, error) {
	hash, _, err := d.DigestSize(path)
	return hash, err
}

// DigestSize is Digest that also returns the number of bytes read.
func (d *SHA256) DigestSize(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, &types.FileAccessError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	bufp := d.buffers.Get().(*[]byte)
	defer d.buffers.Put(bufp)

	h := sha256.New()
	// onlyReader hides WriterTo/ReaderFrom so io.CopyBuffer honours the buffer.
	n, err := io.CopyBuffer(onlyWriter{h}, onlyReader{f}, *bufp)
	if err != nil {
		return "", n, &types.FileAccessError{Path: path, Op: "read", Err: err}
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

type onlyReader struct{ io.Reader }

type onlyWriter struct{ io.Writer }

// Bytes returns the lowercase hex SHA-256 of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var defaultDigester = NewSHA256(DefaultChunkSize)

// File hashes a single file with the default SHA-256 digester.
func File(path string) (string, error) {
	return defaultDigester.Digest(path)
}

// Counting wraps a Digester and records every path it is asked to hash.
type Counting struct {
	inner Digester
	calls atomic.Int64

	mu    sync.Mutex
	paths []string
}

// NewCounting wraps inner. A nil inner uses the default SHA-256 digester.
func NewCounting(inner Digester) *Counting {
	if inner == nil {
		inner = defaultDigester
	}
	return &Counting{inner: inner}
}

// Digest records path and delegates to the wrapped digester.
func (c *Counting) Digest(path string) (string, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
	return c.inner.Digest(path)
}

// Calls returns the number of Digest calls so far.
func (c *Counting) Calls() int64 {
	return c.calls.Load()
}

// Paths returns a copy of every path passed to Digest.
func (c *Counting) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.paths))
	copy(out, c.paths)
	return out
}
