package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/sift/pkg/sift/digest"
	"github.com/jamesainslie/sift/pkg/sift/events"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

var needle = []byte("needle")

type memRecorder struct {
	mu         sync.Mutex
	matches    map[string]string
	nonMatches map[string]string
	err        error
}

func newRecorder() *memRecorder {
	return &memRecorder{matches: map[string]string{}, nonMatches: map[string]string{}}
}

func (r *memRecorder) RecordMatch(_ context.Context, path, hash, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.matches[path] = hash
	return nil
}

func (r *memRecorder) RecordNonMatch(_ context.Context, path, hash, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nonMatches[path] = hash
	return nil
}

func (r *memRecorder) has(part string, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if part == "match" {
		_, ok := r.matches[path]
		return ok
	}
	_, ok := r.nonMatches[path]
	return ok
}

type harness struct {
	root   string
	rec    *memRecorder
	w      *Watcher
	sub    *events.Subscriber
	cancel context.CancelFunc
	done   chan error
}

func start(t *testing.T, mutate func(*types.ScanRequest), dirs ...string) *harness {
	t.Helper()
	root := t.TempDir()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}

	req := types.ScanRequest{Roots: []string{root}, TargetHash: digest.Bytes(needle)}
	if mutate != nil {
		mutate(&req)
	}

	b := events.New()
	t.Cleanup(b.Close)
	rec := newRecorder()
	w, err := New(req, rec, Options{Events: b, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	h := &harness{root: root, rec: rec, w: w, sub: b.Subscribe(64), done: make(chan error, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)

	go func() { h.done <- w.Run(ctx) }()

	h.expect(t, events.EventStarted)
	return h
}

func (h *harness) expect(t *testing.T, typ events.EventType) events.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-h.sub.Events:
			if e.Type == typ {
				return e
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
		}
	}
}

func (h *harness) write(t *testing.T, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(h.root, rel)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestNewValidates(t *testing.T) {
	_, err := New(types.ScanRequest{Roots: []string{t.TempDir()}, TargetHash: "nope"}, nil, Options{})
	assert.ErrorIs(t, err, types.ErrInvalidHash)

	_, err = New(types.ScanRequest{Roots: []string{filepath.Join(t.TempDir(), "missing")}, TargetHash: digest.Bytes(needle)}, nil, Options{})
	assert.ErrorIs(t, err, types.ErrRootNotFound)
}

func TestWatchMatchesNewFile(t *testing.T) {
	h := start(t, nil)

	path := h.write(t, "found.txt", needle)

	e := h.expect(t, events.EventMatch)
	assert.Equal(t, path, e.Match.Path)
	assert.Equal(t, h.w.ID(), e.ScanID)
	assert.True(t, h.rec.has("match", path))
}

func TestWatchRecordsNonMatch(t *testing.T) {
	h := start(t, nil)

	path := h.write(t, "other.txt", []byte("hay"))

	assert.Eventually(t, func() bool { return h.rec.has("non", path) }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, h.w.Stats().Matches)
}

func TestWatchNewSubdirectory(t *testing.T) {
	h := start(t, nil)

	require.NoError(t, os.MkdirAll(filepath.Join(h.root, "a", "b"), 0o755))
	path := h.write(t, filepath.Join("a", "b", "deep.bin"), needle)

	e := h.expect(t, events.EventMatch)
	assert.Equal(t, path, e.Match.Path)
}

func TestWatchSkipsExcludedDirectories(t *testing.T) {
	var secret string
	h := start(t, func(r *types.ScanRequest) {
		secret = filepath.Join(r.Roots[0], "secret")
		r.Exclude = []string{secret}
	}, "secret", "open")

	h.write(t, filepath.Join("secret", "hidden.txt"), needle)
	visible := h.write(t, filepath.Join("open", "visible.txt"), needle)

	e := h.expect(t, events.EventMatch)
	assert.Equal(t, visible, e.Match.Path)

	// Give the hidden file time to be picked up if it were going to be.
	time.Sleep(100 * time.Millisecond)
	assert.False(t, h.rec.has("match", filepath.Join(secret, "hidden.txt")))
	assert.Equal(t, int64(1), h.w.Stats().Matches)
}

func TestWatchAppliesExtensionAndSizeFilters(t *testing.T) {
	h := start(t, func(r *types.ScanRequest) {
		r.Extensions = []string{".bin"}
		r.MinSize = 3
	})

	h.write(t, "wrong.txt", needle)
	h.write(t, "tiny.bin", []byte("x"))
	path := h.write(t, "right.bin", needle)

	e := h.expect(t, events.EventMatch)
	assert.Equal(t, path, e.Match.Path)

	time.Sleep(100 * time.Millisecond)
	st := h.w.Stats()
	assert.Equal(t, int64(1), st.Digested)
}

func TestWatchRecordErrorPublishesErrorEvent(t *testing.T) {
	h := start(t, nil)
	h.rec.mu.Lock()
	h.rec.err = errors.New("disk full")
	h.rec.mu.Unlock()

	h.write(t, "a.txt", needle)

	e := h.expect(t, events.EventError)
	assert.EqualError(t, e.Err, "disk full")
}

func TestRunStopsOnCancel(t *testing.T) {
	h := start(t, nil)
	h.cancel()

	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	e := h.expect(t, events.EventFinished)
	assert.Equal(t, "stopped", e.State)
}

func TestRemoveDropsWatches(t *testing.T) {
	h := start(t, nil, "gone")
	before := h.w.Stats().Dirs

	require.NoError(t, os.RemoveAll(filepath.Join(h.root, "gone")))

	assert.Eventually(t, func() bool { return h.w.Stats().Dirs < before }, 5*time.Second, 10*time.Millisecond)
}

func TestIsSubPath(t *testing.T) {
	assert.True(t, isSubPath("/a/b", "/a"))
	assert.False(t, isSubPath("/ab", "/a"))
	assert.False(t, isSubPath("/a", "/a"))
}
