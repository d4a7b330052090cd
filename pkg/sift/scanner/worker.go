package scanner

import (
	"context"
	"fmt"

	"github.com/jamesainslie/sift/pkg/sift/digest"
	"github.com/jamesainslie/sift/pkg/sift/events"
	"github.com/jamesainslie/sift/pkg/sift/filter"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

// work takes jobs until the queue is closed or the scan is cancelled.
func (s *Scanner) work(ctx context.Context, jobs <-chan string) {
	for {
		if !s.waitGate(ctx) {
			return
		}

		select {
		case path, ok := <-jobs:
			if !ok {
				return
			}
			// Discard queued work once stopping.
			if ctx.Err() != nil {
				return
			}
			s.process(ctx, path)
		case <-ctx.Done():
			return
		}
	}
}

// waitGate blocks while the scan is paused. It returns false if the scan was
// cancelled while waiting.
func (s *Scanner) waitGate(ctx context.Context) bool {
	for {
		s.mu.Lock()
		gate := s.gate
		s.mu.Unlock()

		if gate == nil {
			return true
		}

		select {
		case <-gate:
		case <-ctx.Done():
			return false
		}
	}
}

// process digests and classifies one file.
func (s *Scanner) process(ctx context.Context, path string) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(&types.InternalError{Op: "process " + path, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	outcome, hash := s.classify(path)
	if outcome == types.OutcomeSkip {
		return
	}

	if outcome == types.OutcomeMatch {
		m := types.Match{Path: path, Hash: hash}
		s.matchesMu.Lock()
		s.matches = append(s.matches, m)
		s.matchesMu.Unlock()
		s.matchCount.Add(1)

		s.log.Info("match", "path", path)
		s.publish(events.Event{Type: events.EventMatch, Match: m})
	} else {
		s.nonMatches.Add(1)
	}

	if s.rec == nil {
		return
	}

	// Writes for a digest that already completed are kept even if the scan
	// is stopping.
	err := Record(context.WithoutCancel(ctx), s.rec, outcome, path, hash)
	if err != nil {
		s.fail(err)
	}
}

// classify digests path and compares it with the target.
func (s *Scanner) classify(path string) (types.Outcome, string) {
	outcome, hash, size, err := Classify(s.opts.Digester, path, s.req.TargetHash)
	if err != nil {
		s.skipped.Add(1)
		s.log.Debug("skip", "path", path, "error", err)
		return types.OutcomeSkip, ""
	}

	s.digested.Add(1)
	s.bytesHashed.Add(size)
	return outcome, hash
}

// Classify digests path with d and compares the result with target. A digest
// failure yields OutcomeSkip and the error. The size is zero unless d
// implements digest.SizedDigester.
func Classify(d digest.Digester, path, target string) (types.Outcome, string, int64, error) {
	var (
		hash string
		size int64
		err  error
	)
	if sized, ok := d.(digest.SizedDigester); ok {
		hash, size, err = sized.DigestSize(path)
	} else {
		hash, err = d.Digest(path)
	}
	if err != nil {
		return types.OutcomeSkip, "", 0, err
	}

	if hash == target {
		return types.OutcomeMatch, hash, size, nil
	}
	return types.OutcomeNonMatch, hash, size, nil
}

// Record persists a match or non-match outcome. Skips are not recorded.
func Record(ctx context.Context, rec Recorder, outcome types.Outcome, path, hash string) error {
	ext := filter.Ext(path)
	switch outcome {
	case types.OutcomeMatch:
		return rec.RecordMatch(ctx, path, hash, ext)
	case types.OutcomeNonMatch:
		return rec.RecordNonMatch(ctx, path, hash, ext)
	default:
		return nil
	}
}
