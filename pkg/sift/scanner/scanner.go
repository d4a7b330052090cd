package scanner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/sift/pkg/sift/events"
	"github.com/jamesainslie/sift/pkg/sift/filter"
	"github.com/jamesainslie/sift/pkg/sift/logging"
	"github.com/jamesainslie/sift/pkg/sift/types"
	"github.com/jamesainslie/sift/pkg/sift/walker"
)

// Summary is the outcome of a finished scan.
type Summary struct {
	ScanID     string             `json:"scan_id"`
	State      State              `json:"-"`
	StateName  string             `json:"state"`
	Request    types.ScanRequest  `json:"request"`
	Matches    []types.Match      `json:"matches"`
	Progress   types.ScanProgress `json:"progress"`
	Walk       walker.Stats       `json:"walk"`
	Workers    int                `json:"workers"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`

	// Err is the fault that ended a Failed scan.
	Err error `json:"-"`
}

// Elapsed returns the wall time of the scan.
func (s Summary) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Scanner runs one search. It is started at most once.
type Scanner struct {
	id     string
	req    types.ScanRequest
	rec    Recorder
	opts   Options
	walker *walker.Walker
	log    *logging.Logger

	// mu guards state, gate and cancel.
	mu     sync.Mutex
	state  State
	gate   chan struct{} // non-nil while paused; closed on resume
	cancel context.CancelFunc

	stopped  atomic.Bool
	failOnce sync.Once
	failErr  error

	// Atomic counters for progress reporting.
	submitted    atomic.Int64
	digested     atomic.Int64
	matchCount   atomic.Int64
	nonMatches   atomic.Int64
	skipped      atomic.Int64
	bytesHashed  atomic.Int64
	walkComplete atomic.Bool

	matchesMu sync.Mutex
	matches   []types.Match

	startedAt time.Time
	done      chan struct{}
	summary   Summary
}

// New validates req and prepares a scanner. No filesystem traversal happens
// until Start. rec may be nil, in which case outcomes are not persisted.
func New(req types.ScanRequest, rec Recorder, opts Options) (*Scanner, error) {
	norm, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	opts = opts.withDefaults()

	s := &Scanner{
		id:   uuid.New().String(),
		req:  norm,
		rec:  rec,
		opts: opts,
		walker: walker.New(walker.Options{
			Exclusions:  filter.NewExclusions(norm.Exclude...),
			Extensions:  filter.NewExtensions(norm.Extensions...),
			MinSize:     norm.MinSize,
			QueueSize:   opts.QueueSize,
			Concurrency: opts.WalkWorkers,
		}),
		done: make(chan struct{}),
	}
	s.log = logging.Get("scanner").With("scan", s.id[:8])
	return s, nil
}

// ID returns the scan identifier.
func (s *Scanner) ID() string { return s.id }

// Request returns the normalized request.
func (s *Scanner) Request() types.ScanRequest { return s.req }

// Workers returns the size of the worker pool.
func (s *Scanner) Workers() int { return s.opts.Workers }

// State returns the current lifecycle state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns a snapshot of the counters.
func (s *Scanner) Progress() types.ScanProgress {
	return types.ScanProgress{
		Submitted:    s.submitted.Load(),
		Digested:     s.digested.Load(),
		Matches:      s.matchCount.Load(),
		NonMatches:   s.nonMatches.Load(),
		Skipped:      s.skipped.Load(),
		BytesHashed:  s.bytesHashed.Load(),
		WalkComplete: s.walkComplete.Load(),
	}
}

// Matches returns the matches found so far, sorted by path.
func (s *Scanner) Matches() []types.Match {
	s.matchesMu.Lock()
	out := make([]types.Match, len(s.matches))
	copy(out, s.matches)
	s.matchesMu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Start begins the scan and returns immediately. Cancelling ctx has the
// same effect as Stop. A scanner that has left the idle state returns
// types.ErrNotRestartable.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return types.ErrNotRestartable
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("scan started",
		"roots", s.req.Roots,
		"workers", s.opts.Workers,
		"queue", s.opts.QueueSize,
		"exclude", len(s.req.Exclude),
	)
	s.publish(events.Event{Type: events.EventStarted})

	jobs := make(chan string, s.opts.QueueSize)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.produce(runCtx, jobs)
	}()

	for range s.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.work(runCtx, jobs)
		}()
	}

	go func() {
		wg.Wait()
		s.finish(ctx)
	}()

	return nil
}

// Pause makes workers wait before taking their next job. Digests already in
// progress run to completion. It has no effect unless the scan is running.
func (s *Scanner) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || s.stopped.Load() {
		return
	}
	s.state = StatePaused
	s.gate = make(chan struct{})
	s.log.Info("scan paused")
}

// Resume releases paused workers. It has no effect unless the scan is paused.
func (s *Scanner) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePaused {
		return
	}
	s.state = StateRunning
	close(s.gate)
	s.gate = nil
	s.log.Info("scan resumed")
}

// Stop ends the scan. Queued jobs that have not started are discarded and
// in-flight digests finish. The state becomes Stopped once every worker has
// exited. Stopping an idle scanner moves it straight to Stopped.
func (s *Scanner) Stop() {
	s.stopped.Store(true)

	s.mu.Lock()
	switch {
	case s.state == StateIdle:
		s.state = StateStopped
		s.summary = s.buildSummary(StateStopped, time.Now())
		s.mu.Unlock()
		close(s.done)
		return
	case s.state.Terminal():
		s.mu.Unlock()
		return
	}

	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	s.log.Info("scan stop requested")
	cancel()
}

// Done is closed when the scan reaches a terminal state.
func (s *Scanner) Done() <-chan struct{} { return s.done }

// Wait blocks until the scan reaches a terminal state and returns its summary.
func (s *Scanner) Wait() Summary {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// produce drives the walker and submits paths in walk order. It blocks when
// the job queue is full.
func (s *Scanner) produce(ctx context.Context, jobs chan<- string) {
	defer close(jobs)

	for path := range s.walker.Walk(ctx, s.req.Roots...) {
		select {
		case jobs <- path:
			s.submitted.Add(1)
		case <-ctx.Done():
			return
		}
	}
	s.walkComplete.Store(true)

	st := s.walker.Stats()
	s.log.Debug("walk complete",
		"dirs", st.Dirs,
		"pruned", st.Pruned,
		"yielded", st.Yielded,
		"errors", st.Errors,
	)
}

// fail records the first internal fault and cancels the scan.
func (s *Scanner) fail(err error) {
	s.failOnce.Do(func() {
		s.mu.Lock()
		s.failErr = err
		if s.gate != nil {
			close(s.gate)
			s.gate = nil
		}
		cancel := s.cancel
		s.mu.Unlock()

		s.log.Error("scan failed", "error", err)
		s.publish(events.Event{Type: events.EventError, Err: err})
		cancel()
	})
}

func (s *Scanner) finish(parent context.Context) {
	s.mu.Lock()
	final := StateCompleted
	switch {
	case s.failErr != nil:
		final = StateFailed
	case s.stopped.Load() || parent.Err() != nil:
		final = StateStopped
	}
	s.cancel()
	s.state = final
	s.gate = nil
	s.summary = s.buildSummary(final, time.Now())
	summary := s.summary
	s.mu.Unlock()

	s.log.Info("scan finished",
		"state", final,
		"digested", summary.Progress.Digested,
		"matches", summary.Progress.Matches,
		"skipped", summary.Progress.Skipped,
		"elapsed", summary.Elapsed().Round(time.Millisecond),
	)
	s.publish(events.Event{Type: events.EventFinished, State: final.String()})
	close(s.done)
}

// buildSummary must be called with mu held.
func (s *Scanner) buildSummary(final State, at time.Time) Summary {
	return Summary{
		ScanID:     s.id,
		State:      final,
		StateName:  final.String(),
		Request:    s.req,
		Matches:    s.Matches(),
		Progress:   s.Progress(),
		Walk:       s.walker.Stats(),
		Workers:    s.opts.Workers,
		StartedAt:  s.startedAt,
		FinishedAt: at,
		Err:        s.failErr,
	}
}

func (s *Scanner) publish(e events.Event) {
	if s.opts.Events == nil {
		return
	}
	e.ScanID = s.id
	e.Progress = s.Progress()
	s.opts.Events.Publish(e)
}
