// Package events fans scan events out to subscribers such as the CLI
// printer and the live terminal feed.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/sift/pkg/sift/types"
)

// EventType represents the type of scan event.
type EventType int

const (
	// EventStarted is published once when a scan begins.
	EventStarted EventType = iota
	// EventMatch is published for every file whose digest equals the target.
	EventMatch
	// EventFinished is published once when a scan reaches a terminal state.
	EventFinished
	// EventError is published at most once when a scan fails.
	EventError
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventMatch:
		return "match"
	case EventFinished:
		return "finished"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single scan notification.
type Event struct {
	Type   EventType
	ScanID string
	Time   time.Time

	// Match is set for EventMatch.
	Match types.Match

	// State is the terminal state name for EventFinished.
	State string

	// Progress is the counter snapshot at the time of the event.
	Progress types.ScanProgress

	// Err is set for EventError.
	Err error
}

// DefaultBuffer is the channel capacity used when Subscribe is given zero.
const DefaultBuffer = 100

// Subscriber receives events on Events until it is unsubscribed or the
// broadcaster is closed.
type Subscriber struct {
	ID     string
	Events chan Event

	done     chan struct{}
	doneOnce sync.Once
}

func (s *Subscriber) stop() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Broadcaster manages subscribers and distributes scan events.
//
// Publish blocks until every subscriber has accepted the event, so match
// events are never dropped. A subscriber that stops reading must
// Unsubscribe to release publishers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]*Subscriber),
		done:        make(chan struct{}),
	}
}

// Subscribe creates a new subscription. A buffer of zero uses DefaultBuffer.
// It returns nil if the broadcaster is closed.
func (b *Broadcaster) Subscribe(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isClosed() {
		return nil
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.RLock()
	sub, ok := b.subscribers[id]
	b.mu.RUnlock()
	if !ok {
		return
	}

	// Release publishers blocked on this subscriber before taking the
	// write lock they are holding a read lock against.
	sub.stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Publish delivers e to every subscriber. Time is filled in if zero.
func (b *Broadcaster) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.Events <- e:
		case <-sub.done:
		case <-b.done:
			return
		}
	}
}

// Close closes the broadcaster and all subscriptions.
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() { close(b.done) })

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		sub.stop()
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broadcaster) isClosed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
