package hub

import (
	"log/slog"
	"sync"
	"time"

	"bindery/internal/jobs"
	"bindery/internal/logging"
)

// Event is a full-snapshot message for one job.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Job       *jobs.Job `json:"job"`
}

// SnapshotSource supplies the current active-job set for new subscribers.
type SnapshotSource func() []*jobs.Job

const defaultSubscriberBuffer = 64

// Hub distributes job snapshots to a dynamic subscriber set. The lifecycle
// controller is the sole producer.
type Hub struct {
	mu          sync.Mutex
	nextSeq     uint64
	subscribers map[*Subscriber]struct{}
	source      SnapshotSource
	bufferSize  int
	logger      *slog.Logger
}

// Subscriber is one observer's event stream.
type Subscriber struct {
	events  chan Event
	hub     *Hub
	closed  bool
	dropped uint64
}

// New constructs a hub. source may be nil, in which case new subscribers
// receive no initial snapshot.
func New(source SnapshotSource, bufferSize int, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultSubscriberBuffer
	}
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		source:      source,
		bufferSize:  bufferSize,
		logger:      logging.NewComponentLogger(logger, "hub"),
	}
}

// Publish sends a snapshot of the job to every subscriber. Non-blocking: a
// full subscriber buffer drops its oldest event to make room.
func (h *Hub) Publish(job *jobs.Job) {
	if h == nil || job == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	evt := h.nextEventLocked(job)
	for sub := range h.subscribers {
		h.deliverLocked(sub, evt)
	}
}

// Subscribe registers a new observer. The returned subscriber's channel first
// carries a snapshot of every active job, then live events in publish order.
// Snapshot and registration happen under the same lock Publish takes, so a
// change landing during subscription is either in the snapshot or delivered
// as an event, never lost between the two.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		events: make(chan Event, h.bufferSize),
		hub:    h,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.source != nil {
		for _, job := range h.source() {
			h.deliverLocked(sub, h.nextEventLocked(job))
		}
	}
	h.subscribers[sub] = struct{}{}
	return sub
}

// SubscriberCount reports the number of connected observers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) nextEventLocked(job *jobs.Job) Event {
	h.nextSeq++
	return Event{
		Sequence:  h.nextSeq,
		Timestamp: time.Now().UTC(),
		Job:       job.Clone(),
	}
}

func (h *Hub) deliverLocked(sub *Subscriber, evt Event) {
	if sub.closed {
		return
	}
	for {
		select {
		case sub.events <- evt:
			return
		default:
		}
		select {
		case <-sub.events:
			sub.dropped++
		default:
		}
	}
}

// Events exposes the subscriber's stream. The channel is closed by Close.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Dropped reports how many events this subscriber lost to backpressure.
func (s *Subscriber) Dropped() uint64 {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.dropped
}

// Close unregisters the subscriber and closes its channel.
func (s *Subscriber) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.hub.subscribers, s)
	close(s.events)
}
