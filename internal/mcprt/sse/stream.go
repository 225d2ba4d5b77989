package sse

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
	"github.com/edgecomet/mcprt/pkg/types"
)

// Stream is one logical SSE connection's event history and live fan-out.
// Per spec §9 design notes, there is no generator/async machinery here:
// publish appends to the replay ring and pushes to each subscriber's own
// buffered channel, which the owning transport goroutine drains.
type Stream struct {
	id      string
	ring    *ring
	seq     atomic.Int64
	metrics *metrics.Metrics

	mu   sync.Mutex
	subs map[int]chan types.Event
	next int
}

// NewStream returns a Stream with a replay ring of the given capacity.
// m may be nil to disable metrics recording.
func NewStream(id string, ringSize int, m *metrics.Metrics) *Stream {
	return &Stream{id: id, ring: newRing(ringSize), subs: make(map[int]chan types.Event), metrics: m}
}

// ID returns the stream's identifier (the Mcp-Session-Id or a
// transport-assigned connection id).
func (s *Stream) ID() string { return s.id }

// Publish appends an event to the replay ring, assigning it the next
// monotonically increasing event ID, and fans it out to live
// subscribers. Slow subscribers are dropped from delivery for this
// event rather than blocking the publisher (their buffered channel is
// full); they can still recover via Since on reconnect.
func (s *Stream) Publish(eventType, data string) types.Event {
	ev := types.Event{
		ID:       s.seq.Add(1),
		Type:     eventType,
		Data:     data,
		Sequence: time.Now().UnixNano(),
	}
	evicted := s.ring.add(ev)
	if s.metrics != nil {
		s.metrics.SSEEventsPublished.Inc()
		if evicted {
			s.metrics.SSEEventsEvicted.Inc()
		}
	}

	s.publishLive(ev)
	return ev
}

// Heartbeat delivers a comment-only keep-alive frame to live subscribers
// without assigning it an event id or storing it in the replay ring: a
// reconnecting client has nothing to recover from a heartbeat, so it
// must never occupy a ring slot or push a real event out of the buffer.
func (s *Stream) Heartbeat() {
	s.publishLive(types.Event{Type: "heartbeat"})
}

func (s *Stream) publishLive(ev types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new live listener and returns its channel plus
// an unsubscribe function. The channel is buffered so a burst of
// publishes doesn't stall the publisher.
func (s *Stream) Subscribe(buffer int) (<-chan types.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan types.Event, buffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

// Since returns every replayed event after lastEventID, for a client
// reconnecting with a Last-Event-ID header.
func (s *Stream) Since(lastEventID int64) []types.Event {
	return s.ring.since(lastEventID)
}

// All returns the full replay buffer, oldest first.
func (s *Stream) All() []types.Event {
	return s.ring.all()
}

// SubscriberCount reports the number of live listeners, for metrics.
func (s *Stream) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
