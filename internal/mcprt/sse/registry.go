package sse

import (
	"sync"
	"time"

	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
)

// Registry tracks one Stream per active SSE connection, keyed by its
// session id. The Streamable HTTP transport owns one Registry. Every
// stream it creates gets its own heartbeat goroutine, stopped when
// Close is called.
type Registry struct {
	mu                sync.RWMutex
	streams           map[string]*Stream
	ringSize          int
	heartbeatInterval time.Duration
	stop              chan struct{}
	metrics           *metrics.Metrics
}

// NewRegistry returns an empty Registry; every stream it creates gets a
// replay ring of ringSize events and, if heartbeatInterval is positive,
// a heartbeat published at that interval until Close is called. m may
// be nil to disable metrics recording.
func NewRegistry(ringSize int, heartbeatInterval time.Duration, m *metrics.Metrics) *Registry {
	return &Registry{
		streams:           make(map[string]*Stream),
		ringSize:          ringSize,
		heartbeatInterval: heartbeatInterval,
		stop:              make(chan struct{}),
		metrics:           m,
	}
}

// GetOrCreate returns the stream for id, creating one (and starting its
// heartbeat) if it doesn't exist yet.
func (r *Registry) GetOrCreate(id string) *Stream {
	r.mu.RLock()
	s, ok := r.streams[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.streams[id]; ok {
		return s
	}
	s = NewStream(id, r.ringSize, r.metrics)
	r.streams[id] = s
	if r.metrics != nil {
		r.metrics.SSEStreamsActive.Inc()
	}
	if r.heartbeatInterval > 0 {
		StartHeartbeat(s, r.heartbeatInterval, r.stop)
	}
	return s
}

// Close stops every stream's heartbeat goroutine. Safe to call once.
func (r *Registry) Close() {
	close(r.stop)
}

// Get returns the stream for id, if one exists.
func (r *Registry) Get(id string) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[id]
	return s, ok
}

// Remove drops the stream for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.streams[id]; ok && r.metrics != nil {
		r.metrics.SSEStreamsActive.Dec()
	}
	delete(r.streams, id)
}

// Len reports the number of active streams, for metrics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}
