// Package session implements server-side session tracking for the
// Streamable HTTP transport: opaque session ids, an LRU-bounded store,
// and a background sweeper that expires sessions after inactivity.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/mcprt/internal/mcprt/cache"
	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
	"github.com/edgecomet/mcprt/pkg/types"
)

// Manager owns the session store and its sweeper goroutine.
type Manager struct {
	store   *cache.Cache[string, *types.Session]
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New returns a Manager with the given capacity and inactivity timeout.
// Capacity 0 disables session tracking (pass-through cache). m may be
// nil to disable metrics recording.
func New(capacity int, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		store:   cache.New[string, *types.Session](capacity, "session", m),
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// newSessionID returns a 32-character hex token from 16 bytes of
// crypto/rand entropy, the Go equivalent of a 128-bit opaque session id.
func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create allocates a new session and stores it.
func (m *Manager) Create() (*types.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := &types.Session{ID: id, CreatedAt: now, LastActivityAt: now}
	m.store.Put(id, sess)
	if m.metrics != nil {
		m.metrics.SessionsCreated.Inc()
		m.metrics.SessionsActive.Set(float64(m.store.Len()))
	}
	return sess, nil
}

// Get returns the session for id, touching its last-activity timestamp
// and reporting ErrSessionNotFound if it is absent or expired.
func (m *Manager) Get(id string) (*types.Session, error) {
	sess, ok := m.store.Get(id)
	if !ok {
		return nil, types.ErrSessionNotFound
	}
	if sess.Expired(time.Now(), m.timeout) {
		m.store.Remove(id)
		if m.metrics != nil {
			m.metrics.SessionsExpired.Inc()
			m.metrics.SessionsActive.Set(float64(m.store.Len()))
		}
		return nil, types.ErrSessionNotFound
	}
	sess.LastActivityAt = time.Now()
	return sess, nil
}

// Terminate removes a session immediately (DELETE on the Streamable
// HTTP endpoint), reporting whether a session existed to remove.
func (m *Manager) Terminate(id string) bool {
	existed := m.store.Remove(id)
	if existed && m.metrics != nil {
		m.metrics.SessionsTerminated.Inc()
		m.metrics.SessionsActive.Set(float64(m.store.Len()))
	}
	return existed
}

// Len reports the number of tracked sessions.
func (m *Manager) Len() int {
	return m.store.Len()
}

// sweep removes every session that has exceeded the inactivity timeout.
func (m *Manager) sweep() int {
	removed := 0
	for _, id := range m.store.Keys() {
		sess, ok := m.store.Peek(id)
		if !ok {
			continue
		}
		if sess.Expired(time.Now(), m.timeout) {
			m.store.Remove(id)
			removed++
		}
	}
	if removed > 0 && m.metrics != nil {
		m.metrics.SessionsExpired.Add(float64(removed))
		m.metrics.SessionsActive.Set(float64(m.store.Len()))
	}
	return removed
}

// StartSweeper launches the background expiry sweeper, ticking at the
// given interval until Stop is called. Mirrors the ticker-driven
// scheduler loop pattern used elsewhere in this runtime for periodic
// background work.
func (m *Manager) StartSweeper(interval time.Duration) {
	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	m.stopCh = make(chan struct{})
	m.stoppedCh = make(chan struct{})
	stopCh := m.stopCh
	stoppedCh := m.stoppedCh
	m.mu.Unlock()

	go func() {
		defer close(stoppedCh)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := m.sweep(); n > 0 && m.logger != nil {
					m.logger.Debug("session sweep removed expired sessions", zap.Int("count", n))
				}
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweeper goroutine, blocking until it has exited.
func (m *Manager) Stop() {
	m.mu.Lock()
	stopCh := m.stopCh
	stoppedCh := m.stoppedCh
	m.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-stoppedCh
}
