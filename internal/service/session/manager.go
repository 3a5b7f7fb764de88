package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Manager creates and tracks sessions. All sessions share one set of options,
// including the turn ID generator.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// Open creates a session for sink. The session is closed when ctx is done
// or Close is called with its ID.
func (m *Manager) Open(ctx context.Context, sink ViewSink) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionClosed
	}
	id := uuid.NewString()
	s := New(id, sink, m.opts)
	s.unwatch = context.AfterFunc(ctx, func() { m.Close(id) })
	m.sessions[id] = s
	m.mu.Unlock()

	m.opts.Metrics.RecordSessionOpened()
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close closes and forgets the session with id. Unknown IDs are ignored.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.unwatch()
	s.Close()
	m.opts.Metrics.RecordSessionClosed()
}

// Shutdown closes every session and refuses new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.unwatch()
			s.Close()
			m.opts.Metrics.RecordSessionClosed()
		}(s)
	}
	wg.Wait()

	log.Info().Int("sessions", len(sessions)).Msg("Session manager shut down")
}
