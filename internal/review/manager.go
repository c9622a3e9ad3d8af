package review

import (
	"sync"
	"time"

	"github.com/offerdesk/console-be/internal/sections"
)

// Manager keeps one review session per open offer. Sessions are created on
// first access and dropped when the offer is closed or deleted.
type Manager struct {
	mu       sync.Mutex
	sessions map[uint]*Session

	store    Store
	notifier Notifier
}

func NewManager(store Store, notifier Notifier) *Manager {
	return &Manager{
		sessions: make(map[uint]*Session),
		store:    store,
		notifier: notifier,
	}
}

// Open returns the session for offerID, creating it from the given document
// if none exists yet. An existing session is refreshed with the fetched
// document so external changes are not silently ignored.
func (m *Manager) Open(offerID uint, status string, doc sections.Document, updatedAt time.Time) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[offerID]; ok {
		s.Refresh(status, doc, updatedAt)
		return s
	}
	s := NewSession(offerID, status, doc, updatedAt, m.store, m.notifier)
	m.sessions[offerID] = s
	return s
}

// Get returns the session for offerID if one is open.
func (m *Manager) Get(offerID uint) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[offerID]
	return s, ok
}

// Close drops the session for offerID, discarding any unsaved edit state.
func (m *Manager) Close(offerID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, offerID)
}
