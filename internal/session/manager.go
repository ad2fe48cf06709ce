package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager is the in-memory registry of live drawing sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewManager builds an empty registry.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Create allocates a new session with a UUID identity.
func (m *Manager) Create(width, height int) *Session {
	s := New(uuid.NewString(), width, height, m.logger)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session created", zap.String("session_id", s.ID))
	return s
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove discards a session. Safe to call for unknown ids.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
