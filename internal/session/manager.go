package session

import (
	"sync"

	"branchchat/pkg/errors"
	"branchchat/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns all live sessions, keyed by id. Sessions are independent;
// the manager only synchronizes the registry itself.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewManager creates an empty session registry
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger.Get(),
	}
}

// Create starts a new session with a fresh id
func (m *Manager) Create() *Session {
	s := New(uuid.New().String())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("Session created", zap.String("session_id", s.ID))
	return s
}

// Get returns the session with this id
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.NewSessionNotFound(id)
	}
	return s, nil
}

// Delete drops the session with this id, reporting whether it existed
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.logger.Info("Session deleted", zap.String("session_id", id))
	}
	return ok
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
