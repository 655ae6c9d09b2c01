package session

import (
	"sync"

	"flowsniffer/internal/logger"
	"flowsniffer/pkg/model"
)

// Manager 全局会话管理器
type Manager struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*Session
	log      logger.Logger
}

// NewManager 创建会话管理器
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		sessions: make(map[model.SessionID]*Session),
		log:      l,
	}
}

// Add 注册会话
func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = s
	m.log.Info("创建监听会话", "sessionID", string(s.ID))
}

// Get 获取会话
func (m *Manager) Get(id model.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete 销毁会话
func (m *Manager) Delete(id model.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	m.log.Info("销毁监听会话", "sessionID", string(id))
}

// List 返回所有活动会话
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list
}
