package services

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionManager owns the open evaluation sessions of a server process.
type SessionManager struct {
	checklist *Checklist
	drafts    *DraftService
	records   *RecordService
	logger    *zap.Logger
	opts      SessionOptions

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(checklist *Checklist, drafts *DraftService, records *RecordService, logger *zap.Logger, opts SessionOptions) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		checklist: checklist,
		drafts:    drafts,
		records:   records,
		logger:    logger,
		opts:      opts,
		sessions:  map[string]*Session{},
	}
}

// Open creates an idle session. Autosave starts once a target is selected.
func (m *SessionManager) Open() (string, *Session) {
	id := uuid.NewString()
	s := NewSession(m.checklist, m.drafts, m.records, m.logger.With(zap.String("session_id", id)), m.opts)
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return id, s
}

func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, notFoundf("session %s not found", id)
	}
	return s, nil
}

// Close stops the session's autosave and forgets it. It reports false
// when id is unknown.
func (m *SessionManager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// CloseAll stops every session, e.g. on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	open := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()
	for _, s := range open {
		s.Close()
	}
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
