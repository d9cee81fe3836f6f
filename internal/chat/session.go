package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/pdfqa/internal/models"
)

// Session is one conversation. Its history lives only in memory.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu    sync.Mutex
	turns []models.Turn
}

// NewSession returns an empty session with a random ID.
func NewSession() *Session {
	return &Session{ID: uuid.NewString(), CreatedAt: time.Now()}
}

// Add appends a turn.
func (s *Session) Add(role models.Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, models.Turn{Role: role, Text: text, At: time.Now()})
}

// History returns a copy of the turns in order.
func (s *Session) History() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Sessions holds the live sessions of a server process.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions returns an empty session registry.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// Create registers and returns a new session.
func (s *Sessions) Create() *Session {
	sess := NewSession()
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session with id.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
