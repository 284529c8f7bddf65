package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/richinex/concierge/convo"
)

// InMemoryStorage implements ConversationStorage using an in-memory map.
// Data is lost when process terminates. Suitable for tests and ephemeral
// chat sessions.
type InMemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string][]convo.Turn
}

// NewInMemoryStorage creates a new in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		sessions: make(map[string][]convo.Turn),
	}
}

// Save stores a copy of history.
func (s *InMemoryStorage) Save(ctx context.Context, sessionID string, history []convo.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = convo.Append(nil, history...)
	return nil
}

// Load returns a copy of the session history, empty if unknown.
func (s *InMemoryStorage) Load(ctx context.Context, sessionID string) ([]convo.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return convo.Append(nil, s.sessions[sessionID]...), nil
}

// Delete deletes conversation history for a session.
func (s *InMemoryStorage) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// ListSessions lists all session IDs in lexical order.
func (s *InMemoryStorage) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.sessions))
	for sessionID := range s.sessions {
		sessions = append(sessions, sessionID)
	}
	sort.Strings(sessions)
	return sessions, nil
}

// Exists checks if a session exists.
func (s *InMemoryStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.sessions[sessionID]
	return ok, nil
}

var _ ConversationStorage = (*InMemoryStorage)(nil)
