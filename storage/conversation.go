// Package storage provides persistence for the answering engine's
// collaborators: conversation history, knowledge documents, demo
// overrides, assignments and profiles.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interfaces
// - Allows swapping between memory and SQLite without API changes
// - Each storage implementation encapsulates its own data structures

package storage

import (
	"context"

	"github.com/richinex/concierge/convo"
)

// ConversationStorage defines the interface for storing conversation history.
type ConversationStorage interface {
	// Save replaces the history of a session.
	Save(ctx context.Context, sessionID string, history []convo.Turn) error

	// Load loads conversation history for a session.
	// Returns empty slice (not nil) if session doesn't exist.
	// Returns error only for storage failures, not missing sessions.
	Load(ctx context.Context, sessionID string) ([]convo.Turn, error)

	// Delete deletes conversation history for a session.
	Delete(ctx context.Context, sessionID string) error

	// ListSessions lists all session IDs.
	ListSessions(ctx context.Context) ([]string, error)

	// Exists checks if a session exists.
	Exists(ctx context.Context, sessionID string) (bool, error)
}
