// Package session keeps per-session conversation history for the
// lifetime of the process. Sessions are created lazily on first use and
// never expire or persist.
package session

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one conversation turn: a user question or an assistant answer.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store maps session ids to their ordered turn history. Appends to the
// same session are serialized; the append is a read-modify-write and
// rapid duplicate requests must not lose updates.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string][]Turn)}
}

// History returns a copy of the session's turns, oldest first. Unknown
// session ids yield an empty history.
func (s *Store) History(sessionID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append records a completed exchange: exactly one user question
// followed by one assistant answer.
func (s *Store) Append(sessionID, question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = append(s.sessions[sessionID],
		Turn{Role: RoleUser, Content: question},
		Turn{Role: RoleAssistant, Content: answer},
	)

	log.Debug().
		Str("session_id", sessionID).
		Int("total_turns", len(s.sessions[sessionID])).
		Msg("Appended exchange to session")
}

// Len returns the number of turns stored for a session.
func (s *Store) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}
