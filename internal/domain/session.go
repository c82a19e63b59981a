// Package domain holds the core value types shared across the client.
package domain

import (
	"time"
)

// DefaultUserID is used when the caller never supplied an identifier.
// It is a free-text label, not a verified identity.
const DefaultUserID = "anonymous"

// Sender identifies who produced a transcript entry.
type Sender string

const (
	// SenderUser marks an entry typed by the local user.
	SenderUser Sender = "user"
	// SenderAssistant marks an entry produced by the backend.
	SenderAssistant Sender = "assistant"
)

// ChatEntry is one line of the local conversation transcript.
// The transcript is display-only and never sent to the server.
type ChatEntry struct {
	ID        string
	Text      string
	Sender    Sender
	Timestamp time.Time
}

// Session identifies one logical conversation with the backend.
// SessionID is assigned by the server on the first response and is empty
// before that; a session may span multiple connections.
type Session struct {
	SessionID  string
	UserID     string
	Transcript []ChatEntry
	CreatedAt  time.Time
}

// NewSession creates a session for the given user, defaulting the user id.
func NewSession(userID string) *Session {
	if userID == "" {
		userID = DefaultUserID
	}
	return &Session{
		UserID:    userID,
		CreatedAt: time.Now(),
	}
}

// Append records a transcript entry.
func (s *Session) Append(entry ChatEntry) {
	s.Transcript = append(s.Transcript, entry)
}

// Recent returns the last n transcript entries.
func (s *Session) Recent(n int) []ChatEntry {
	if n >= len(s.Transcript) {
		return s.Transcript
	}
	return s.Transcript[len(s.Transcript)-n:]
}
