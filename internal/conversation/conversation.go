// Package conversation keeps bounded, advisory context across orchestrator
// calls within one session. Authoritative file state lives in the sandbox.
package conversation

import (
	"fmt"
	"sync"
	"time"
)

const (
	maxMessages  = 20
	trimMessages = 15
	maxEdits     = 10
	trimEdits    = 8
)

// Message is one user or assistant turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// EditRecord summarizes one applied edit.
type EditRecord struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Files       []string  `json:"files"`
	Timestamp   time.Time `json:"timestamp"`
}

// State is the session-scoped conversation memory, created lazily on first
// use and mutated by every orchestrator call.
type State struct {
	mu sync.Mutex

	ConversationID string
	StartedAt      time.Time
	LastUpdated    time.Time

	messages     []Message
	edits        []EditRecord
	majorChanges []string

	UserPreferences map[string]string
}

func New() *State {
	now := time.Now()
	return &State{
		ConversationID:  fmt.Sprintf("conv-%d", now.UnixMilli()),
		StartedAt:       now,
		LastUpdated:     now,
		UserPreferences: map[string]string{},
	}
}

// AddMessage appends a turn, trimming to the most recent window on overflow.
func (s *State) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Role: role, Content: content, Timestamp: time.Now()})
	if len(s.messages) > maxMessages {
		s.messages = append([]Message(nil), s.messages[len(s.messages)-trimMessages:]...)
	}
	s.LastUpdated = time.Now()
}

// AddEdit records an applied edit, trimming on overflow.
func (s *State) AddEdit(rec EditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	s.edits = append(s.edits, rec)
	if len(s.edits) > maxEdits {
		s.edits = append([]EditRecord(nil), s.edits[len(s.edits)-trimEdits:]...)
	}
	s.LastUpdated = time.Now()
}

// AddMajorChange notes a project-evolution milestone.
func (s *State) AddMajorChange(desc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.majorChanges = append(s.majorChanges, desc)
	s.LastUpdated = time.Now()
}

// Messages returns a copy of the retained turns.
func (s *State) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Edits returns a copy of the retained edit records.
func (s *State) Edits() []EditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EditRecord(nil), s.edits...)
}

// MajorChanges returns a copy of recorded milestones.
func (s *State) MajorChanges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.majorChanges...)
}

// RecentUserPrompts returns user-message texts newer than the window.
func (s *State) RecentUserPrompts(window time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-window)
	var out []string
	for _, m := range s.messages {
		if m.Role == "user" && m.Timestamp.After(cutoff) {
			out = append(out, m.Content)
		}
	}
	return out
}
