// Package session persists per-session interview state: transcript, cursor,
// completion, and the user identity the session runs under.
package session

import (
	"specsmith/pkg/proto"
)

// Cursor tracks the interview position against the question catalog.
// Sections are numbered from 1, questions from 0.
type Cursor struct {
	SectionIndex   int  `json:"current_section_index"`
	QuestionIndex  int  `json:"current_question_index"`
	IsFirstMessage bool `json:"is_first_message"`
}

// NewCursor returns the initial cursor position.
func NewCursor() Cursor {
	return Cursor{SectionIndex: 1, QuestionIndex: 0, IsFirstMessage: true}
}

// State is the durable per-session interview record.
type State struct {
	SessionID       string           `json:"session_id"`
	Username        string           `json:"username"`
	Transcript      proto.Transcript `json:"messages"`
	Cursor          Cursor           `json:"cursor"`
	ProgressPercent float64          `json:"progress_percent"`
	IsComplete      bool             `json:"is_complete"`
}

// NewState returns the default empty state for a session.
func NewState(sessionID, username string) *State {
	return &State{
		SessionID: sessionID,
		Username:  username,
		Cursor:    NewCursor(),
	}
}

// AppendMessage appends a message to the transcript.
func (s *State) AppendMessage(msg proto.Message) {
	s.Transcript = append(s.Transcript, msg)
}
