// Package proto defines the shared conversation and workflow types used
// across the interview engine, the generation stages, and the orchestrator.
package proto

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleUser is a message from the human stakeholder.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the system.
	RoleAssistant Role = "assistant"
	// RoleSystem is an instruction message, never shown to the user.
	RoleSystem Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Message is one entry in a conversation transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates a user message stamped with the current UTC time.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now().UTC()}
}

// NewAssistantMessage creates an assistant message stamped with the current UTC time.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now().UTC()}
}

// Transcript is an ordered, append-only sequence of messages. It is
// append-only while the interview runs and read-only afterward.
type Transcript []Message

// AssistantTurns returns the number of assistant messages in the transcript.
func (t Transcript) AssistantTurns() int {
	n := 0
	for i := range t {
		if t[i].Role == RoleAssistant {
			n++
		}
	}
	return n
}

// Render serializes the transcript to the plain "Role: content" form the
// generation stages feed to the text-generation service.
func (t Transcript) Render() string {
	var b strings.Builder
	for i := range t {
		msg := &t[i]
		var label string
		switch msg.Role {
		case RoleUser:
			label = "User"
		case RoleAssistant:
			label = "Assistant"
		case RoleSystem:
			label = "System"
		default:
			label = string(msg.Role)
		}
		fmt.Fprintf(&b, "%s: %s\n\n", label, msg.Content)
	}
	return b.String()
}
