// Package domain defines the core domain models for the chat orchestrator.
package domain

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType represents the type of a message part.
type PartType string

const (
	// PartTypeText is the only part type the orchestrator interprets.
	PartTypeText PartType = "text"
	// PartTypeToolInvocation and PartTypeToolResult are carried opaquely
	// for display; their payload is never interpreted.
	PartTypeToolInvocation PartType = "tool-invocation"
	PartTypeToolResult     PartType = "tool-result"
)

// Part is a typed fragment of a message's content. Text parts carry Text;
// every other type is pass-through and keeps its raw payload.
type Part struct {
	Type    PartType        `json:"type"`
	Text    string          `json:"text,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TextPart creates a text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// Message represents a single message in a conversation. The ID is stable
// once assigned and is the join key for duration tracking.
type Message struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewMessageID generates a short unique message id.
func NewMessageID() string {
	return "msg_" + uuid.New().String()[:8]
}

// NewUserMessage creates a user message with a single text part.
func NewUserMessage(text string) Message {
	return Message{
		ID:    NewMessageID(),
		Role:  RoleUser,
		Parts: []Part{TextPart(text)},
	}
}

// NewAssistantMessage creates an empty assistant message. Parts are filled
// in by the reconciler as the stream arrives.
func NewAssistantMessage(id string) Message {
	return Message{ID: id, Role: RoleAssistant, Parts: []Part{}}
}

// Text returns the visible content of the message: all text parts
// concatenated in order. Non-text parts are ignored.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Conversation is an append-only ordered sequence of messages.
type Conversation []Message

// LastMessage returns the most recent message, or nil if empty.
func (c Conversation) LastMessage() *Message {
	if len(c) == 0 {
		return nil
	}
	return &c[len(c)-1]
}

// UserMessages returns the user messages in conversation order.
func (c Conversation) UserMessages() []Message {
	var out []Message
	for _, m := range c {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}

// DurationMap maps an assistant message id to its elapsed streaming time in
// milliseconds. Keys are not required to be dense.
type DurationMap map[string]int64

// InitState tracks conversation initialization. It is persisted alongside
// the conversation so a reload never replays the welcome message.
type InitState string

const (
	InitStateEmpty        InitState = "empty"
	InitStateWelcomeShown InitState = "welcome_shown"
	InitStateActive       InitState = "active"
)
