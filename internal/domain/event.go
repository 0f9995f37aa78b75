package domain

import "encoding/json"

// EventType represents the type of a stream event.
type EventType string

const (
	EventTypeStart          EventType = "start"
	EventTypeTextStart      EventType = "text-start"
	EventTypeTextDelta      EventType = "text-delta"
	EventTypeTextEnd        EventType = "text-end"
	EventTypeToolInvocation EventType = "tool-invocation"
	EventTypeToolResult     EventType = "tool-result"
	EventTypeError          EventType = "error"
	EventTypeFinish         EventType = "finish"
)

// StreamEvent is the wire unit of one streaming turn. Events of a turn form
// a strict total order; finish is terminal and always last.
type StreamEvent struct {
	Type EventType `json:"type"`

	// ID identifies the text segment for text-start/text-delta/text-end.
	ID string `json:"id,omitempty"`
	// Delta is the appended text for text-delta.
	Delta string `json:"delta,omitempty"`

	// Tool fields, set on tool-invocation and tool-result. Input and
	// Output are opaque to the reconciler.
	ToolName string          `json:"toolName,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
	Output   json.RawMessage `json:"output,omitempty"`

	// Error carries a human-readable message on error events.
	Error string `json:"error,omitempty"`
}

// StartEvent begins a turn.
func StartEvent() StreamEvent {
	return StreamEvent{Type: EventTypeStart}
}

// TextStartEvent opens a text segment.
func TextStartEvent(id string) StreamEvent {
	return StreamEvent{Type: EventTypeTextStart, ID: id}
}

// TextDeltaEvent appends text to an open segment.
func TextDeltaEvent(id, delta string) StreamEvent {
	return StreamEvent{Type: EventTypeTextDelta, ID: id, Delta: delta}
}

// TextEndEvent closes a text segment.
func TextEndEvent(id string) StreamEvent {
	return StreamEvent{Type: EventTypeTextEnd, ID: id}
}

// ToolInvocationEvent records a tool call being issued.
func ToolInvocationEvent(toolName string, input json.RawMessage) StreamEvent {
	return StreamEvent{Type: EventTypeToolInvocation, ToolName: toolName, Input: input}
}

// ToolResultEvent records a tool call completing.
func ToolResultEvent(toolName string, output json.RawMessage) StreamEvent {
	return StreamEvent{Type: EventTypeToolResult, ToolName: toolName, Output: output}
}

// FinishEvent terminates a turn.
func FinishEvent() StreamEvent {
	return StreamEvent{Type: EventTypeFinish}
}

// ChatRequest is the submission payload: the full history the turn needs.
// The orchestrator holds no conversation state across requests.
type ChatRequest struct {
	Messages []Message `json:"messages"`
}
