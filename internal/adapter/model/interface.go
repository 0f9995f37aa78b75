// Package model provides an abstraction for the language model backend.
package model

import "context"

// ChatMessage is an OpenAI-style chat message.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Tool is a tool definition announced to the model.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable function.
type ToolFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the function name and JSON-encoded arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// StepRequest is one reasoning step: the accumulated history plus the tools
// the model may call. An empty Tools slice disables tool use, which is how
// the orchestrator forces a final answer at the step ceiling.
type StepRequest struct {
	Messages []ChatMessage
	Tools    []Tool
}

// DeltaFunc receives each text increment as it is produced.
type DeltaFunc func(delta string) error

// StepResult is the outcome of one step. ToolCall is nil when the model
// elected to answer; at most one tool call is ever returned.
type StepResult struct {
	Content      string
	ToolCall     *ToolCall
	FinishReason string
}

// Client defines the model backend interface.
type Client interface {
	// StreamStep runs one reasoning step, invoking onDelta for every text
	// increment in arrival order.
	StreamStep(ctx context.Context, req *StepRequest, onDelta DeltaFunc) (*StepResult, error)
}
