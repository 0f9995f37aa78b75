// Package tools provides the tool registry and the adapter that normalizes
// heterogeneous tool inputs into a single query-string contract.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
)

// ExecutorFunc defines a tool executor. The query has already been
// normalized by the adapter.
type ExecutorFunc func(ctx context.Context, query string) (json.RawMessage, error)

// Result is the structured outcome of a tool execution. A failing tool
// yields empty results and an error message; it never aborts the turn.
type Result struct {
	Results json.RawMessage `json:"results"`
	Error   string          `json:"error,omitempty"`
}

// Registry stores tool executors keyed by tool name.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]ExecutorFunc
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]ExecutorFunc),
	}
}

// Register adds an executor for a tool name, replacing any existing one.
func (r *Registry) Register(toolName string, exec ExecutorFunc) error {
	if toolName == "" {
		return fmt.Errorf("tool name is required")
	}
	if exec == nil {
		return fmt.Errorf("executor is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[toolName] = exec
	return nil
}

// MustRegister adds an executor or panics.
func (r *Registry) MustRegister(toolName string, exec ExecutorFunc) {
	if err := r.Register(toolName, exec); err != nil {
		panic(err)
	}
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	return names
}

// Execute runs the named tool with the raw input from the model. Unknown
// tools, executor errors and panics are all isolated here and converted to
// an empty-results payload so a failing tool can never abort the turn.
func (r *Registry) Execute(ctx context.Context, toolName string, rawInput json.RawMessage) Result {
	r.mu.RLock()
	exec := r.executors[toolName]
	r.mu.RUnlock()

	if exec == nil {
		return Result{Results: json.RawMessage(`[]`), Error: fmt.Sprintf("unknown tool %s", toolName)}
	}

	query := NormalizeQuery(rawInput)

	out, err := safeExecute(ctx, exec, query)
	if err != nil {
		log.Printf("WARN: tool %s failed: %v", toolName, err)
		return Result{Results: json.RawMessage(`[]`), Error: fmt.Sprintf("%s failed", toolName)}
	}
	if len(out) == 0 {
		out = json.RawMessage(`[]`)
	}
	return Result{Results: out}
}

// safeExecute isolates executor panics as errors.
func safeExecute(ctx context.Context, exec ExecutorFunc, query string) (out json.RawMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return exec(ctx, query)
}

// NormalizeQuery coerces a model-provided tool input into a single query
// string. A JSON string is used as-is; an object with a string "query" field
// yields that field; anything else is stringified compactly; empty or null
// input yields "".
func NormalizeQuery(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var structured struct {
		Query *string `json:"query"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil && structured.Query != nil {
		return *structured.Query
	}

	var compact json.RawMessage
	if err := json.Unmarshal(raw, &compact); err != nil {
		// Not valid JSON; fall back to the raw bytes.
		return trimmed
	}
	buf, err := json.Marshal(compact)
	if err != nil {
		return trimmed
	}
	return string(buf)
}
