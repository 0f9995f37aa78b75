package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MockClient is a deterministic model for development and tests. It issues
// one supplierSearch call when the user asks about suppliers, then answers.
type MockClient struct{}

// NewMockClient creates a new mock model client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ Client = (*MockClient)(nil)

// StreamStep simulates one reasoning step.
func (m *MockClient) StreamStep(ctx context.Context, req *StepRequest, onDelta DeltaFunc) (*StepResult, error) {
	lastUser := lastMessageWithRole(req.Messages, "user")
	lastRole := ""
	if len(req.Messages) > 0 {
		lastRole = req.Messages[len(req.Messages)-1].Role
	}

	// After a tool result, or when tools are unavailable, answer in text.
	if lastRole != "tool" && len(req.Tools) > 0 && strings.Contains(strings.ToLower(lastUser), "supplier") {
		args, _ := json.Marshal(map[string]string{"query": lastUser})
		return &StepResult{
			FinishReason: "tool_calls",
			ToolCall: &ToolCall{
				ID:   "call_mock_1",
				Type: "function",
				Function: ToolCallFunction{
					Name:      "supplierSearch",
					Arguments: string(args),
				},
			},
		}, nil
	}

	response := m.generateResponse(req, lastUser, lastRole)
	for _, chunk := range splitIntoChunks(response, 12) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := onDelta(chunk); err != nil {
			return nil, err
		}
	}

	return &StepResult{Content: response, FinishReason: "stop"}, nil
}

func (m *MockClient) generateResponse(req *StepRequest, lastUser, lastRole string) string {
	if lastRole == "tool" {
		return "Based on the directory lookup, here are suppliers worth contacting. Ask me for an outreach plan if you want one."
	}
	if lastUser == "" {
		return "[MOCK] Hello! Tell me about your business and I can suggest practical sustainability steps."
	}
	return fmt.Sprintf("[MOCK] Received your message: %q. Here is a practical first step your business can take today.", truncate(lastUser, 100))
}

func lastMessageWithRole(messages []ChatMessage, role string) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == role {
			return messages[i].Content
		}
	}
	return ""
}

func splitIntoChunks(s string, chunkSize int) []string {
	if len(s) == 0 {
		return []string{""}
	}
	var chunks []string
	for i := 0; i < len(s); i += chunkSize {
		end := i + chunkSize
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[i:end])
	}
	return chunks
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
