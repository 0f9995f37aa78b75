// Package client implements the chat client: the stream consumer and the
// reconciler that folds stream events into conversation state.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/naavyaberiwal-glitch/myAI3/internal/domain"
)

// EventHandler is called for each stream event from the server.
type EventHandler func(ev domain.StreamEvent) error

// StreamClient posts a chat history and consumes the SSE response.
type StreamClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewStreamClient creates a stream client for the given server.
func NewStreamClient(baseURL string) *StreamClient {
	return &StreamClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for streaming
		},
	}
}

// Stream submits the history and invokes the handler for every event until
// the stream ends, the handler errors, or the context is cancelled.
func (c *StreamClient) Stream(ctx context.Context, history []domain.Message, handler EventHandler) error {
	body, err := json.Marshal(domain.ChatRequest{Messages: history})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to submit turn: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return parseSSE(resp.Body, handler)
}

// parseSSE parses an SSE stream and calls the handler for each decoded
// event. Frames which fail to decode are a transport failure.
func parseSSE(reader io.Reader, handler EventHandler) error {
	scanner := bufio.NewScanner(reader)
	var data string

	flush := func() error {
		if data == "" {
			return nil
		}
		var ev domain.StreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("malformed event: %w", err)
		}
		data = ""
		return handler(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			chunk := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data != "" {
				data += "\n" + chunk
			} else {
				data = chunk
			}
		}
		// The event: field repeats the type inside data; comments ignored.
	}

	if err := flush(); err != nil {
		return err
	}
	return scanner.Err()
}
