// Package stream carries orchestration progress to the client. Events flow
// one way, server to client, in exactly the order the pipeline emits them.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// EventType enumerates the milestones of one orchestration run.
type EventType string

const (
	EventProcessingStart    EventType = "processing_start"
	EventAnalysisComplete   EventType = "analysis_complete"
	EventPromptsGenerating  EventType = "prompts_generating"
	EventPromptsGenerated   EventType = "prompts_generated"
	EventIterationStart     EventType = "iteration_start"
	EventIterationComplete  EventType = "iteration_complete"
	EventIterationModerated EventType = "iteration_moderated"
	EventIterationError     EventType = "iteration_error"
	EventComplete           EventType = "complete"
	EventError              EventType = "error"
)

// Event is one progress frame. Fields are populated per type: iteration
// events carry the 1-based index, terminal iteration events add the prompt
// plus an image reference or message, and the final complete event carries
// the session id and share URL.
type Event struct {
	Type      EventType `json:"type"`
	Iteration int       `json:"iteration,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	Image     string    `json:"image,omitempty"`
	Message   string    `json:"message,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	ShareURL  string    `json:"share_url,omitempty"`
}

// Sink receives progress events. Send errors mean the consumer is gone; the
// pipeline keeps running regardless.
type Sink interface {
	Send(event Event) error
}

// SSEWriter streams events as server-sent-events frames over an HTTP
// response.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter prepares the response for event streaming and returns the
// writer. It fails when the underlying connection cannot be flushed
// incrementally.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("stream: response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Send writes one event frame and flushes it to the client.
func (s *SSEWriter) Send(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("stream: encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("stream: write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// MemorySink records events in order. It backs tests and any consumer that
// wants the full event log after the run.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// Send appends the event.
func (m *MemorySink) Send(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything sent so far.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
