package agentloop

import (
	"sync"
	"time"

	"github.com/martinemde/toolrelay/unifiedllm"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Renderer is the presentation sink the loop reports to. The loop never
// reads presentation state; it only calls these methods.
type Renderer interface {
	OnMessage(role unifiedllm.Role, content string)
	OnAlert(severity Severity, text string)
	OnBusyChange(busy bool)
	// OnSandboxOutput reports a sandboxed_code_exec run. errMsg is empty on
	// success.
	OnSandboxOutput(logs []string, result any, errMsg string)
}

// NopRenderer discards everything.
type NopRenderer struct{}

func (NopRenderer) OnMessage(unifiedllm.Role, string)     {}
func (NopRenderer) OnAlert(Severity, string)              {}
func (NopRenderer) OnBusyChange(bool)                     {}
func (NopRenderer) OnSandboxOutput([]string, any, string) {}

// EventKind identifies the type of session event.
type EventKind string

const (
	EventMessage       EventKind = "message"
	EventAlert         EventKind = "alert"
	EventBusy          EventKind = "busy"
	EventSandboxOutput EventKind = "sandbox_output"
)

// SessionEvent is a typed event emitted by ChannelRenderer.
type SessionEvent struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// ChannelRenderer delivers renderer callbacks to the host application as
// events on a buffered channel.
type ChannelRenderer struct {
	sessionID string
	ch        chan SessionEvent
	closed    bool
	mu        sync.Mutex
}

// NewChannelRenderer creates a ChannelRenderer with a buffered channel.
func NewChannelRenderer(sessionID string, bufferSize int) *ChannelRenderer {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &ChannelRenderer{
		sessionID: sessionID,
		ch:        make(chan SessionEvent, bufferSize),
	}
}

// OnMessage implements Renderer.
func (e *ChannelRenderer) OnMessage(role unifiedllm.Role, content string) {
	e.emit(EventMessage, map[string]any{"role": string(role), "content": content})
}

// OnAlert implements Renderer.
func (e *ChannelRenderer) OnAlert(severity Severity, text string) {
	e.emit(EventAlert, map[string]any{"severity": string(severity), "text": text})
}

// OnBusyChange implements Renderer.
func (e *ChannelRenderer) OnBusyChange(busy bool) {
	e.emit(EventBusy, map[string]any{"busy": busy})
}

// OnSandboxOutput implements Renderer.
func (e *ChannelRenderer) OnSandboxOutput(logs []string, result any, errMsg string) {
	data := map[string]any{"logs": logs}
	if errMsg != "" {
		data["error"] = errMsg
	} else {
		data["result"] = result
	}
	e.emit(EventSandboxOutput, data)
}

// emit sends an event to the channel. If the renderer is closed, the event
// is silently dropped.
func (e *ChannelRenderer) emit(kind EventKind, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := SessionEvent{
		Kind:      kind,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	}
	select {
	case e.ch <- event:
	default:
		// Channel full; drop event to avoid blocking the agent loop.
	}
}

// Events returns the read-only event channel.
func (e *ChannelRenderer) Events() <-chan SessionEvent {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *ChannelRenderer) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
