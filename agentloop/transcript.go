package agentloop

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/martinemde/toolrelay/unifiedllm"
)

// Transcript is the ordered conversation. Messages are appended and never
// edited; the only other mutation is resetting it as a whole.
type Transcript struct {
	messages []unifiedllm.Message
}

// Append adds messages to the end of the transcript.
func (t *Transcript) Append(msgs ...unifiedllm.Message) {
	t.messages = append(t.messages, msgs...)
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []unifiedllm.Message {
	out := make([]unifiedllm.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.messages) }

// Reset empties the transcript.
func (t *Transcript) Reset() { t.messages = nil }

// WriteJSON writes the messages as indented JSON.
func (t *Transcript) WriteJSON(w io.Writer) error {
	msgs := t.messages
	if msgs == nil {
		msgs = []unifiedllm.Message{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(msgs)
}

// ReadTranscript decodes and validates an exported transcript.
func ReadTranscript(r io.Reader) ([]unifiedllm.Message, error) {
	var msgs []unifiedllm.Message
	if err := json.NewDecoder(r).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if err := ValidateTranscript(msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ValidateTranscript checks roles and that every tool result answers a call
// made by the assistant message that precedes its batch of results.
func ValidateTranscript(msgs []unifiedllm.Message) error {
	var pending map[string]bool
	for i, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
		switch m.Role {
		case unifiedllm.RoleAssistant:
			pending = make(map[string]bool, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				pending[tc.ID] = true
			}
		case unifiedllm.RoleTool:
			if !pending[m.ToolCallID] {
				return fmt.Errorf("message %d: tool result %q has no matching tool call", i, m.ToolCallID)
			}
		default:
			pending = nil
		}
	}
	return nil
}

// ExportFileName returns the default file name for an export taken at now.
func ExportFileName(now time.Time) string {
	return "transcript-" + now.Format("20060102-150405") + ".json"
}
