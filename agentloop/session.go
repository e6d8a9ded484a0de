package agentloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/martinemde/toolrelay/sandbox"
	"github.com/martinemde/toolrelay/unifiedllm"
)

// MaxIterations is the hard cap on provider round trips per user turn.
const MaxIterations = 8

// DefaultLoopDetectionWindow is the number of recent tool calls inspected
// for a repeating pattern.
const DefaultLoopDetectionWindow = 6

// ErrSessionBusy is returned when an operation needs an idle session.
var ErrSessionBusy = errors.New("session is busy")

// Settings is the configuration surface read on every provider and tool
// call. The session never mutates it.
type Settings struct {
	Provider   unifiedllm.ProviderKind `json:"provider"`
	Credential string                  `json:"-"`
	Model      string                  `json:"model,omitempty"`
	MaxTokens  int                     `json:"max_tokens,omitempty"`

	// SystemPrompt, when set, opens every new transcript.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// OpenRouterKey is used by remote_model_proxy when the active provider
	// is not OpenRouter.
	OpenRouterKey string `json:"-"`

	SearchAPIKey   string `json:"-"`
	SearchEngineID string `json:"-"`

	// LoopDetectionWindow of zero disables repeated-call warnings.
	LoopDetectionWindow int `json:"loop_detection_window"`
}

// DefaultSettings returns settings for the OpenAI provider.
func DefaultSettings() Settings {
	return Settings{
		Provider:            unifiedllm.ProviderOpenAI,
		MaxTokens:           1024,
		LoopDetectionWindow: DefaultLoopDetectionWindow,
	}
}

// ProxyCredential returns the credential for OpenRouter calls made by tools.
func (s Settings) ProxyCredential() string {
	if s.OpenRouterKey != "" {
		return s.OpenRouterKey
	}
	if s.Provider == unifiedllm.ProviderOpenRouter {
		return s.Credential
	}
	return ""
}

// Invoker performs one provider round trip. *unifiedllm.Client satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req unifiedllm.InvokeRequest) (*unifiedllm.Reply, error)
}

// Session owns one conversation: the transcript, the running flag and the
// loop that drives the provider and tools.
type Session struct {
	id         string
	client     Invoker
	tools      *ToolRegistry
	renderer   Renderer
	logger     *slog.Logger
	settings   Settings
	transcript Transcript
	running    bool
	mu         sync.Mutex
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRenderer sets the presentation sink.
func WithRenderer(r Renderer) SessionOption {
	return func(s *Session) { s.renderer = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// NewSession creates an idle session with an empty transcript.
func NewSession(client Invoker, tools *ToolRegistry, settings Settings, opts ...SessionOption) *Session {
	s := &Session{
		id:       uuid.New().String(),
		client:   client,
		tools:    tools,
		renderer: NopRenderer{},
		logger:   slog.Default(),
		settings: settings,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tools == nil {
		s.tools = NewToolRegistry()
	}
	s.logger = s.logger.With("session", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Running reports whether a turn is in progress.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Settings returns the current settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings replaces the settings. A running turn picks up the change
// on its next provider or tool call.
func (s *Session) UpdateSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Transcript returns a copy of the conversation.
func (s *Session) Transcript() []unifiedllm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// Clear empties the transcript. It fails with ErrSessionBusy while a turn
// is running.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSessionBusy
	}
	s.transcript.Reset()
	return nil
}

// Export writes the transcript as indented JSON.
func (s *Session) Export(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.WriteJSON(w)
}

// ExportFile writes the transcript to path.
func (s *Session) ExportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := s.Export(f); err != nil {
		f.Close()
		return fmt.Errorf("write export file: %w", err)
	}
	return f.Close()
}

// Import replaces the transcript with a previously exported one.
func (s *Session) Import(r io.Reader) error {
	msgs, err := ReadTranscript(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSessionBusy
	}
	s.transcript.Reset()
	s.transcript.Append(msgs...)
	return nil
}

// Submit appends the user's input and runs the loop until the model stops
// requesting tools or MaxIterations round trips have been made. It returns
// ErrSessionBusy if a turn is already running. Provider and configuration
// failures are reported to the renderer, end the turn, and are returned.
func (s *Session) Submit(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	s.running = true
	if s.transcript.Len() == 0 && s.settings.SystemPrompt != "" {
		s.transcript.Append(unifiedllm.SystemMessage(s.settings.SystemPrompt))
	}
	s.transcript.Append(unifiedllm.UserMessage(input))
	s.mu.Unlock()

	s.renderer.OnBusyChange(true)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.renderer.OnBusyChange(false)
	}()

	s.renderer.OnMessage(unifiedllm.RoleUser, input)
	return s.run(ctx)
}

// run is the bounded provider/tool loop.
func (s *Session) run(ctx context.Context) error {
	for iteration := 1; iteration <= MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			s.renderer.OnAlert(SeverityWarning, "Turn cancelled.")
			return fmt.Errorf("turn cancelled: %w", err)
		}

		// 1. Sanitize and call the provider.
		settings := s.Settings()
		req := unifiedllm.InvokeRequest{
			Provider:   settings.Provider,
			Credential: settings.Credential,
			Model:      settings.Model,
			Messages:   unifiedllm.Sanitize(s.Transcript()),
			MaxTokens:  settings.MaxTokens,
			Tools:      s.tools.Definitions(),
		}
		s.logger.Debug("invoking provider", "provider", req.Provider, "model", req.Model, "iteration", iteration, "messages", len(req.Messages))
		reply, err := s.client.Invoke(ctx, req)
		if err != nil {
			s.logger.Error("provider call failed", "provider", req.Provider, "error", err)
			s.renderer.OnAlert(SeverityError, err.Error())
			return fmt.Errorf("turn aborted: %w", err)
		}

		// 2. No reply ends the turn quietly.
		if reply == nil {
			s.logger.Info("provider returned no reply", "provider", req.Provider)
			return nil
		}

		// 3. Record the assistant message.
		msg := unifiedllm.AssistantMessage(reply.Content, s.normalizeToolCalls(reply.ToolCalls)...)
		s.append(msg)

		// 4. Surface visible text.
		if reply.HasText() {
			s.renderer.OnMessage(unifiedllm.RoleAssistant, reply.Content)
		}

		// 5. No tool calls means the model is done.
		if !msg.HasToolCalls() {
			return nil
		}

		// 6. Run tools in order, one at a time.
		for _, tc := range msg.ToolCalls {
			s.logger.Debug("executing tool", "tool", tc.Function.Name, "call_id", tc.ID)
			outcome := s.tools.Execute(ctx, tc.Function.Name, tc.Function.Arguments)
			if outcome.Failed {
				s.logger.Warn("tool failed", "tool", tc.Function.Name, "result", TruncateToolOutput(outcome.Content, tc.Function.Name))
			} else {
				s.logger.Debug("tool finished", "tool", tc.Function.Name, "result", TruncateToolOutput(outcome.Content, tc.Function.Name))
			}
			s.append(unifiedllm.ToolResultMessage(tc.ID, tc.Function.Name, outcome.Content))
			if res, ok := outcome.Value.(sandbox.Result); ok {
				s.renderer.OnSandboxOutput(res.Logs, res.Value, res.Error)
			}
		}

		// 7. Warn about repeating tool call patterns.
		if window := settings.LoopDetectionWindow; window > 0 && DetectLoop(s.Transcript(), window) {
			s.logger.Warn("repeating tool call pattern", "window", window)
			s.renderer.OnAlert(SeverityWarning, fmt.Sprintf("The last %d tool calls repeat the same pattern.", window))
		}
	}

	s.logger.Warn("iteration cap reached", "max_iterations", MaxIterations)
	s.renderer.OnAlert(SeverityInfo, fmt.Sprintf("Stopped after %d rounds of tool calls.", MaxIterations))
	return nil
}

// normalizeToolCalls drops calls without a function name and assigns a local
// id to calls that arrived without one, so every tool result can be
// correlated.
func (s *Session) normalizeToolCalls(calls []unifiedllm.ToolCall) []unifiedllm.ToolCall {
	var out []unifiedllm.ToolCall
	for _, tc := range calls {
		if tc.Function.Name == "" {
			s.logger.Warn("dropping tool call without a name", "call_id", tc.ID)
			continue
		}
		if tc.ID == "" {
			tc.ID = "call_" + uuid.New().String()[:8]
		}
		if tc.Type == "" {
			tc.Type = "function"
		}
		out = append(out, tc)
	}
	return out
}

func (s *Session) append(msg unifiedllm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.Append(msg)
}
