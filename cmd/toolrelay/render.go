package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/martinemde/toolrelay/agentloop"
	"github.com/martinemde/toolrelay/unifiedllm"
)

var (
	assistantColor = color.New(color.FgBlue)
	infoColor      = color.New(color.FgCyan)
	warnColor      = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
	toolColor      = color.New(color.FgGreen)
	resultColor    = color.New(color.FgMagenta)
	dimColor       = color.New(color.Faint)
)

// Caps on sandbox output printed to the terminal.
const (
	sandboxDisplayLimit = 2000
	sandboxLogLines     = 40
)

// termRenderer prints session callbacks to a terminal.
type termRenderer struct {
	out io.Writer
	mu  sync.Mutex
}

func newTermRenderer(out io.Writer) *termRenderer {
	return &termRenderer{out: out}
}

// OnMessage prints assistant text. User input is already on screen.
func (r *termRenderer) OnMessage(role unifiedllm.Role, content string) {
	if role != unifiedllm.RoleAssistant {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	assistantColor.Fprintln(r.out, strings.TrimSpace(content))
}

func (r *termRenderer) OnAlert(severity agentloop.Severity, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch severity {
	case agentloop.SeverityError:
		errorColor.Fprintf(r.out, "error: %s\n", text)
	case agentloop.SeverityWarning:
		warnColor.Fprintf(r.out, "warning: %s\n", text)
	default:
		infoColor.Fprintln(r.out, text)
	}
}

func (r *termRenderer) OnBusyChange(busy bool) {
	if !busy {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	dimColor.Fprintln(r.out, "thinking... (Ctrl-C to cancel)")
}

func (r *termRenderer) OnSandboxOutput(logs []string, result any, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	toolColor.Fprintln(r.out, "▸ sandboxed_code_exec")
	if len(logs) > 0 {
		shown := agentloop.TruncateLines(strings.Join(logs, "\n"), sandboxLogLines)
		for _, line := range strings.Split(shown, "\n") {
			dimColor.Fprintf(r.out, "  %s\n", line)
		}
	}
	if errMsg != "" {
		errorColor.Fprintf(r.out, "  error: %s\n", errMsg)
		return
	}
	resultColor.Fprintf(r.out, "  => %s\n", formatResult(result))
}

func (r *termRenderer) banner(s agentloop.Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	model := unifiedllm.ResolveModel(s.Provider, s.Model)
	infoColor.Fprintf(r.out, "toolrelay · %s · %s\n", s.Provider, model)
	dimColor.Fprintln(r.out, "Type /help for commands. Start multi-line input with <<< and end it with a single '.' line.")
}

func (r *termRenderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func formatResult(v any) string {
	if v == nil {
		return "undefined"
	}
	if s, ok := v.(string); ok {
		return agentloop.TruncateOutput(s, sandboxDisplayLimit, agentloop.TruncateHeadTail)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return agentloop.TruncateOutput(string(b), sandboxDisplayLimit, agentloop.TruncateHeadTail)
}
