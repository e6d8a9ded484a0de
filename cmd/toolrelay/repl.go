package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/martinemde/toolrelay/agentloop"
	"github.com/martinemde/toolrelay/config"
	"github.com/martinemde/toolrelay/observe"
	"github.com/martinemde/toolrelay/unifiedllm"
)

const helpText = `Commands:
  /clear              start a new conversation
  /export [path]      write the transcript as JSON
  /import <path>      replace the transcript with an exported one
  /provider <name>    switch provider (openai, openrouter, gemini, anthropic)
  /model <id>         switch model
  /stats              show provider and tool counters
  /help               show this help
  /quit               exit
`

type repl struct {
	session  *agentloop.Session
	renderer *termRenderer
	metrics  *observe.Local
	logger   *slog.Logger

	// keys remembers the credential last used with each provider.
	keys map[unifiedllm.ProviderKind]string
}

// handle processes one line of input and reports whether the REPL should exit.
func (r *repl) handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "/") {
		return r.command(ctx, trimmed)
	}

	turnCtx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	if err := r.session.Submit(turnCtx, line); err != nil {
		// Alerts were already rendered by the session.
		r.logger.Debug("turn ended with error", "err", err)
	}
	return false
}

func (r *repl) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true

	case "/help":
		r.renderer.printf("%s", helpText)

	case "/clear":
		if err := r.session.Clear(); err != nil {
			r.renderer.OnAlert(agentloop.SeverityError, err.Error())
			return false
		}
		r.renderer.OnAlert(agentloop.SeverityInfo, "Conversation cleared.")

	case "/export":
		path := arg
		if path == "" {
			path = agentloop.ExportFileName(time.Now())
		}
		if err := r.session.ExportFile(path); err != nil {
			r.renderer.OnAlert(agentloop.SeverityError, err.Error())
			return false
		}
		r.renderer.OnAlert(agentloop.SeverityInfo, fmt.Sprintf("Transcript written to %s.", path))

	case "/import":
		if arg == "" {
			r.renderer.OnAlert(agentloop.SeverityWarning, "usage: /import <path>")
			return false
		}
		if err := r.importFile(arg); err != nil {
			r.renderer.OnAlert(agentloop.SeverityError, err.Error())
			return false
		}
		r.renderer.OnAlert(agentloop.SeverityInfo, fmt.Sprintf("Loaded %d messages from %s.", len(r.session.Transcript()), arg))

	case "/provider":
		kind, err := unifiedllm.ParseProviderKind(arg)
		if err != nil {
			r.renderer.OnAlert(agentloop.SeverityError, err.Error())
			return false
		}
		s := r.session.Settings()
		s.Credential = r.switchCredential(kind, s)
		s.Provider = kind
		s.Model = ""
		r.session.UpdateSettings(s)
		r.renderer.OnAlert(agentloop.SeverityInfo, fmt.Sprintf("Provider set to %s (%s).", kind, unifiedllm.ResolveModel(kind, "")))

	case "/model":
		if arg == "" {
			r.listModels()
			return false
		}
		s := r.session.Settings()
		s.Model = arg
		r.session.UpdateSettings(s)
		r.renderer.OnAlert(agentloop.SeverityInfo, fmt.Sprintf("Model set to %s.", unifiedllm.ResolveModel(s.Provider, arg)))

	case "/stats":
		counters, err := r.metrics.Counters(ctx)
		if err != nil {
			r.renderer.OnAlert(agentloop.SeverityError, err.Error())
			return false
		}
		if len(counters) == 0 {
			r.renderer.printf("no calls yet\n")
		}
		for _, c := range counters {
			r.renderer.printf("%s\n", c)
		}

	default:
		r.renderer.OnAlert(agentloop.SeverityWarning, fmt.Sprintf("unknown command %s; try /help", name))
	}
	return false
}

func (r *repl) importFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := r.session.Import(f); err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	return nil
}

func (r *repl) listModels() {
	s := r.session.Settings()
	for _, m := range unifiedllm.ListModels(s.Provider) {
		marker := " "
		if m.ID == unifiedllm.ResolveModel(s.Provider, s.Model) {
			marker = "*"
		}
		r.renderer.printf("%s %-28s %s\n", marker, m.ID, m.DisplayName)
	}
}

// switchCredential records the credential of the current provider and
// returns the one to use for kind.
func (r *repl) switchCredential(kind unifiedllm.ProviderKind, s agentloop.Settings) string {
	if r.keys == nil {
		r.keys = make(map[unifiedllm.ProviderKind]string)
	}
	if s.Credential != "" {
		r.keys[s.Provider] = s.Credential
	}
	return providerCredential(kind, s, r.keys)
}

// providerCredential picks the credential for a provider switched to at
// runtime: a key already used with it this session, then the OpenRouter key,
// then the provider's conventional environment variable.
func providerCredential(kind unifiedllm.ProviderKind, s agentloop.Settings, known map[unifiedllm.ProviderKind]string) string {
	if kind == s.Provider && s.Credential != "" {
		return s.Credential
	}
	if key := known[kind]; key != "" {
		return key
	}
	if kind == unifiedllm.ProviderOpenRouter && s.OpenRouterKey != "" {
		return s.OpenRouterKey
	}
	return os.Getenv(config.ProviderKeyEnv[kind])
}
