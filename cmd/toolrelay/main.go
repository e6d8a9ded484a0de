// Command toolrelay is a terminal chat front end for the agent loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/martinemde/toolrelay/agentloop"
	"github.com/martinemde/toolrelay/config"
	"github.com/martinemde/toolrelay/observe"
	"github.com/martinemde/toolrelay/remotemodel"
	"github.com/martinemde/toolrelay/sandbox"
	"github.com/martinemde/toolrelay/search"
	"github.com/martinemde/toolrelay/unifiedllm"
)

// openRouterKeysURL is where users create an OpenRouter key.
const openRouterKeysURL = "https://openrouter.ai/keys"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	envFile := flag.String("env", ".env", "dotenv file loaded before reading the environment")
	providerName := flag.String("provider", "", "provider override: openai, openrouter, gemini or anthropic")
	model := flag.String("model", "", "model override")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	if err := config.LoadDotEnv(*envFile, filepath.Join(filepath.Dir(*configPath), ".env")); err != nil {
		fmt.Fprintf(os.Stderr, "toolrelay: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath, config.Overrides{Provider: *providerName, Model: *model})
	if err != nil {
		fmt.Fprintf(os.Stderr, "toolrelay: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// ── Metrics ───────────────────────────────────────────────────────────────
	local, err := observe.NewLocal()
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}
	defer func() { _ = local.Shutdown(context.Background()) }()

	// ── Session ───────────────────────────────────────────────────────────────
	renderer := newTermRenderer(os.Stdout)
	resolver := profileResolver(cfg)
	client := buildClient(cfg, resolver, loginRedirector(renderer), local.Metrics)
	defer client.Close()

	tools := agentloop.NewToolRegistry()
	tools.Observe(observe.ToolObserver(local.Metrics))

	settings := cfg.ToSettings()
	session := agentloop.NewSession(client, tools, settings,
		agentloop.WithRenderer(renderer),
		agentloop.WithLogger(logger),
	)
	agentloop.RegisterStandardTools(tools, buildToolDeps(cfg, resolver, logger), session.Settings)

	if settings.SystemPrompt == "" && cfg.Agent.DefaultSystemPrompt {
		settings.SystemPrompt = agentloop.BuildSystemPrompt(tools.Definitions(), settings, time.Now())
		session.UpdateSettings(settings)
	}

	slog.Info("toolrelay starting",
		"config", *configPath,
		"provider", settings.Provider,
		"model", unifiedllm.ResolveModel(settings.Provider, settings.Model),
		"tools", tools.Names(),
	)

	// ── REPL ──────────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	prompt, err := newPrompt(defaultHistoryFile())
	if err != nil {
		slog.Error("failed to start prompt", "err", err)
		return 1
	}
	defer prompt.Close()

	renderer.banner(settings)
	repl := &repl{session: session, renderer: renderer, metrics: local, logger: logger}
	for {
		line, err := prompt.readLine()
		if errors.Is(err, errQuit) {
			return 0
		}
		if err != nil {
			slog.Error("read input", "err", err)
			return 1
		}
		if done := repl.handle(ctx, line); done {
			return 0
		}
		if ctx.Err() != nil {
			return 0
		}
	}
}

// buildClient registers every provider adapter, routes to the configured one
// by default, and installs the metrics and retry middleware.
func buildClient(cfg *config.Config, resolver unifiedllm.CredentialResolver, redirector unifiedllm.LoginRedirector, m *observe.Metrics) *unifiedllm.Client {
	selected := cfg.ProviderKind()
	optsFor := func(kind unifiedllm.ProviderKind) []unifiedllm.AdapterOption {
		opts := []unifiedllm.AdapterOption{unifiedllm.WithTimeout(cfg.Provider.Timeout)}
		if kind == selected && cfg.Provider.BaseURL != "" {
			opts = append(opts, unifiedllm.WithBaseURL(cfg.Provider.BaseURL))
		}
		if kind == unifiedllm.ProviderOpenRouter {
			if cfg.OpenRouter.Referer != "" {
				opts = append(opts, unifiedllm.WithHeader("HTTP-Referer", cfg.OpenRouter.Referer))
			}
			if cfg.OpenRouter.Title != "" {
				opts = append(opts, unifiedllm.WithHeader("X-Title", cfg.OpenRouter.Title))
			}
		}
		return opts
	}

	client := unifiedllm.NewClient(
		unifiedllm.WithProvider(unifiedllm.NewOpenAIAdapter(optsFor(unifiedllm.ProviderOpenAI)...)),
		unifiedllm.WithProvider(unifiedllm.NewOpenRouterAdapter(resolver, redirector, optsFor(unifiedllm.ProviderOpenRouter)...)),
		unifiedllm.WithProvider(unifiedllm.NewGeminiAdapter(optsFor(unifiedllm.ProviderGemini)...)),
		unifiedllm.WithProvider(unifiedllm.NewAnthropicAdapter(optsFor(unifiedllm.ProviderAnthropic)...)),
		unifiedllm.WithDefaultProvider(selected),
		unifiedllm.WithMiddleware(observe.ProviderMiddleware(m)),
	)
	if cfg.Provider.MaxRetries > 0 {
		policy := unifiedllm.DefaultRetryPolicy()
		policy.MaxRetries = cfg.Provider.MaxRetries
		client.Use(unifiedllm.RetryMiddleware(policy))
	}
	return client
}

// buildToolDeps creates the back ends behind the built-in tools.
func buildToolDeps(cfg *config.Config, resolver unifiedllm.CredentialResolver, logger *slog.Logger) agentloop.ToolDeps {
	limit, burst := rate.Inf, 1
	if r := cfg.Search.RatePerSecond; r > 0 {
		limit, burst = rate.Limit(r), int(math.Max(1, math.Ceil(r)))
	}

	var backend remotemodel.Backend
	switch cfg.RemoteModel.Backend {
	case config.BackendGollm:
		backend = remotemodel.NewGollmBackend()
	default:
		backend = remotemodel.NewOpenAIBackend(cfg.RemoteModel.BaseURL, nil)
	}

	return agentloop.ToolDeps{
		Search: search.New(
			search.WithLimiter(rate.NewLimiter(limit, burst)),
			search.WithLogger(logger),
		),
		Remote: remotemodel.New(
			remotemodel.WithBackend(backend),
			remotemodel.WithCredentialResolver(resolver),
			remotemodel.WithLogger(logger),
		),
		Sandbox: sandbox.New(
			sandbox.WithTimeout(cfg.Sandbox.Timeout),
			sandbox.WithLogger(logger),
		),
	}
}

func profileResolver(cfg *config.Config) unifiedllm.CredentialResolver {
	path := cfg.OpenRouter.ProfilePath
	if path == "" {
		path = unifiedllm.DefaultProfilePath()
	}
	return unifiedllm.ProfileFileResolver{Path: path}
}

// loginRedirector tells the user where to get an OpenRouter key. The turn
// then ends without a reply.
func loginRedirector(r *termRenderer) unifiedllm.LoginRedirector {
	return unifiedllm.LoginRedirectorFunc(func(ctx context.Context, provider unifiedllm.ProviderKind) error {
		r.OnAlert(agentloop.SeverityWarning, fmt.Sprintf(
			"%s needs an API key. Create one at %s and set %s or openrouter.api_key in the config file.",
			provider, openRouterKeysURL, config.EnvOpenRouterKey))
		return nil
	})
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level.SlogLevel()}))
}

// ── Paths ──────────────────────────────────────────────────────────────────────

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "toolrelay.yaml"
	}
	return filepath.Join(dir, "toolrelay", "config.yaml")
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".toolrelay_history")
}
