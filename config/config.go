// Package config provides the configuration schema and loader for toolrelay.
// Values come from a YAML file, then TOOLRELAY_* environment variables, then
// the providers' conventional key variables for anything still unset.
package config

import (
	"log/slog"
	"time"

	"github.com/martinemde/toolrelay/agentloop"
	"github.com/martinemde/toolrelay/unifiedllm"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to a slog level. Unknown values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Remote model back ends.
const (
	BackendOpenAI = "openai"
	BackendGollm  = "gollm"
)

// Config is the root configuration structure.
type Config struct {
	LogLevel    LogLevel          `yaml:"log_level"`
	Provider    ProviderConfig    `yaml:"provider"`
	OpenRouter  OpenRouterConfig  `yaml:"openrouter"`
	Search      SearchConfig      `yaml:"search"`
	Sandbox     SandboxConfig     `yaml:"sandbox"`
	RemoteModel RemoteModelConfig `yaml:"remote_model"`
	Agent       AgentConfig       `yaml:"agent"`
}

// ProviderConfig selects the chat provider used by the agent loop.
type ProviderConfig struct {
	// Name is one of openai, openrouter, gemini or anthropic.
	Name      string `yaml:"name"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`

	// BaseURL overrides the provider endpoint. Empty uses the public API.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each HTTP request. Zero disables the timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries retries rate-limited and server errors. Zero sends each
	// request once.
	MaxRetries int `yaml:"max_retries"`
}

// OpenRouterConfig holds the proxy credential used by remote_model_proxy and
// by the openrouter provider.
type OpenRouterConfig struct {
	APIKey string `yaml:"api_key"`

	// ProfilePath is a YAML file holding openrouter.api_key, consulted when
	// no key is configured.
	ProfilePath string `yaml:"profile_path"`

	// Referer and Title are sent as OpenRouter attribution headers.
	Referer string `yaml:"referer"`
	Title   string `yaml:"title"`
}

// SearchConfig holds Google Custom Search credentials. Without both values
// web_search uses the keyless fallback.
type SearchConfig struct {
	APIKey   string `yaml:"api_key"`
	EngineID string `yaml:"engine_id"`

	// RatePerSecond limits outbound search requests.
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// SandboxConfig bounds sandboxed_code_exec.
type SandboxConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// RemoteModelConfig selects the remote_model_proxy back end.
type RemoteModelConfig struct {
	// Backend is openai (go-openai client) or gollm.
	Backend string `yaml:"backend"`
	BaseURL string `yaml:"base_url"`
}

// AgentConfig tunes the agent loop.
type AgentConfig struct {
	SystemPrompt string `yaml:"system_prompt"`

	// DefaultSystemPrompt builds a prompt listing the tools when
	// SystemPrompt is empty.
	DefaultSystemPrompt bool `yaml:"default_system_prompt"`

	LoopDetectionWindow int `yaml:"loop_detection_window"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		Provider: ProviderConfig{
			Name:      string(unifiedllm.ProviderOpenAI),
			MaxTokens: 1024,
			Timeout:   unifiedllm.DefaultTimeout,
		},
		Search:      SearchConfig{RatePerSecond: 5},
		Sandbox:     SandboxConfig{Timeout: 10 * time.Second},
		RemoteModel: RemoteModelConfig{Backend: BackendOpenAI},
		Agent:       AgentConfig{LoopDetectionWindow: agentloop.DefaultLoopDetectionWindow},
	}
}

// ProviderKind returns the parsed provider. Validate guarantees it parses.
func (c *Config) ProviderKind() unifiedllm.ProviderKind {
	kind, err := unifiedllm.ParseProviderKind(c.Provider.Name)
	if err != nil {
		return unifiedllm.ProviderOpenAI
	}
	return kind
}

// ToSettings converts the configuration into agent loop settings.
func (c *Config) ToSettings() agentloop.Settings {
	return agentloop.Settings{
		Provider:            c.ProviderKind(),
		Credential:          c.Provider.APIKey,
		Model:               c.Provider.Model,
		MaxTokens:           c.Provider.MaxTokens,
		SystemPrompt:        c.Agent.SystemPrompt,
		OpenRouterKey:       c.OpenRouter.APIKey,
		SearchAPIKey:        c.Search.APIKey,
		SearchEngineID:      c.Search.EngineID,
		LoopDetectionWindow: c.Agent.LoopDetectionWindow,
	}
}
