package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/martinemde/toolrelay/config"
	"github.com/martinemde/toolrelay/unifiedllm"
)

const sampleYAML = `
log_level: debug
provider:
  name: anthropic
  api_key: sk-ant-test
  model: sonnet
  max_tokens: 2048
  timeout: 30s
  max_retries: 2
openrouter:
  api_key: sk-or-test
  title: toolrelay
search:
  api_key: g-key
  engine_id: g-cx
sandbox:
  timeout: 2s
remote_model:
  backend: gollm
agent:
  system_prompt: Be brief.
  loop_detection_window: 4
`

func envMap(m map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q, want %q", cfg.LogLevel, config.LogDebug)
	}
	if cfg.ProviderKind() != unifiedllm.ProviderAnthropic {
		t.Errorf("provider.name: got %q", cfg.ProviderKind())
	}
	if cfg.Provider.Timeout != 30*time.Second {
		t.Errorf("provider.timeout: got %s, want 30s", cfg.Provider.Timeout)
	}
	if cfg.Provider.MaxRetries != 2 {
		t.Errorf("provider.max_retries: got %d, want 2", cfg.Provider.MaxRetries)
	}
	if cfg.Sandbox.Timeout != 2*time.Second {
		t.Errorf("sandbox.timeout: got %s, want 2s", cfg.Sandbox.Timeout)
	}
	if cfg.RemoteModel.Backend != config.BackendGollm {
		t.Errorf("remote_model.backend: got %q", cfg.RemoteModel.Backend)
	}
	// Unset fields keep their defaults.
	if cfg.Search.RatePerSecond != 5 {
		t.Errorf("search.rate_per_second: got %g, want default 5", cfg.Search.RatePerSecond)
	}

	s := cfg.ToSettings()
	if s.Provider != unifiedllm.ProviderAnthropic || s.Credential != "sk-ant-test" || s.Model != "sonnet" {
		t.Errorf("unexpected settings: %+v", s)
	}
	if s.MaxTokens != 2048 || s.SystemPrompt != "Be brief." || s.LoopDetectionWindow != 4 {
		t.Errorf("unexpected settings: %+v", s)
	}
	if s.OpenRouterKey != "sk-or-test" || s.SearchAPIKey != "g-key" || s.SearchEngineID != "g-cx" {
		t.Errorf("unexpected tool keys: %+v", s)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
	if cfg.ProviderKind() != unifiedllm.ProviderOpenAI {
		t.Errorf("expected default provider openai, got %q", cfg.ProviderKind())
	}
	if cfg.Provider.Timeout != unifiedllm.DefaultTimeout {
		t.Errorf("expected default timeout, got %s", cfg.Provider.Timeout)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("provider:\n  nmae: openai\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "nmae") {
		t.Errorf("error should mention the field, got: %v", err)
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	yaml := `
log_level: verbose
provider:
  name: cohere
  max_tokens: -1
remote_model:
  backend: carrier-pigeon
agent:
  loop_detection_window: -2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_level", "provider.name", "provider.max_tokens", "remote_model.backend", "agent.loop_detection_window"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := config.Default()
	err := config.ApplyEnv(cfg, envMap(map[string]string{
		config.EnvProvider:       "gemini",
		config.EnvModel:          "gemini-pro",
		config.EnvMaxTokens:      "512",
		config.EnvTimeout:        "45s",
		config.EnvLogLevel:       "warn",
		config.EnvSearchAPIKey:   "g-key",
		"GEMINI_API_KEY":         "g-secret",
		"OPENROUTER_API_KEY":     "sk-or-env",
		config.EnvSearchEngineID: "",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Name != "gemini" || cfg.Provider.Model != "gemini-pro" {
		t.Errorf("unexpected provider: %+v", cfg.Provider)
	}
	if cfg.Provider.APIKey != "g-secret" {
		t.Errorf("expected conventional key fallback, got %q", cfg.Provider.APIKey)
	}
	if cfg.OpenRouter.APIKey != "sk-or-env" {
		t.Errorf("expected OpenRouter key from env, got %q", cfg.OpenRouter.APIKey)
	}
	if cfg.Provider.MaxTokens != 512 || cfg.Provider.Timeout != 45*time.Second {
		t.Errorf("unexpected numeric overlay: %+v", cfg.Provider)
	}
	if cfg.LogLevel.SlogLevel() != slog.LevelWarn {
		t.Errorf("expected warn level, got %v", cfg.LogLevel.SlogLevel())
	}
	if cfg.Search.APIKey != "g-key" || cfg.Search.EngineID != "" {
		t.Errorf("unexpected search config: %+v", cfg.Search)
	}
}

func TestApplyEnv_ExplicitKeyWins(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.APIKey = "from-file"
	err := config.ApplyEnv(cfg, envMap(map[string]string{"OPENAI_API_KEY": "from-env"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "from-file" {
		t.Errorf("configured key should win, got %q", cfg.Provider.APIKey)
	}

	err = config.ApplyEnv(cfg, envMap(map[string]string{config.EnvAPIKey: "override"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "override" {
		t.Errorf("TOOLRELAY_API_KEY should override, got %q", cfg.Provider.APIKey)
	}
}

func TestApplyEnv_InvalidNumbers(t *testing.T) {
	err := config.ApplyEnv(config.Default(), envMap(map[string]string{
		config.EnvMaxTokens: "lots",
		config.EnvTimeout:   "forever",
	}))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), config.EnvMaxTokens) || !strings.Contains(err.Error(), config.EnvTimeout) {
		t.Errorf("error should mention both variables, got: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(config.EnvProvider, "openrouter")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), config.Overrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := cfg.ToSettings()
	if s.Provider != unifiedllm.ProviderOpenRouter || s.Credential != "sk-or-env" {
		t.Errorf("unexpected settings: %+v", s)
	}
	if s.ProxyCredential() != "sk-or-env" {
		t.Errorf("expected proxy credential, got %q", s.ProxyCredential())
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolrelay.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path, config.Overrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "sk-ant-test" {
		t.Errorf("unexpected key %q", cfg.Provider.APIKey)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TOOLRELAY_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TOOLRELAY_TEST_DOTENV") })

	if err := config.LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("TOOLRELAY_TEST_DOTENV"); got != "loaded" {
		t.Errorf("expected variable from .env, got %q", got)
	}
}

func TestLoad_ProviderOverrideUsesItsOwnKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), config.Overrides{Provider: "anthropic"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := cfg.ToSettings()
	if s.Provider != unifiedllm.ProviderAnthropic {
		t.Errorf("expected anthropic, got %q", s.Provider)
	}
	if s.Credential != "sk-ant" {
		t.Errorf("expected the anthropic key, got %q", s.Credential)
	}
}

func TestLoad_ProviderOverrideDropsFileKeyAndModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolrelay.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEMINI_API_KEY", "g-env")

	cfg, err := config.Load(path, config.Overrides{Provider: "gemini"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "g-env" {
		t.Errorf("expected gemini key from env, got %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.Model != "" {
		t.Errorf("expected file model dropped, got %q", cfg.Provider.Model)
	}

	cfg, err = config.Load(path, config.Overrides{Provider: "Anthropic", Model: "haiku"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "sk-ant-test" {
		t.Errorf("same provider should keep the file key, got %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.Model != "haiku" {
		t.Errorf("expected model override, got %q", cfg.Provider.Model)
	}
}
