package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/martinemde/toolrelay/unifiedllm"
)

// Environment variables read by ApplyEnv.
const (
	EnvProvider       = "TOOLRELAY_PROVIDER"
	EnvAPIKey         = "TOOLRELAY_API_KEY"
	EnvModel          = "TOOLRELAY_MODEL"
	EnvMaxTokens      = "TOOLRELAY_MAX_TOKENS"
	EnvTimeout        = "TOOLRELAY_TIMEOUT"
	EnvLogLevel       = "TOOLRELAY_LOG_LEVEL"
	EnvOpenRouterKey  = "TOOLRELAY_OPENROUTER_API_KEY"
	EnvSearchAPIKey   = "TOOLRELAY_SEARCH_API_KEY"
	EnvSearchEngineID = "TOOLRELAY_SEARCH_ENGINE_ID"
)

// ProviderKeyEnv lists the conventional key variable for each provider. It is
// consulted only when no key was configured.
var ProviderKeyEnv = map[unifiedllm.ProviderKind]string{
	unifiedllm.ProviderOpenAI:     "OPENAI_API_KEY",
	unifiedllm.ProviderOpenRouter: "OPENROUTER_API_KEY",
	unifiedllm.ProviderGemini:     "GEMINI_API_KEY",
	unifiedllm.ProviderAnthropic:  "ANTHROPIC_API_KEY",
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Overrides holds command-line values that take precedence over the file
// and the environment.
type Overrides struct {
	Provider string
	Model    string
}

// apply sets the overridden fields. Moving to a different provider drops the
// configured key and model, since both belong to the previous provider.
func (o Overrides) apply(cfg *Config) {
	if o.Provider != "" {
		prev, _ := unifiedllm.ParseProviderKind(cfg.Provider.Name)
		next, err := unifiedllm.ParseProviderKind(o.Provider)
		if err != nil || next != prev {
			cfg.Provider.APIKey = ""
			cfg.Provider.Model = ""
		}
		cfg.Provider.Name = o.Provider
	}
	if o.Model != "" {
		cfg.Provider.Model = o.Model
	}
}

// Load reads the YAML configuration file at path, applies the environment
// overlay and the overrides, fills missing keys from the conventional
// provider variables and validates the result. A missing file yields the
// defaults.
func Load(path string, overrides Overrides) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		default:
			defer f.Close()
			if err := decode(f, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %q: %w", path, err)
			}
		}
	}

	if err := applyEnvOverlay(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	overrides.apply(cfg)
	fillProviderKeys(cfg, os.LookupEnv)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults and
// validates the result. The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %q: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays TOOLRELAY_* variables onto cfg, then fills empty keys
// from the conventional provider variables.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	err := applyEnvOverlay(cfg, lookup)
	fillProviderKeys(cfg, lookup)
	return err
}

func lookupInto(lookup LookupFunc, key string, dst *string) {
	if v, ok := lookup(key); ok && v != "" {
		*dst = v
	}
}

func applyEnvOverlay(cfg *Config, lookup LookupFunc) error {
	var errs []error

	str := func(key string, dst *string) { lookupInto(lookup, key, dst) }
	str(EnvProvider, &cfg.Provider.Name)
	str(EnvAPIKey, &cfg.Provider.APIKey)
	str(EnvModel, &cfg.Provider.Model)
	str(EnvOpenRouterKey, &cfg.OpenRouter.APIKey)
	str(EnvSearchAPIKey, &cfg.Search.APIKey)
	str(EnvSearchEngineID, &cfg.Search.EngineID)

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = LogLevel(v)
	}
	if v, ok := lookup(EnvMaxTokens); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q is not an integer", EnvMaxTokens, v))
		} else {
			cfg.Provider.MaxTokens = n
		}
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q is not a duration", EnvTimeout, v))
		} else {
			cfg.Provider.Timeout = d
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: environment: %w", errors.Join(errs...))
	}
	return nil
}

// fillProviderKeys reads the conventional variable of the provider named in
// cfg when no key was configured for it.
func fillProviderKeys(cfg *Config, lookup LookupFunc) {
	if cfg.Provider.APIKey == "" {
		if kind, err := unifiedllm.ParseProviderKind(cfg.Provider.Name); err == nil {
			lookupInto(lookup, ProviderKeyEnv[kind], &cfg.Provider.APIKey)
		}
	}
	if cfg.OpenRouter.APIKey == "" {
		lookupInto(lookup, ProviderKeyEnv[unifiedllm.ProviderOpenRouter], &cfg.OpenRouter.APIKey)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if _, err := unifiedllm.ParseProviderKind(cfg.Provider.Name); err != nil {
		errs = append(errs, fmt.Errorf("provider.name %q is invalid; valid values: openai, openrouter, gemini, anthropic", cfg.Provider.Name))
	}
	if cfg.Provider.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("provider.max_tokens must be >= 0, got %d", cfg.Provider.MaxTokens))
	}
	if cfg.Provider.Timeout < 0 {
		errs = append(errs, fmt.Errorf("provider.timeout must be >= 0, got %s", cfg.Provider.Timeout))
	}
	if cfg.Provider.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("provider.max_retries must be >= 0, got %d", cfg.Provider.MaxRetries))
	}

	if (cfg.Search.APIKey == "") != (cfg.Search.EngineID == "") {
		slog.Warn("search needs both api_key and engine_id; falling back to keyless search")
	}
	if cfg.Search.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("search.rate_per_second must be >= 0, got %g", cfg.Search.RatePerSecond))
	}

	if cfg.Sandbox.Timeout < 0 {
		errs = append(errs, fmt.Errorf("sandbox.timeout must be >= 0, got %s", cfg.Sandbox.Timeout))
	}

	switch cfg.RemoteModel.Backend {
	case "", BackendOpenAI, BackendGollm:
	default:
		errs = append(errs, fmt.Errorf("remote_model.backend %q is invalid; valid values: openai, gollm", cfg.RemoteModel.Backend))
	}

	if cfg.Agent.LoopDetectionWindow < 0 {
		errs = append(errs, fmt.Errorf("agent.loop_detection_window must be >= 0, got %d", cfg.Agent.LoopDetectionWindow))
	}

	return errors.Join(errs...)
}
