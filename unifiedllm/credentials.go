package unifiedllm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoCredential is returned when no credential could be found.
var ErrNoCredential = errors.New("no credential available")

// CredentialResolver supplies a proxy credential when none is configured.
type CredentialResolver interface {
	ResolveCredential(ctx context.Context) (string, error)
}

// CredentialResolverFunc adapts a function to CredentialResolver.
type CredentialResolverFunc func(ctx context.Context) (string, error)

// ResolveCredential implements CredentialResolver.
func (f CredentialResolverFunc) ResolveCredential(ctx context.Context) (string, error) {
	return f(ctx)
}

// LoginRedirector sends the user to an external login flow.
type LoginRedirector interface {
	RedirectToLogin(ctx context.Context, provider ProviderKind) error
}

// LoginRedirectorFunc adapts a function to LoginRedirector.
type LoginRedirectorFunc func(ctx context.Context, provider ProviderKind) error

// RedirectToLogin implements LoginRedirector.
func (f LoginRedirectorFunc) RedirectToLogin(ctx context.Context, provider ProviderKind) error {
	return f(ctx, provider)
}

// ResolveProxyCredential returns configured when set, otherwise asks resolver.
// It returns an error wrapping ErrNoCredential when nothing is found.
func ResolveProxyCredential(ctx context.Context, configured string, resolver CredentialResolver) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if resolver == nil {
		return "", fmt.Errorf("%w: %w", NewConfigurationError("%s: credential is required", ProviderOpenRouter), ErrNoCredential)
	}
	credential, err := resolver.ResolveCredential(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", NewConfigurationError("%s: credential lookup failed", ProviderOpenRouter), err)
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", fmt.Errorf("%w: %w", NewConfigurationError("%s: credential is required", ProviderOpenRouter), ErrNoCredential)
	}
	return credential, nil
}

// profileFile is the on-disk shape read by ProfileFileResolver.
type profileFile struct {
	OpenRouter struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"openrouter"`
}

// ProfileFileResolver reads the proxy credential from a YAML profile file:
//
//	openrouter:
//	  api_key: sk-or-...
type ProfileFileResolver struct {
	Path string
}

// DefaultProfilePath returns the profile location under the user config dir.
func DefaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "toolrelay", "profile.yaml")
}

// ResolveCredential implements CredentialResolver.
func (r ProfileFileResolver) ResolveCredential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.Path == "" {
		return "", ErrNoCredential
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("read profile %s: %w", r.Path, err)
	}
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return "", fmt.Errorf("parse profile %s: %w", r.Path, err)
	}
	if pf.OpenRouter.APIKey == "" {
		return "", ErrNoCredential
	}
	return pf.OpenRouter.APIKey, nil
}
