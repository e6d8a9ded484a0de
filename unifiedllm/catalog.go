package unifiedllm

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string       `json:"id"`
	Provider      ProviderKind `json:"provider"`
	DisplayName   string       `json:"display_name"`
	ContextWindow int          `json:"context_window"`
	MaxOutput     int          `json:"max_output,omitempty"`
	Aliases       []string     `json:"aliases,omitempty"`
}

// Models is the built-in model catalog. The first entry per provider is the
// default used when settings leave the model empty.
var Models = []ModelInfo{
	// OpenAI
	{
		ID: "gpt-4o-mini", Provider: ProviderOpenAI, DisplayName: "GPT-4o mini",
		ContextWindow: 128000, MaxOutput: 16384,
		Aliases: []string{"4o-mini"},
	},
	{
		ID: "gpt-4o", Provider: ProviderOpenAI, DisplayName: "GPT-4o",
		ContextWindow: 128000, MaxOutput: 16384,
		Aliases: []string{"4o"},
	},

	// OpenRouter
	{
		ID: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, DisplayName: "GPT-4o mini (OpenRouter)",
		ContextWindow: 128000, MaxOutput: 16384,
	},
	{
		ID: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter, DisplayName: "Claude 3.5 Sonnet (OpenRouter)",
		ContextWindow: 200000, MaxOutput: 8192,
	},

	// Gemini
	{
		ID: "gemini-1.5-flash", Provider: ProviderGemini, DisplayName: "Gemini 1.5 Flash",
		ContextWindow: 1048576, MaxOutput: 8192,
		Aliases: []string{"gemini-flash"},
	},
	{
		ID: "gemini-1.5-pro", Provider: ProviderGemini, DisplayName: "Gemini 1.5 Pro",
		ContextWindow: 2097152, MaxOutput: 8192,
		Aliases: []string{"gemini-pro"},
	},

	// Anthropic
	{
		ID: "claude-3-5-sonnet-latest", Provider: ProviderAnthropic, DisplayName: "Claude 3.5 Sonnet",
		ContextWindow: 200000, MaxOutput: 8192,
		Aliases: []string{"sonnet"},
	},
	{
		ID: "claude-3-5-haiku-latest", Provider: ProviderAnthropic, DisplayName: "Claude 3.5 Haiku",
		ContextWindow: 200000, MaxOutput: 8192,
		Aliases: []string{"haiku"},
	},
}

// GetModelInfo returns the catalog entry for a model id or alias, or nil.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider ProviderKind) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// GetLatestModel returns the default model for a provider, or nil.
func GetLatestModel(provider ProviderKind) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider {
			return &Models[i]
		}
	}
	return nil
}

// ResolveModel expands an alias to its catalog id. Unknown ids pass through
// so new models work without a catalog update.
func ResolveModel(provider ProviderKind, model string) string {
	if model == "" {
		if info := GetLatestModel(provider); info != nil {
			return info.ID
		}
		return ""
	}
	if info := GetModelInfo(model); info != nil && info.Provider == provider {
		return info.ID
	}
	return model
}
