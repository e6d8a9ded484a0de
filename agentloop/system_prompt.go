package agentloop

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/martinemde/toolrelay/unifiedllm"
)

// BuildEnvironmentContext generates the structured environment context block.
func BuildEnvironmentContext(provider unifiedllm.ProviderKind, model string, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Today's date: %s\n", now.Format("2006-01-02"))
	if provider != "" {
		fmt.Fprintf(&sb, "Provider: %s\n", provider)
	}
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}

// BuildSystemPrompt returns a system prompt listing the available tools,
// followed by the environment context.
func BuildSystemPrompt(defs []unifiedllm.ToolDefinition, settings Settings, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant. ")
	if len(defs) == 0 {
		sb.WriteString("No tools are available; answer directly.\n\n")
	} else {
		sb.WriteString("Call a tool when it helps answer the question, then answer in plain text.\n\n")
		sb.WriteString("Available tools:\n")
		for _, d := range defs {
			fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
		}
		fmt.Fprintf(&sb, "\nYou may use at most %d rounds of tool calls per question.\n\n", MaxIterations)
	}
	sb.WriteString(BuildEnvironmentContext(settings.Provider, settings.Model, now))
	return sb.String()
}
