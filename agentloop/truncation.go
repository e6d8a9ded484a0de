package agentloop

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how output is shortened for display and logs.
// Tool results placed in the transcript are never truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// DefaultToolCharLimits caps how much of each tool's result is shown.
var DefaultToolCharLimits = map[string]int{
	ToolWebSearch:   4000,
	ToolRemoteModel: 4000,
	ToolSandbox:     8000,
}

// DefaultTruncationModes selects the mode per tool.
var DefaultTruncationModes = map[string]TruncationMode{
	ToolWebSearch:   TruncateHeadTail,
	ToolRemoteModel: TruncateHeadTail,
	ToolSandbox:     TruncateTail,
}

const defaultCharLimit = 2000

// TruncateOutput shortens output to roughly maxChars characters.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	removed := len(output) - maxChars
	if mode == TruncateTail {
		return fmt.Sprintf("[%d characters omitted]\n", removed) + output[len(output)-maxChars:]
	}
	half := maxChars / 2
	return output[:half] +
		fmt.Sprintf("\n[... %d characters omitted ...]\n", removed) +
		output[len(output)-half:]
}

// TruncateLines keeps the first and last lines of output.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies the per-tool character limit and mode.
func TruncateToolOutput(output, toolName string) string {
	maxChars, ok := DefaultToolCharLimits[toolName]
	if !ok {
		maxChars = defaultCharLimit
	}
	mode, ok := DefaultTruncationModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}
	return TruncateOutput(output, maxChars, mode)
}
