package agentloop

import (
	"crypto/sha256"
	"fmt"

	"github.com/martinemde/toolrelay/unifiedllm"
)

// toolCallSignature computes a deterministic signature for a tool call
// (name + hash of normalized arguments).
func toolCallSignature(tc unifiedllm.ToolCall) string {
	args := tc.Function.Arguments
	if args == "" {
		args = "{}"
	}
	h := sha256.Sum256([]byte(args))
	return fmt.Sprintf("%s:%x", tc.Function.Name, h[:8])
}

// extractToolCallSignatures extracts signatures from the most recent tool
// calls in the transcript.
func extractToolCallSignatures(transcript []unifiedllm.Message, count int) []string {
	var sigs []string
	// Walk the transcript backwards to find tool call signatures.
	for i := len(transcript) - 1; i >= 0 && len(sigs) < count; i-- {
		m := transcript[i]
		if m.Role != unifiedllm.RoleAssistant {
			continue
		}
		for j := len(m.ToolCalls) - 1; j >= 0 && len(sigs) < count; j-- {
			sigs = append(sigs, toolCallSignature(m.ToolCalls[j]))
		}
	}
	// Reverse to chronological order.
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop checks if the last windowSize tool calls follow a repeating
// pattern of length 1, 2, or 3. The pattern must occur at least twice.
func DetectLoop(transcript []unifiedllm.Message, windowSize int) bool {
	if windowSize <= 1 {
		return false
	}
	sigs := extractToolCallSignatures(transcript, windowSize)
	if len(sigs) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3 && patternLen*2 <= windowSize; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
			if !allMatch {
				break
			}
		}
		if allMatch {
			return true
		}
	}

	return false
}
