package anthropic

import "strings"

// StripCodeFence removes a surrounding markdown code fence from model output.
// Models occasionally wrap JSON answers in ```json ... ``` even when the
// prompt asks for raw JSON. Input without a fence is returned trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
