package augment

import "strings"

// Source tags how an adapter produced its result.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
	SourceSkipped  Source = "skipped"
)

// Outcome is per-adapter provenance surfaced in the pipeline result so a
// reader can tell which parts of the record came from a model and which
// from deterministic fallbacks.
type Outcome struct {
	Adapter string `json:"adapter"`
	Source  Source `json:"source"`
	// Err records a non-fatal model failure that triggered the fallback.
	Err string `json:"error,omitempty"`
}

// maxPromptChars bounds the note text embedded in a prompt.
const maxPromptChars = 12000

func truncateForPrompt(text string) string {
	if len(text) <= maxPromptChars {
		return text
	}
	return text[:maxPromptChars] + "\n[truncated]"
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
