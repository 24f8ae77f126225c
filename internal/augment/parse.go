// Package augment layers LLM-backed adapters over the deterministic record:
// complication detection, consultant parsing, and narrative synthesis. Every
// adapter carries a pure fallback so augmentation degrades rather than
// fails when no provider is configured or a call errors.
package augment

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	braceRE = regexp.MustCompile(`(?s)\{.*\}`)
)

// DecodeObject unmarshals a model response that should contain one JSON
// object. Models wrap output in markdown fences or prose unpredictably, so
// decoding is attempted in three passes: the raw text, the fenced block,
// and the outermost brace span.
func DecodeObject(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty response")
	}

	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	if m := fenceRE.FindStringSubmatch(raw); m != nil {
		if err := json.Unmarshal([]byte(m[1]), v); err == nil {
			return nil
		}
	}
	if m := braceRE.FindString(raw); m != "" {
		if err := json.Unmarshal([]byte(m), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no parseable JSON object in response (%d bytes)", len(raw))
}
