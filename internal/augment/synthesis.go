package augment

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openchart/scribe/internal/extract"
	"github.com/openchart/scribe/internal/llm"
	"github.com/openchart/scribe/internal/notes"
)

const synthesisPrompt = `You are writing the narrative sections of a hospital discharge summary from the notes below. Write in standard clinical prose, past tense, no invented facts.

Return ONLY a JSON object:
{
  "historyPresenting": "brief HPI paragraph",
  "hospitalCourse": "chronological course paragraph",
  "postOpProgress": "post-operative recovery paragraph",
  "majorEvents": ["event one", "event two"],
  "currentStatus": "condition at discharge"
}

Rules:
- Every statement must be supported by the notes.
- Keep each section under 150 words.
- majorEvents lists only significant events (returns to OR, codes, ICU transfers, new deficits).

NOTES:
`

// Narrative holds the synthesized prose sections layered onto the record.
type Narrative struct {
	HistoryPresenting string   `json:"historyPresenting"`
	HospitalCourse    string   `json:"hospitalCourse"`
	PostOpProgress    string   `json:"postOpProgress"`
	MajorEvents       []string `json:"majorEvents"`
	CurrentStatus     string   `json:"currentStatus"`
}

// Empty reports whether synthesis produced nothing usable.
func (n *Narrative) Empty() bool {
	return n.HistoryPresenting == "" && n.HospitalCourse == "" &&
		n.PostOpProgress == "" && len(n.MajorEvents) == 0 && n.CurrentStatus == ""
}

// NarrativeSynthesizer turns extracted structure back into discharge-summary
// prose. The fallback composes a template narrative from the deterministic
// record so a summary is always producible offline.
type NarrativeSynthesizer struct {
	provider llm.Provider
	log      zerolog.Logger
}

// NewNarrativeSynthesizer builds the adapter. provider may be nil.
func NewNarrativeSynthesizer(provider llm.Provider, log zerolog.Logger) *NarrativeSynthesizer {
	return &NarrativeSynthesizer{provider: provider, log: log}
}

// Synthesize produces narrative sections for the record.
func (s *NarrativeSynthesizer) Synthesize(ctx context.Context, bundle *notes.Bundle, rec *extract.Record) (*Narrative, Outcome) {
	out := Outcome{Adapter: "synthesis", Source: SourceSkipped}

	if s.provider != nil {
		raw, err := s.provider.Complete(ctx, synthesisPrompt+truncateForPrompt(bundle.Unique()), llm.CompletionOpts{
			Temperature: 0.2,
			MaxTokens:   2000,
			Format:      "json",
		})
		if err == nil {
			var n Narrative
			if perr := DecodeObject(raw, &n); perr == nil && !n.Empty() {
				out.Source = SourceLLM
				return &n, out
			} else if perr != nil {
				err = perr
			} else {
				err = fmt.Errorf("synthesis returned empty narrative")
			}
		}
		s.log.Warn().Err(err).Msg("synthesis adapter falling back to template narrative")
		out.Err = err.Error()
	}

	out.Source = SourceFallback
	return fallbackNarrative(rec), out
}

// fallbackNarrative composes a plain course narrative from the structured
// record. Sentences are only emitted for populated fields.
func fallbackNarrative(rec *extract.Record) *Narrative {
	n := &Narrative{
		HistoryPresenting: rec.HistoryPresenting,
		PostOpProgress:    strings.Join(rec.PODProgress, "\n"),
		CurrentStatus:     rec.DischargeExam,
	}
	for _, ev := range rec.MajorEvents {
		n.MajorEvents = append(n.MajorEvents, ev.Event)
	}

	var parts []string
	if rec.AdmittingDiagnosis != "" {
		parts = append(parts, "Patient admitted with "+rec.AdmittingDiagnosis+".")
	}
	if len(rec.Procedures) > 0 {
		descs := make([]string, 0, len(rec.Procedures))
		for _, p := range rec.Procedures {
			descs = append(descs, p.Description)
		}
		parts = append(parts, "Underwent "+strings.Join(descs, "; ")+".")
	}
	if len(rec.Complications) > 0 {
		labels := make([]string, 0, len(rec.Complications))
		for _, c := range rec.Complications {
			if l := c.Label(); l != "" {
				labels = append(labels, l)
			}
		}
		if len(labels) > 0 {
			parts = append(parts, "Complications: "+strings.Join(labels, ", ")+".")
		}
	}
	if rec.HospitalCourse != "" {
		parts = append(parts, rec.HospitalCourse)
	}
	if len(parts) > 0 {
		parts = append(parts, "Patient progressed through recovery and was cleared for discharge.")
	}
	n.HospitalCourse = strings.Join(parts, " ")
	return n
}
