package augment

import (
	"context"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/openchart/scribe/internal/extract"
	"github.com/openchart/scribe/internal/llm"
)

const complicationPrompt = `You are a clinical complication auditor. Review the hospital notes below and identify every complication that occurred during the admission.

Return ONLY a JSON object with this shape:
{
  "hasComplications": true,
  "complicationCount": 2,
  "complications": [
    {
      "type": "infection",
      "specific": "ventriculitis",
      "onset": "POD 3",
      "severity": "moderate",
      "treatment": "IV vancomycin",
      "status": "resolving"
    }
  ]
}

Rules:
- Only report complications explicitly documented in the notes.
- "type" is a coarse category (infection, hemorrhage, seizure, csf_leak, deficit, hydrocephalus, medical, other).
- Use "Not specified" when the notes do not state onset.
- An admission with no complications returns {"hasComplications": false, "complicationCount": 0, "complications": []}.

NOTES:
`

// ComplicationDetector finds complications the rule tier missed by asking
// an LLM to audit the full note text. Without a provider, or on model
// failure, a keyword fallback runs instead.
type ComplicationDetector struct {
	provider llm.Provider
	log      zerolog.Logger
}

// NewComplicationDetector builds the adapter. provider may be nil.
func NewComplicationDetector(provider llm.Provider, log zerolog.Logger) *ComplicationDetector {
	return &ComplicationDetector{provider: provider, log: log}
}

type complicationResponse struct {
	HasComplications  bool                   `json:"hasComplications"`
	ComplicationCount int                    `json:"complicationCount"`
	Complications     []extract.Complication `json:"complications"`
}

// Detect returns the complications found in text plus provenance.
func (d *ComplicationDetector) Detect(ctx context.Context, text string) ([]extract.Complication, Outcome) {
	out := Outcome{Adapter: "complications", Source: SourceSkipped}
	if text == "" {
		return nil, out
	}

	if d.provider != nil {
		raw, err := d.provider.Complete(ctx, complicationPrompt+truncateForPrompt(text), llm.CompletionOpts{
			Temperature: 0.1,
			MaxTokens:   1500,
			Format:      "json",
		})
		if err == nil {
			var resp complicationResponse
			if perr := DecodeObject(raw, &resp); perr == nil {
				out.Source = SourceLLM
				return resp.Complications, out
			} else {
				err = perr
			}
		}
		d.log.Warn().Err(err).Msg("complication adapter falling back to keyword scan")
		out.Err = err.Error()
	}

	out.Source = SourceFallback
	return fallbackComplications(text), out
}

// Keyword fallback. Each matched category yields one entry built from the
// first match, with unknowable fields filled with sentinel values.
var complicationVocab = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"infection", regexp.MustCompile(`(?i)\b(wound infection|meningitis|ventriculitis|abscess|cellulitis|UTI|urinary tract infection|pneumonia|sepsis)\b`)},
	{"seizure", regexp.MustCompile(`(?i)\b(seizures?|status epilepticus|convulsions?)\b`)},
	{"deficit", regexp.MustCompile(`(?i)\b(new (?:weakness|numbness|deficit)|hemiparesis|hemiplegia|aphasia|dysphasia|facial droop)\b`)},
	{"csf_leak", regexp.MustCompile(`(?i)\b(CSF leak|pseudomeningocele|wound drainage|rhinorrhea|otorrhea)\b`)},
	{"hemorrhage", regexp.MustCompile(`(?i)\b(re-?bleed(?:ing)?|post-?op(?:erative)? (?:hemorrhage|hematoma)|new hemorrhage)\b`)},
	{"hydrocephalus", regexp.MustCompile(`(?i)\b(hydrocephalus|ventriculomegaly|shunt (?:malfunction|failure))\b`)},
}

func fallbackComplications(text string) []extract.Complication {
	var comps []extract.Complication
	for _, v := range complicationVocab {
		m := v.re.FindString(text)
		if m == "" {
			continue
		}
		comps = append(comps, extract.Complication{
			Type:      v.kind,
			Specific:  m,
			Onset:     "Not specified",
			Severity:  "unknown",
			Treatment: "See notes",
			Status:    "documented",
		})
	}
	return comps
}
