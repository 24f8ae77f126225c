package augment

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openchart/scribe/internal/extract"
	"github.com/openchart/scribe/internal/llm"
)

const consultantPrompt = `You are parsing consultant notes from a hospital admission. Extract every consulting service and its recommendations.

Return ONLY a JSON object:
{
  "consultants": [
    {
      "service": "Infectious Disease",
      "date": "12/08/2024",
      "recommendations": ["continue vancomycin", "repeat CSF culture in 48h"],
      "medications": ["vancomycin 1g IV q12h"],
      "followUp": "ID clinic in 2 weeks",
      "duration": "6 week antibiotic course"
    }
  ]
}

Rules:
- One entry per consulting service.
- Recommendations are verbatim or lightly normalized, one actionable item each.
- Omit fields the note does not state; never invent values.

CONSULTANT NOTES:
`

// ConsultantParser structures consultant notes into per-service entries and
// a flattened recommendation list. The fallback recognizes a fixed set of
// service headers and harvests bullet lines beneath them.
type ConsultantParser struct {
	provider llm.Provider
	log      zerolog.Logger
}

// NewConsultantParser builds the adapter. provider may be nil.
func NewConsultantParser(provider llm.Provider, log zerolog.Logger) *ConsultantParser {
	return &ConsultantParser{provider: provider, log: log}
}

type consultantResponse struct {
	Consultants []extract.Consultant `json:"consultants"`
}

// Parse extracts consultants from consultant-note text. The returned
// recommendations are the flattened per-service items.
func (p *ConsultantParser) Parse(ctx context.Context, text string) ([]extract.Consultant, []extract.Recommendation, Outcome) {
	out := Outcome{Adapter: "consultants", Source: SourceSkipped}
	if strings.TrimSpace(text) == "" {
		return nil, nil, out
	}

	if p.provider != nil {
		raw, err := p.provider.Complete(ctx, consultantPrompt+truncateForPrompt(text), llm.CompletionOpts{
			Temperature: 0.1,
			MaxTokens:   1500,
			Format:      "json",
		})
		if err == nil {
			var resp consultantResponse
			if perr := DecodeObject(raw, &resp); perr == nil {
				out.Source = SourceLLM
				return resp.Consultants, flattenRecommendations(resp.Consultants), out
			} else {
				err = perr
			}
		}
		p.log.Warn().Err(err).Msg("consultant adapter falling back to header scan")
		out.Err = err.Error()
	}

	out.Source = SourceFallback
	consultants := fallbackConsultants(text)
	return consultants, flattenRecommendations(consultants), out
}

func flattenRecommendations(consultants []extract.Consultant) []extract.Recommendation {
	var recs []extract.Recommendation
	for _, c := range consultants {
		for _, r := range cleanList(c.Recommendations) {
			recs = append(recs, extract.Recommendation{
				Service:        c.Service,
				Recommendation: r,
				Date:           c.Date,
			})
		}
	}
	return recs
}

var serviceHeaderRE = regexp.MustCompile(`(?im)^\s*(Infectious Disease|Hematology|Cardiology|Endocrinology|Neurology|Nephrology|Pulmonology|Physical Therapy|Palliative Care|[A-Z][a-z]+(?: [A-Z][a-z]+)?)\s+Consult(?:ation)?\b[^\n]*`)

var bulletLineRE = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s*(.+)$`)

var consultDateRE = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)

// fallbackConsultants splits the text at recognized service headers and
// collects bullet lines in each block as recommendations.
func fallbackConsultants(text string) []extract.Consultant {
	headers := serviceHeaderRE.FindAllStringSubmatchIndex(text, -1)
	if len(headers) == 0 {
		// No headers but bullets present: attribute them to an unnamed
		// consultant rather than dropping them.
		if recs := bulletCaptures(text); len(recs) > 0 {
			return []extract.Consultant{{Service: "Consultant", Recommendations: recs}}
		}
		return nil
	}

	var consultants []extract.Consultant
	for i, h := range headers {
		blockEnd := len(text)
		if i+1 < len(headers) {
			blockEnd = headers[i+1][0]
		}
		block := text[h[0]:blockEnd]
		c := extract.Consultant{
			Service:         strings.TrimSpace(text[h[2]:h[3]]),
			Date:            extract.NormalizeDate(consultDateRE.FindString(block)),
			Recommendations: bulletCaptures(block),
		}
		if c.Date == "" && len(c.Recommendations) == 0 {
			continue
		}
		consultants = append(consultants, c)
	}
	return consultants
}

func bulletCaptures(block string) []string {
	var recs []string
	for _, m := range bulletLineRE.FindAllStringSubmatch(block, -1) {
		if v := strings.TrimSpace(m[1]); len(v) > 3 {
			recs = append(recs, v)
		}
	}
	return recs
}
