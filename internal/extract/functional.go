package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Karnofsky Performance Status estimation from exam narrative. Applied only
// when no explicit KPS value appears in the notes; an explicit score always
// wins.

var (
	motorFullRE    = regexp.MustCompile(`\b5/5\b`)
	motorPartialRE = regexp.MustCompile(`\b[34]/5\b`)
	motorWeakRE    = regexp.MustCompile(`\b[12]/5\b`)
)

// EstimateKPS infers a KPS score and a functional description from exam
// text cues. Returns 0 and "" when the text carries no functional signal.
// Cues are applied in fixed order so later, more specific findings refine
// earlier ones; the description follows the strongest assistance-level cue.
func EstimateKPS(examText string) (int, string) {
	text := strings.ToLower(examText)
	kps := 0
	desc := ""

	if strings.Contains(text, "independent") {
		if strings.Contains(text, "normal") || strings.Contains(text, "no deficits") || strings.Contains(text, "intact") {
			kps = 90
			desc = "Independent, neurologically intact"
		} else {
			kps = 80
			desc = "Independent with activities of daily living"
		}
	}

	// Assistance tiers, most to least independent; the first match wins.
	// "dependent" alone must not fire on "independent".
	independent := strings.Contains(text, "independent")
	switch {
	case strings.Contains(text, "minimal assistance") || strings.Contains(text, "contact guard"):
		kps = 70
		desc = "Requires minimal assistance"
	case strings.Contains(text, "moderate assistance") ||
		(strings.Contains(text, "assist") && !independent):
		kps = 60
		desc = "Requires moderate assistance"
	case strings.Contains(text, "maximal assistance") ||
		(strings.Contains(text, "dependent") && !independent):
		kps = 50
		desc = "Requires maximal assistance"
	}
	if strings.Contains(text, "total care") || strings.Contains(text, "unable to care") {
		kps = 40
		desc = "Requires total care"
	}

	if strings.Contains(text, "bedridden") || strings.Contains(text, "bed-bound") || strings.Contains(text, "bed bound") {
		if kps == 0 || kps > 30 {
			kps = 30
		}
		desc = "Bedridden"
	}
	if strings.Contains(text, "wheelchair") {
		kps = clamp(kps, 40, 60)
		if desc == "" {
			desc = "Wheelchair-level mobility"
		}
	}

	if strings.Contains(text, "fully functional") || strings.Contains(text, "no limitations") {
		kps = 100
		desc = "Fully functional, no limitations"
	}

	switch {
	case motorWeakRE.MatchString(text):
		if kps == 0 || kps > 50 {
			kps = 50
		}
		if desc == "" {
			desc = "Significant motor weakness"
		}
	case motorPartialRE.MatchString(text):
		kps = clamp(kps, 40, 70)
		if desc == "" {
			desc = "Partial motor weakness"
		}
	case motorFullRE.MatchString(text):
		if kps < 80 {
			kps = 80
		}
		if desc == "" {
			desc = "Full motor strength"
		}
	}

	if kps == 0 {
		return 0, ""
	}
	return kps, desc
}

// ConditionTier maps a KPS score to its discharge condition label.
func ConditionTier(kps int) string {
	switch {
	case kps >= 80:
		return "5 - Excellent"
	case kps >= 70:
		return "4 - Good"
	case kps >= 50:
		return "3 - Fair"
	case kps >= 30:
		return "2 - Poor"
	case kps > 0:
		return "1 - Critical"
	}
	return ""
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func atoiSafe(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func itoa(n int) string { return strconv.Itoa(n) }
