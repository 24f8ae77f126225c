package extract

import (
	"regexp"
	"strings"
)

var medLineRE = regexp.MustCompile(`(?i)^\s*(?:\d+[.)]\s*|[-*•]\s*)?([A-Za-z][A-Za-z-]+)\s+(\d+(?:\.\d+)?)\s*(mg|mcg|g|ml|units?)\b\s*(?:\(?(PO|IV|IM|SQ|SL|PR)\)?)?\s*(daily|BID|TID|QID|PRN|nightly|q\d+h|every \d+ hours?|at bedtime)?`)

// FormatMedication canonicalizes one medication line into
// "Name DoseUnit [Route] [Frequency]" with the drug name capitalized.
// Lines that do not parse as a dosed medication are returned trimmed of
// list markers but otherwise unchanged.
func FormatMedication(line string) string {
	m := medLineRE.FindStringSubmatch(line)
	if m == nil {
		return strings.TrimSpace(stripListMarker(line))
	}
	name := capitalize(m[1])
	out := name + " " + m[2] + strings.ToLower(m[3])
	if m[4] != "" {
		out += " " + strings.ToUpper(m[4])
	}
	if m[5] != "" {
		out += " " + strings.ToLower(m[5])
	}
	return out
}

// ParseMedicationBlock splits a medication section into per-drug entries,
// keeping only lines that carry a dose digit, canonically formatted.
func ParseMedicationBlock(block string) []string {
	var meds []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.ContainsAny(line, "0123456789") {
			continue
		}
		med := FormatMedication(line)
		key := strings.ToLower(med)
		if med == "" || seen[key] {
			continue
		}
		seen[key] = true
		meds = append(meds, med)
	}
	return meds
}

var listMarkerRE = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-*•]\s*)`)

func stripListMarker(s string) string {
	return listMarkerRE.ReplaceAllString(s, "")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
