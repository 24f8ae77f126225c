// Package notes segments raw clinical text into typed note categories.
//
// Clinical input frequently arrives as one undifferentiated blob containing
// admission, progress, consultant, procedure, and discharge notes. The
// detector splits on structural delimiter lines and classifies each segment
// by keyword heuristics so downstream extraction can apply category-scoped
// rules.
package notes

import (
	"regexp"
	"strings"
)

// Category identifies one of the five note types.
type Category string

const (
	Admission  Category = "admission"
	Progress   Category = "progress"
	Consultant Category = "consultant"
	Procedure  Category = "procedure"
	Final      Category = "final"
)

// Categories lists all note categories in classification priority order.
var Categories = []Category{Admission, Progress, Consultant, Procedure, Final}

// Bundle maps each note category to its accumulated text. Segments assigned
// to the same category are appended in original order, separated by a blank
// line. A category value is either empty or non-whitespace.
type Bundle struct {
	Admission  string `json:"admission"`
	Progress   string `json:"progress"`
	Consultant string `json:"consultant"`
	Procedure  string `json:"procedure"`
	Final      string `json:"final"`
}

// Get returns the text for a category.
func (b *Bundle) Get(c Category) string {
	switch c {
	case Admission:
		return b.Admission
	case Progress:
		return b.Progress
	case Consultant:
		return b.Consultant
	case Procedure:
		return b.Procedure
	case Final:
		return b.Final
	}
	return ""
}

// All returns every non-empty category's text joined by newlines, in
// priority order. Overlapping categories (the unified-note case) repeat the
// same text; callers that need deduplicated text should use Unique.
func (b *Bundle) All() string {
	var parts []string
	for _, c := range Categories {
		if t := b.Get(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Unique returns the distinct category texts joined by newlines. When a
// single unified note was assigned to several categories this collapses the
// duplicates so vocabulary scans do not double-count.
func (b *Bundle) Unique() string {
	seen := make(map[string]bool)
	var parts []string
	for _, c := range Categories {
		t := b.Get(c)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		parts = append(parts, t)
	}
	return strings.Join(parts, "\n")
}

// Empty reports whether no category received any content.
func (b *Bundle) Empty() bool {
	for _, c := range Categories {
		if strings.TrimSpace(b.Get(c)) != "" {
			return false
		}
	}
	return true
}

// unifiedMinLength is the minimum length for a delimiter-free input to be
// treated as a unified note spanning admission, progress, and final.
const unifiedMinLength = 100

// defaultSegmentMinLength is the minimum length for an unclassified first
// segment to default into admission.
const defaultSegmentMinLength = 50

// delimiterRE matches structural section delimiters: runs of 3+ '=', '-',
// or '*' on their own line, or 2+ '#'.
var delimiterRE = regexp.MustCompile(`\n={3,}|\n-{3,}|\n\*{3,}|\n#{2,}`)

var postOpDayRE = regexp.MustCompile(`(?i)post[- ]?op(?:erative)?\s+day`)

var specialtyNoteRE = regexp.MustCompile(`(?i)(?:cardiology|neurology|medicine|icu|surgery)\s+note`)

// Detect splits raw text into a Bundle.
//
// When the input has no structural delimiters and is longer than the unified
// threshold, the whole text is assigned to admission, progress, AND final.
// This is a deliberate ambiguity-absorption branch: a single-block note must
// stay visible to extraction rules scoped to any of those three categories.
//
// Guarantee: the returned bundle is never entirely empty for non-whitespace
// input; unclassifiable text lands in admission.
func Detect(text string) *Bundle {
	b := &Bundle{}

	sections := delimiterRE.Split(text, -1)

	if len(sections) == 1 && len(strings.TrimSpace(sections[0])) > unifiedMinLength {
		b.Admission = text
		b.Progress = text
		b.Final = text
		return b
	}

	for _, section := range sections {
		trimmed := strings.TrimSpace(section)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(section)

		switch {
		case strings.Contains(lower, "admission") ||
			strings.Contains(lower, "history and physical") ||
			strings.Contains(lower, "h&p") ||
			strings.Contains(lower, "chief complaint") ||
			(strings.Contains(lower, "patient") && strings.Contains(lower, "admitted")):
			appendSegment(&b.Admission, trimmed)

		case strings.Contains(lower, "progress note") ||
			strings.Contains(lower, "daily note") ||
			strings.Contains(lower, "soap note") ||
			(strings.Contains(lower, "neurosurgery") && strings.Contains(lower, "note")) ||
			postOpDayRE.MatchString(section):
			appendSegment(&b.Progress, trimmed)

		case strings.Contains(lower, "consult") ||
			strings.Contains(lower, "recommendations from") ||
			specialtyNoteRE.MatchString(section):
			appendSegment(&b.Consultant, trimmed)

		case strings.Contains(lower, "operative note") ||
			strings.Contains(lower, "procedure note") ||
			strings.Contains(lower, "operation performed") ||
			strings.Contains(lower, "operative report") ||
			strings.Contains(lower, "op note"):
			appendSegment(&b.Procedure, trimmed)

		case strings.Contains(lower, "discharge") ||
			strings.Contains(lower, "final note") ||
			strings.Contains(lower, "disposition"):
			appendSegment(&b.Final, trimmed)

		case b.Admission == "" && len(trimmed) > defaultSegmentMinLength:
			// First substantial unmarked segment defaults to admission.
			appendSegment(&b.Admission, trimmed)
		}
	}

	// No-total-loss fallback: if nothing classified, the whole input is an
	// admission note.
	if b.Empty() {
		b.Admission = text
	}

	return b
}

func appendSegment(dst *string, segment string) {
	if *dst == "" {
		*dst = segment
		return
	}
	*dst += "\n\n" + segment
}
