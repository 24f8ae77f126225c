package extract

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one compiled extraction pattern. Rules for a field are tried in
// slice order and the first match wins, so order encodes priority.
type Rule struct {
	Name  string
	re    *regexp.Regexp
	Group int
}

// Match applies the rule and returns the trimmed capture group, or "" when
// the rule does not match.
func (r Rule) Match(text string) string {
	m := r.re.FindStringSubmatch(text)
	if m == nil || r.Group >= len(m) {
		return ""
	}
	return strings.TrimSpace(m[r.Group])
}

// Regexp exposes the compiled pattern for callers needing match positions.
func (r Rule) Regexp() *regexp.Regexp { return r.re }

// MatchAll returns every trimmed capture for the rule.
func (r Rule) MatchAll(text string) []string {
	var out []string
	for _, m := range r.re.FindAllStringSubmatch(text, -1) {
		if r.Group < len(m) {
			if v := strings.TrimSpace(m[r.Group]); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func mustRule(name, pattern string, group int) Rule {
	return Rule{Name: name, re: regexp.MustCompile(pattern), Group: group}
}

// Section headers that terminate a greedy block capture. RE2 has no
// lookahead, so terminators are consumed as a non-capturing tail; only the
// capture group is kept, which preserves first-match behavior.
const blockEnd = `(?:\n\n|\n[A-Z][^:\n]{0,40}:|\z)`

const pmhEnd = `(?:\n\n|\n(?:PSH|Past Surgical[^:\n]*|Medications?|Allergies|Social History|Family History|Procedure[^:\n]*)\s*:|\z)`

const pshEnd = `(?:\n\n|\n(?:Medications?|Allergies|Social History|Family History|Procedure[^:\n]*)\s*:|\z)`

// Library holds the per-field rule sets. A Library is immutable after
// construction; Override builds modified copies so a running pipeline can
// swap libraries atomically.
type Library struct {
	fields map[string][]Rule
}

// Field names accepted by the library.
const (
	FieldPatientName        = "patientName"
	FieldAge                = "age"
	FieldSex                = "sex"
	FieldMRN                = "mrn"
	FieldAdmitDate          = "admitDate"
	FieldDischargeDate      = "dischargeDate"
	FieldDate               = "date"
	FieldAdmittingDiagnosis = "admittingDiagnosis"
	FieldDischargeDiagnosis = "dischargeDiagnosis"
	FieldHPI                = "historyPresenting"
	FieldPMH                = "pastMedicalHistory"
	FieldPSH                = "pastSurgicalHistory"
	FieldAllergies          = "allergies"
	FieldProcedure          = "procedure"
	FieldProcedureInline    = "procedureInline"
	FieldHospitalCourse     = "hospitalCourse"
	FieldPOD                = "podProgress"
	FieldExam               = "currentExam"
	FieldVitals             = "vitals"
	FieldMedications        = "dischargeMedications"
	FieldDisposition        = "disposition"
	FieldFollowUp           = "followUp"
	FieldDiet               = "diet"
	FieldActivity           = "activity"
	FieldImaging            = "imagingFindings"
	FieldComplications      = "complications"
	FieldImplicitComp       = "implicitComplication"
	FieldRecommendations    = "recommendations"
	FieldMajorEvents        = "majorEvents"
	FieldKPS                = "kps"
	FieldDischargeExam      = "dischargeExam"
	FieldNeuroExam          = "neuroExam"
)

// DefaultLibrary builds the built-in rule library.
func DefaultLibrary() *Library {
	return &Library{fields: map[string][]Rule{
		FieldPatientName: {
			mustRule("labeled-name", `(?:Patient|Name|Pt)\s*:[ \t]*([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)+)`, 1),
			mustRule("narrative-name", `(?m)^([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*)[ \t]+is[ \t]+a[ \t]+\d+`, 1),
			mustRule("loose-name", `(?i)name\s*:\s*([^\n]+)`, 1),
		},
		FieldAge: {
			mustRule("age-phrase", `(?i)(\d{1,3})[\s-]*(?:years?|yo|y\.o\.|y/o)[\s-]*old`, 1),
			mustRule("age-labeled", `(?i)\bage\s*:?\s*(\d{1,3})`, 1),
		},
		FieldSex: {
			mustRule("sex-word", `(?i)\b(male|female|man|woman)\b`, 1),
			mustRule("sex-letter", `(?i)\bsex\s*:?\s*([MF])\b`, 1),
		},
		FieldMRN: {
			mustRule("mrn", `(?i)(?:MRN|medical record(?:\s+number)?)\s*#?\s*:?\s*([A-Za-z0-9-]+)`, 1),
		},
		FieldAdmitDate: {
			mustRule("admit-date", `(?i)(?:admit(?:ted)?|admission)(?:\s+date)?\s*(?:on|:)?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`, 1),
		},
		FieldDischargeDate: {
			mustRule("discharge-date", `(?i)discharge(?:d)?(?:\s+date)?\s*(?:on|:)?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`, 1),
		},
		FieldDate: {
			mustRule("any-date", `(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`, 1),
		},
		FieldAdmittingDiagnosis: {
			mustRule("admit-dx-header", `(?i)(?:chief complaint|presenting problem|reason for admission|admitting diagnosis)\s*:\s*([^\n]+)`, 1),
			mustRule("admit-dx-cc", `(?m)\bCC\s*:\s*([^\n]+)`, 1),
			mustRule("admit-dx-generic", `(?im)^diagnosis\s*:\s*([^\n]+)`, 1),
		},
		FieldDischargeDiagnosis: {
			mustRule("discharge-dx", `(?i)(?:discharge|final|primary)\s+diagnos(?:is|es)\s*:\s*([^\n]+)`, 1),
			mustRule("discharge-dx-generic", `(?im)^diagnosis\s*:\s*([^\n]+)`, 1),
		},
		FieldHPI: {
			mustRule("hpi", `(?is)(?:history of present(?:ing)? illness|hpi)\s*:?\s*(.{50,500}?)`+blockEnd, 1),
		},
		FieldPMH: {
			mustRule("pmh", `(?is)(?:past medical history|pmh)\s*:?\s*(.{20,300}?)`+pmhEnd, 1),
		},
		FieldPSH: {
			mustRule("psh", `(?is)(?:past surgical history|psh)\s*:?\s*(.{10,300}?)`+pshEnd, 1),
		},
		FieldAllergies: {
			mustRule("allergies", `(?i)allerg(?:y|ies)\s*:?\s*([^\n]+)`, 1),
		},
		FieldProcedure: {
			mustRule("procedure-block", `(?i)(?:post-?op(?:erative)?\s+)?(?:procedure|operation|surgery)\s*(?:\(s\))?\s*(?:\([A-Z]+\))?\s*:\s*\n([^\n]{15,})`, 1),
		},
		FieldProcedureInline: {
			mustRule("procedure-inline", `(?i)(?:procedure|operation|surgery)\s*:\s*([^\n]+)`, 1),
		},
		FieldHospitalCourse: {
			mustRule("hospital-course", `(?is)hospital course\s*:?\s*(.{30,1000}?)`+blockEnd, 1),
		},
		FieldPOD: {
			mustRule("pod", `(?i)(?:POD|post-?op(?:erative)?\s+day)\s*#?\s*(\d+)\s*:?\s*([^\n]+)`, 0),
		},
		FieldExam: {
			mustRule("exam", `(?is)(?:physical exam(?:ination)?|exam)\s*:?\s*(.{30,400}?)`+blockEnd, 1),
		},
		FieldVitals: {
			mustRule("vitals", `(?i)(?:vital signs|vitals|VS)\s*:?\s*([^\n]+)`, 1),
		},
		FieldMedications: {
			mustRule("discharge-meds", `(?is)(?:discharge medications?|medications? on discharge)\s*:?\s*(.{30,500}?)`+blockEnd, 1),
			mustRule("meds-generic", `(?is)medications?\s*:?\s*(.{30,500}?)`+blockEnd, 1),
		},
		FieldDisposition: {
			mustRule("disposition", `(?i)(?:disposition|discharged?\s+to)\s*:?\s*([^\n]+)`, 1),
		},
		FieldFollowUp: {
			mustRule("follow-up", `(?i)follow[\s-]?up\s*:?\s*([^\n]+)`, 1),
			mustRule("fu-short", `(?i)\bf/u\s*:?\s*([^\n]+)`, 1),
		},
		FieldDiet: {
			mustRule("diet", `(?i)\bdiet\s*:?\s*([^\n]+)`, 1),
		},
		FieldActivity: {
			mustRule("activity", `(?i)\bactivity\s*:?\s*([^\n]+)`, 1),
		},
		FieldImaging: {
			mustRule("imaging", `(?i)\b(?:CT|MRI|X-ray|imaging|radiology)\b\s*(?:scan|report|findings|shows?|demonstrates?|reveals?)[^\n]*`, 0),
		},
		FieldComplications: {
			mustRule("complications-block", `(?is)complications?\s*:\s*(.{3,500}?)`+blockEnd, 1),
		},
		FieldImplicitComp: {
			mustRule("implicit-complication", `(?i)(?:developed|experienced|had)\s+([\w\s]*?(?:hemorrhage|infection|leak|dehiscence|failure|arrest|sepsis|pneumonia|DVT|PE|MI|stroke))`, 1),
		},
		FieldRecommendations: {
			mustRule("recommendations", `(?is)(?:recommendations?|plan|suggest(?:ions)?|advise[sd]?)\s*:?\s*(.{10,500}?)`+blockEnd, 1),
		},
		FieldMajorEvents: {
			mustRule("major-events", `(?i)(code blue|rapid response|cardiac arrest|(?:re)?intubat(?:ed|ion)|transferred? to (?:the )?ICU|ICU transfer|return(?:ed)? to (?:the )?(?:OR|operating room)|emergen(?:cy|t) (?:surgery|procedure|craniotomy))`, 1),
		},
		FieldKPS: {
			mustRule("kps", `(?i)(?:KPS|Karnofsky(?:\s+performance\s+(?:status|scale))?)\s*:?\s*(\d{1,3})`, 1),
		},
		FieldDischargeExam: {
			mustRule("discharge-exam", `(?is)discharge (?:physical )?exam(?:ination)?\s*:?\s*(.{20,400}?)`+blockEnd, 1),
		},
		FieldNeuroExam: {
			mustRule("neuro-exam", `(?is)neuro(?:logic(?:al)?)?\s+exam(?:ination)?\s*:?\s*(.{10,400}?)`+blockEnd, 1),
		},
	}}
}

// Rules returns the rule set for a field, in priority order. The returned
// slice must not be mutated.
func (l *Library) Rules(field string) []Rule {
	return l.fields[field]
}

// First applies a field's rules in order and returns the first accepted
// match. Accept may be nil.
func (l *Library) First(field, text string, accept func(string) bool) (string, string) {
	for _, rule := range l.fields[field] {
		v := rule.Match(text)
		if v == "" {
			continue
		}
		if accept != nil && !accept(v) {
			continue
		}
		return v, rule.Name
	}
	return "", ""
}

// Override returns a copy of the library with the named field's rules
// replaced. The receiver is unchanged.
func (l *Library) Override(field string, rules []Rule) *Library {
	next := &Library{fields: make(map[string][]Rule, len(l.fields))}
	for k, v := range l.fields {
		next.fields[k] = v
	}
	next.fields[field] = rules
	return next
}

type yamlRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Group   int    `yaml:"group"`
}

type yamlLibrary struct {
	Fields map[string][]yamlRule `yaml:"fields"`
}

// LoadLibrary reads per-field rule overrides from a YAML file and applies
// them on top of the defaults. Fields absent from the file keep their
// built-in rules.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var raw yamlLibrary
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}

	lib := DefaultLibrary()
	for field, yrules := range raw.Fields {
		if _, ok := lib.fields[field]; !ok {
			return nil, fmt.Errorf("rule file %s: unknown field %q", path, field)
		}
		rules := make([]Rule, 0, len(yrules))
		for _, yr := range yrules {
			re, err := regexp.Compile(yr.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rule file %s: field %s rule %q: %w", path, field, yr.Name, err)
			}
			group := yr.Group
			if group == 0 && re.NumSubexp() > 0 {
				group = 1
			}
			rules = append(rules, Rule{Name: yr.Name, re: re, Group: group})
		}
		lib = lib.Override(field, rules)
	}
	return lib, nil
}

// Rejection policies. Header-anchored captures frequently grab garbage
// (section labels, narrative prose), so candidate values pass a validity
// gate before being accepted into the record.

var (
	procJunkRE = regexp.MustCompile(`(?i)^(progress|notes?|s|LRB|RRB|\(s\)|\([A-Z]+\)|assessment|plan|in bed|received|see below|as follows)$`)

	procTermRE = regexp.MustCompile(`(?i)\b(craniotomy|craniectomy|laminectomy|discectomy|fusion|biopsy|resection|excision|removal|drainage|evacuation|decompression|clipping|coiling|shunt|evd|minicraniotomy|duraplasty|embolization|angioplasty|ventriculostomy)\b`)

	narrativeRE = regexp.MustCompile(`(?i)\b(he|she|patient|denies|reports|states|presents with|led to|his|her)\b`)

	nonWordRE = regexp.MustCompile(`[^\w\s]`)
)

// ValidProcedure reports whether a candidate string plausibly names a real
// procedure rather than a stray header fragment.
func ValidProcedure(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 15 {
		return false
	}
	if procJunkRE.MatchString(s) {
		return false
	}
	words := strings.Fields(nonWordRE.ReplaceAllString(s, " "))
	substantial := 0
	for _, w := range words {
		if len(w) > 2 {
			substantial++
		}
	}
	if substantial < 2 {
		return false
	}
	return procTermRE.MatchString(s)
}

// ValidDiagnosis rejects narrative prose masquerading as a diagnosis value.
// A diagnosis is a short noun phrase; pronouns, hedging verbs, excessive
// length, or multiple sentences disqualify the candidate.
func ValidDiagnosis(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 100 {
		return false
	}
	if narrativeRE.MatchString(s) {
		return false
	}
	// More than one sentence terminator means prose, not a diagnosis.
	return len(sentenceRE.Split(s, -1)) <= 2
}

var sentenceRE = regexp.MustCompile(`[.!?]`)
