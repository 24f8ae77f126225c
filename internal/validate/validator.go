// Package validate audits an assembled patient record against the raw note
// text it was extracted from. Validation never mutates the record; it
// reports errors (record unusable as-is), warnings (reviewer attention),
// per-category confidence, and a completeness score.
package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/openchart/scribe/internal/extract"
)

// Severity levels for issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one validation finding tied to a record field.
type Issue struct {
	Severity string `json:"severity"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// Confidence scores each record category 0.0-1.0 by presence of its fields.
type Confidence struct {
	Demographics float64 `json:"demographics"`
	Dates        float64 `json:"dates"`
	Clinical     float64 `json:"clinical"`
	Medications  float64 `json:"medications"`
	Overall      float64 `json:"overall"`
}

// Report is the validation output. IsValid is false exactly when at least
// one error-severity issue was raised.
type Report struct {
	IsValid      bool       `json:"isValid"`
	Errors       []Issue    `json:"errors,omitempty"`
	Warnings     []Issue    `json:"warnings,omitempty"`
	Confidence   Confidence `json:"confidence"`
	Completeness float64    `json:"completeness"`
}

func (r *Report) addError(field, msg string) {
	r.Errors = append(r.Errors, Issue{Severity: SeverityError, Field: field, Message: msg})
}

func (r *Report) addWarning(field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Severity: SeverityWarning, Field: field, Message: msg})
}

// Clinical terms that must never be silently dropped: if one appears in the
// source text but nowhere in the record, the record is flagged.
var criticalTerms = []string{
	"infection", "meningitis", "seizure", "deficit",
	"csf leak", "hemorrhage", "rebleed", "ventriculitis",
}

// Fields counted toward the completeness checklist.
var completenessFields = []string{
	"patientName", "age", "sex", "admittingDiagnosis",
	"hospitalCourse", "dischargeExam", "dischargeMedications", "followUp",
}

var rawAgeRE = regexp.MustCompile(`(?i)(\d{1,3})[\s-]*(?:years?|yo|y\.o\.|y/o)[\s-]*old`)
var rawSexRE = regexp.MustCompile(`(?i)\b(male|female|man|woman)\b`)

// Validate audits rec against the raw source text.
func Validate(rec *extract.Record, rawText string) *Report {
	rep := &Report{}

	checkRequired(rep, rec)
	checkDemographics(rep, rec, rawText)
	checkCriticalTerms(rep, rec, rawText)
	checkComplications(rep, rec)
	checkTemporal(rep, rec)
	checkMedications(rep, rec, rawText)

	rep.Confidence = scoreConfidence(rec)
	rep.Completeness = scoreCompleteness(rec)
	rep.IsValid = len(rep.Errors) == 0
	return rep
}

func checkRequired(rep *Report, rec *extract.Record) {
	if rec.PatientName == "" && rec.Age == "" && rec.Sex == "" {
		rep.addError("demographics", "no patient demographics could be extracted")
	}
	if rec.AdmittingDiagnosis == "" {
		rep.addError("admittingDiagnosis", "no admitting diagnosis could be extracted")
	}
	if rec.DischargeExam == "" {
		rep.addError("dischargeExam", "no discharge exam could be extracted")
	}
}

func checkDemographics(rep *Report, rec *extract.Record, rawText string) {
	if rec.Age != "" {
		if m := rawAgeRE.FindStringSubmatch(rawText); m != nil {
			extracted := atoi(rec.Age)
			source := atoi(m[1])
			if diff := extracted - source; diff > 1 || diff < -1 {
				rep.addWarning("age", fmt.Sprintf("extracted age %d differs from source age %d", extracted, source))
			}
		}
	}
	if rec.Sex != "" {
		if m := rawSexRE.FindStringSubmatch(rawText); m != nil {
			if !sexEquivalent(rec.Sex, m[1]) {
				rep.addWarning("sex", fmt.Sprintf("extracted sex %q does not match source %q", rec.Sex, m[1]))
			}
		}
	}
}

// sexEquivalent treats values as matching when one is a prefix-letter form
// of the other ("M" vs "Male", "woman" vs "Female" does not match but
// "female" vs "F" does).
func sexEquivalent(a, b string) bool {
	a, b = canonicalSex(a), canonicalSex(b)
	return a == b
}

func canonicalSex(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male", "man":
		return "m"
	case "f", "female", "woman":
		return "f"
	}
	return strings.ToLower(s)
}

func checkCriticalTerms(rep *Report, rec *extract.Record, rawText string) {
	lowerRaw := strings.ToLower(rawText)
	serialized, err := json.Marshal(rec)
	if err != nil {
		return
	}
	lowerRec := strings.ToLower(string(serialized))
	for _, term := range criticalTerms {
		if strings.Contains(lowerRaw, term) && !strings.Contains(lowerRec, term) {
			rep.addWarning("complications", fmt.Sprintf("source mentions %q but the record does not capture it", term))
		}
	}
}

func checkComplications(rep *Report, rec *extract.Record) {
	for i, c := range rec.Complications {
		if c.Type == "" && c.Specific == "" {
			rep.addWarning("complications", fmt.Sprintf("complication %d has neither type nor specific description", i))
		}
	}
}

func checkTemporal(rep *Report, rec *extract.Record) {
	admit, okA := extract.ParseDate(rec.AdmitDate)
	discharge, okD := extract.ParseDate(rec.DischargeDate)

	if okA && okD && admit.After(discharge) {
		rep.addError("dates", fmt.Sprintf("admit date %s is after discharge date %s", rec.AdmitDate, rec.DischargeDate))
	}

	for _, p := range rec.Procedures {
		pd, ok := extract.ParseDate(p.Date)
		if !ok {
			continue
		}
		if (okA && pd.Before(admit)) || (okD && pd.After(discharge)) {
			rep.addWarning("procedures", fmt.Sprintf("procedure date %s falls outside the admission window", p.Date))
		}
	}
}

// checkMedications compares drug names mentioned in the source against the
// record's discharge list. Comparison is by first token so dose or route
// differences do not trip it.
func checkMedications(rep *Report, rec *extract.Record, rawText string) {
	sourceMeds := extract.AnalyzeSemantics(rawText).Medications
	if len(sourceMeds) == 0 {
		return
	}
	recorded := make(map[string]bool, len(rec.DischargeMedications))
	for _, m := range rec.DischargeMedications {
		recorded[firstToken(m)] = true
	}
	for _, m := range sourceMeds {
		if tok := firstToken(m); tok != "" && !recorded[tok] {
			rep.addWarning("dischargeMedications", fmt.Sprintf("source mentions medication %q not in the discharge list", tok))
		}
	}
}

func firstToken(s string) string {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// Confidence weights per category.
const (
	weightDemographics = 0.3
	weightDates        = 0.2
	weightClinical     = 0.4
	weightMedications  = 0.1
)

func scoreConfidence(rec *extract.Record) Confidence {
	c := Confidence{
		Demographics: presentFraction(rec.PatientName, rec.Age, rec.Sex, rec.MRN),
		Dates:        presentFraction(rec.AdmitDate, rec.DischargeDate),
		Clinical:     presentFraction(rec.AdmittingDiagnosis, rec.HospitalCourse, rec.DischargeExam),
	}
	if len(rec.DischargeMedications) > 0 {
		c.Medications = 0.8
	} else {
		c.Medications = 0.3
	}
	c.Overall = weightDemographics*c.Demographics +
		weightDates*c.Dates +
		weightClinical*c.Clinical +
		weightMedications*c.Medications
	return c
}

func scoreCompleteness(rec *extract.Record) float64 {
	present := 0
	for _, f := range completenessFields {
		if fieldPresent(rec, f) {
			present++
		}
	}
	return float64(present) / float64(len(completenessFields))
}

func fieldPresent(rec *extract.Record, field string) bool {
	switch field {
	case "patientName":
		return rec.PatientName != ""
	case "age":
		return rec.Age != ""
	case "sex":
		return rec.Sex != ""
	case "admittingDiagnosis":
		return rec.AdmittingDiagnosis != ""
	case "hospitalCourse":
		return rec.HospitalCourse != ""
	case "dischargeExam":
		return rec.DischargeExam != ""
	case "dischargeMedications":
		return len(rec.DischargeMedications) > 0
	case "followUp":
		return len(rec.FollowUp) > 0
	}
	return false
}

func presentFraction(vals ...string) float64 {
	present := 0
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			present++
		}
	}
	return float64(present) / float64(len(vals))
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}
