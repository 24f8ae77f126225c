package extract

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/openchart/scribe/internal/notes"
)

// Defaults applied when no rule and no fallback produced a value. These are
// the safe discharge assumptions; the validator surfaces everything else as
// missing.
const (
	DefaultDisposition = "Home"
	DefaultDiet        = "Regular"
	DefaultActivity    = "As tolerated"
)

// Extractor runs the deterministic rule cascade over a note bundle,
// falling back to the semantic vocabulary tier and finally to defaults.
type Extractor struct {
	lib *Library
	log zerolog.Logger
}

// NewExtractor builds an Extractor. lib may be nil, in which case the
// built-in library is used.
func NewExtractor(lib *Library, log zerolog.Logger) *Extractor {
	if lib == nil {
		lib = DefaultLibrary()
	}
	return &Extractor{lib: lib, log: log}
}

// Library returns the extractor's active rule library.
func (e *Extractor) Library() *Library { return e.lib }

// Extract produces a structured record from segmented notes. Extraction is
// pure and deterministic: the same bundle always yields the same record.
func (e *Extractor) Extract(bundle *notes.Bundle) *Record {
	rec := &Record{}
	all := bundle.Unique()
	sem := AnalyzeSemantics(all)

	e.extractDemographics(rec, all)
	e.extractDates(rec, bundle)
	e.extractDiagnoses(rec, bundle, all, sem)
	e.extractHistory(rec, bundle, all)
	e.extractProcedures(rec, bundle, sem)
	e.extractCourse(rec, bundle, all, sem)
	e.extractDischargeState(rec, bundle, all, sem)
	e.extractEvents(rec, bundle, all)
	e.extractFunctionalStatus(rec, all)
	rec.ExtractionConfidence = categoryConfidence(rec)
	e.applyDefaults(rec)

	e.log.Debug().
		Int("conditions", len(sem.Conditions)).
		Int("procedures", len(rec.Procedures)).
		Int("medications", len(rec.DischargeMedications)).
		Msg("deterministic extraction complete")

	return rec
}

func (e *Extractor) extractDemographics(rec *Record, all string) {
	if v, rule := e.lib.First(FieldPatientName, all, nil); v != "" {
		rec.PatientName = v
		rec.SetSource("patientName", "pattern:"+rule)
	}
	if v, rule := e.lib.First(FieldAge, all, nil); v != "" {
		rec.Age = v
		rec.SetSource("age", "pattern:"+rule)
	}
	if v, rule := e.lib.First(FieldSex, all, nil); v != "" {
		rec.Sex = normalizeSex(v)
		rec.SetSource("sex", "pattern:"+rule)
	}
	if v, rule := e.lib.First(FieldMRN, all, nil); v != "" {
		rec.MRN = v
		rec.SetSource("mrn", "pattern:"+rule)
	}
}

func (e *Extractor) extractDates(rec *Record, bundle *notes.Bundle) {
	// Dates are category-scoped: the admit date comes from the admission
	// note, the discharge date from the final note. A labeled date wins
	// over the first bare date in the section.
	if v, rule := e.lib.First(FieldAdmitDate, bundle.Admission, nil); v != "" {
		rec.AdmitDate = NormalizeDate(v)
		rec.SetSource("admitDate", "pattern:"+rule)
	} else if v, _ := e.lib.First(FieldDate, bundle.Admission, nil); v != "" {
		rec.AdmitDate = NormalizeDate(v)
		rec.SetSource("admitDate", "pattern:any-date")
	}
	if v, rule := e.lib.First(FieldDischargeDate, bundle.Final, nil); v != "" {
		rec.DischargeDate = NormalizeDate(v)
		rec.SetSource("dischargeDate", "pattern:"+rule)
	}
}

func (e *Extractor) extractDiagnoses(rec *Record, bundle *notes.Bundle, all string, sem *Semantics) {
	if v, rule := e.lib.First(FieldAdmittingDiagnosis, bundle.Admission, ValidDiagnosis); v != "" {
		rec.AdmittingDiagnosis = v
		rec.SetSource("admittingDiagnosis", "pattern:"+rule)
	} else if c := sem.FirstCondition(); c != "" {
		rec.AdmittingDiagnosis = c
		rec.SetSource("admittingDiagnosis", "semantic")
	}

	if v, rule := e.lib.First(FieldDischargeDiagnosis, bundle.Final, ValidDiagnosis); v != "" {
		rec.DischargeDiagnosis = v
		rec.SetSource("dischargeDiagnosis", "pattern:"+rule)
	} else if v, rule := e.lib.First(FieldDischargeDiagnosis, all, ValidDiagnosis); v != "" {
		rec.DischargeDiagnosis = v
		rec.SetSource("dischargeDiagnosis", "pattern:"+rule)
	} else if c := sem.TopConditions(3); c != "" {
		rec.DischargeDiagnosis = c
		rec.SetSource("dischargeDiagnosis", "semantic")
	}
}

func (e *Extractor) extractHistory(rec *Record, bundle *notes.Bundle, all string) {
	if v, rule := e.lib.First(FieldHPI, bundle.Admission, nil); v != "" {
		rec.HistoryPresenting = v
		rec.SetSource("historyPresenting", "pattern:"+rule)
	}

	if block, rule := e.lib.First(FieldPMH, bundle.Admission, nil); block != "" {
		rec.PastMedicalHistory = splitList(block)
		if len(rec.PastMedicalHistory) > 0 {
			rec.SetSource("pastMedicalHistory", "pattern:"+rule)
		}
	}

	if block, rule := e.lib.First(FieldPSH, bundle.Admission, nil); block != "" {
		rec.PastSurgicalHistory = splitList(block)
		if len(rec.PastSurgicalHistory) > 0 {
			rec.SetSource("pastSurgicalHistory", "pattern:"+rule)
		}
	}

	src := bundle.Admission
	if src == "" {
		src = all
	}
	if v, rule := e.lib.First(FieldAllergies, src, nil); v != "" {
		rec.Allergies = v
		rec.SetSource("allergies", "pattern:"+rule)
	}
}

func (e *Extractor) extractProcedures(rec *Record, bundle *notes.Bundle, sem *Semantics) {
	src := bundle.Procedure
	if src == "" {
		src = bundle.Progress
	}

	var descs []string
	if v, _ := e.lib.First(FieldProcedure, src, ValidProcedure); v != "" {
		descs = append(descs, v)
	} else if v, _ := e.lib.First(FieldProcedureInline, src, ValidProcedure); v != "" {
		descs = append(descs, v)
	} else {
		descs = sem.Procedures
	}

	var date string
	if bundle.Procedure != "" {
		if v, _ := e.lib.First(FieldDate, bundle.Procedure, nil); v != "" {
			date = NormalizeDate(v)
		}
	}

	seen := make(map[string]bool)
	for _, d := range descs {
		key := strings.ToLower(d)
		if seen[key] {
			continue
		}
		seen[key] = true
		rec.Procedures = append(rec.Procedures, Procedure{
			Description: d,
			Date:        date,
			Type:        ClassifyProcedure(d),
		})
	}
	if len(rec.Procedures) > 0 {
		rec.SetSource("procedures", "pattern:procedure")
	}
}

func (e *Extractor) extractCourse(rec *Record, bundle *notes.Bundle, all string, sem *Semantics) {
	var pods []string
	if rules := e.lib.Rules(FieldPOD); len(rules) > 0 {
		pods = rules[0].MatchAll(bundle.Progress)
	}
	rec.PODProgress = pods

	switch {
	case len(pods) > 0:
		rec.HospitalCourse = strings.Join(pods, "\n")
		rec.SetSource("hospitalCourse", "pattern:pod")
	default:
		if v, rule := e.lib.First(FieldHospitalCourse, all, nil); v != "" {
			rec.HospitalCourse = v
			rec.SetSource("hospitalCourse", "pattern:"+rule)
		} else if c := sem.CourseNarrative(10); c != "" {
			rec.HospitalCourse = c
			rec.SetSource("hospitalCourse", "semantic")
		}
	}
}

func (e *Extractor) extractDischargeState(rec *Record, bundle *notes.Bundle, all string, sem *Semantics) {
	examSrc := bundle.Final
	if examSrc == "" {
		examSrc = all
	}
	if v, rule := e.lib.First(FieldExam, examSrc, nil); v != "" {
		rec.CurrentExam = v
		rec.SetSource("currentExam", "pattern:"+rule)
	}
	if v, rule := e.lib.First(FieldVitals, examSrc, nil); v != "" {
		rec.Vitals = v
		rec.SetSource("vitals", "pattern:"+rule)
	}

	if block, rule := e.lib.First(FieldMedications, examSrc, nil); block != "" {
		rec.DischargeMedications = ParseMedicationBlock(block)
		if len(rec.DischargeMedications) > 0 {
			rec.SetSource("dischargeMedications", "pattern:"+rule)
		}
	}
	if len(rec.DischargeMedications) == 0 && len(sem.Medications) > 0 {
		for _, m := range sem.Medications {
			rec.DischargeMedications = append(rec.DischargeMedications, FormatMedication(m))
		}
		rec.SetSource("dischargeMedications", "semantic")
	}

	if v, rule := e.lib.First(FieldDisposition, bundle.Final, nil); v != "" {
		rec.Disposition = v
		rec.SetSource("disposition", "pattern:"+rule)
	}
	if v, rule := e.lib.First(FieldFollowUp, bundle.Final, nil); v != "" {
		rec.FollowUp = splitList(v)
		rec.SetSource("followUp", "pattern:"+rule)
	}
	if v, rule := e.lib.First(FieldDiet, bundle.Final, nil); v != "" {
		rec.Diet = v
		rec.SetSource("diet", "pattern:"+rule)
	}
	if v, rule := e.lib.First(FieldActivity, bundle.Final, nil); v != "" {
		rec.Activity = v
		rec.SetSource("activity", "pattern:"+rule)
	}

	if v, rule := e.lib.First(FieldDischargeExam, bundle.Final, nil); v != "" {
		rec.DischargeExam = v
		rec.SetSource("dischargeExam", "pattern:"+rule)
	} else if rec.CurrentExam != "" {
		rec.DischargeExam = rec.CurrentExam
		rec.SetSource("dischargeExam", "pattern:exam")
	}
	if v, rule := e.lib.First(FieldNeuroExam, all, nil); v != "" {
		rec.NeuroExam = v
		rec.SetSource("neuroExam", "pattern:"+rule)
	}
}

func (e *Extractor) extractEvents(rec *Record, bundle *notes.Bundle, all string) {
	if rules := e.lib.Rules(FieldImaging); len(rules) > 0 {
		rec.ImagingFindings = dedupeStrings(rules[0].MatchAll(all))
		if len(rec.ImagingFindings) > 0 {
			rec.SetSource("imagingFindings", "pattern:imaging")
		}
	}

	if block, _ := e.lib.First(FieldComplications, all, nil); block != "" {
		for _, item := range strings.FieldsFunc(block, func(r rune) bool {
			return r == ',' || r == ';' || r == '\n'
		}) {
			if item = strings.TrimSpace(item); len(item) > 3 {
				rec.Complications = append(rec.Complications, Complication{Specific: item, Status: "documented"})
			}
		}
	}
	if len(rec.Complications) == 0 {
		if rules := e.lib.Rules(FieldImplicitComp); len(rules) > 0 {
			for _, m := range dedupeStrings(rules[0].MatchAll(all)) {
				rec.Complications = append(rec.Complications, Complication{Specific: m, Status: "documented"})
			}
		}
	}
	if len(rec.Complications) > 0 {
		rec.SetSource("complications", "pattern:complications")
	}

	if bundle.Consultant != "" {
		if block, _ := e.lib.First(FieldRecommendations, bundle.Consultant, nil); block != "" {
			for _, line := range strings.Split(block, "\n") {
				line = strings.TrimSpace(stripListMarker(line))
				if len(line) > 3 {
					rec.ConsultantRecommendations = append(rec.ConsultantRecommendations, Recommendation{
						Service:        "Consultant",
						Recommendation: line,
					})
				}
			}
		}
		if len(rec.ConsultantRecommendations) > 0 {
			rec.SetSource("consultantRecommendations", "pattern:recommendations")
		}
	}

	if rules := e.lib.Rules(FieldMajorEvents); len(rules) > 0 {
		re := rules[0].Regexp()
		seen := make(map[string]bool)
		for _, loc := range re.FindAllStringIndex(all, -1) {
			ev := all[loc[0]:loc[1]]
			key := strings.ToLower(ev)
			if seen[key] {
				continue
			}
			seen[key] = true
			rec.MajorEvents = append(rec.MajorEvents, MajorEvent{
				Event:   ev,
				Context: eventContext(all, loc[0], loc[1]),
			})
		}
		if len(rec.MajorEvents) > 0 {
			rec.SetSource("majorEvents", "pattern:major-events")
		}
	}
}

func (e *Extractor) extractFunctionalStatus(rec *Record, all string) {
	if v, rule := e.lib.First(FieldKPS, all, nil); v != "" {
		rec.KPS = v
		rec.DischargeCondition = ConditionTier(atoiSafe(v))
		rec.SetSource("kps", "pattern:"+rule)
		return
	}

	examText := strings.TrimSpace(rec.DischargeExam + " " + rec.NeuroExam + " " + rec.CurrentExam)
	if examText == "" {
		return
	}
	if kps, desc := EstimateKPS(examText); kps > 0 {
		rec.KPS = itoa(kps)
		rec.FunctionalStatus = desc
		rec.DischargeCondition = ConditionTier(kps)
		rec.SetSource("kps", "estimator")
		if desc != "" {
			rec.SetSource("functionalStatus", "estimator")
		}
	}
}

func (e *Extractor) applyDefaults(rec *Record) {
	if rec.Disposition == "" {
		rec.Disposition = DefaultDisposition
		rec.SetSource("disposition", "default")
	}
	if rec.Diet == "" {
		rec.Diet = DefaultDiet
		rec.SetSource("diet", "default")
	}
	if rec.Activity == "" {
		rec.Activity = DefaultActivity
		rec.SetSource("activity", "default")
	}
}

// categoryConfidence scores each extraction category as the fraction of its
// fields that were populated.
func categoryConfidence(rec *Record) map[string]float64 {
	fraction := func(populated ...bool) float64 {
		n := 0
		for _, p := range populated {
			if p {
				n++
			}
		}
		return float64(n) / float64(len(populated))
	}
	return map[string]float64{
		"demographics": fraction(rec.PatientName != "", rec.Age != "", rec.Sex != ""),
		"dates":        fraction(rec.AdmitDate != "", rec.DischargeDate != ""),
		"clinical": fraction(rec.AdmittingDiagnosis != "", len(rec.Procedures) > 0,
			rec.HospitalCourse != "", rec.DischargeExam != ""),
		"medications": fraction(len(rec.DischargeMedications) > 0),
	}
}

func normalizeSex(v string) string {
	switch strings.ToLower(v) {
	case "male", "man", "m":
		return "Male"
	case "female", "woman", "f":
		return "Female"
	}
	return v
}

const (
	eventContextBefore = 50
	eventContextAfter  = 100
)

func eventContext(text string, start, end int) string {
	lo := start - eventContextBefore
	if lo < 0 {
		lo = 0
	}
	hi := end + eventContextAfter
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}

// splitList turns a captured block into an ordered list: split on commas
// and newlines, trim, and drop case-insensitive duplicates.
func splitList(block string) []string {
	items := strings.FieldsFunc(block, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	return dedupeStrings(items)
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
