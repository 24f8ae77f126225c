package extract

import (
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openchart/scribe/internal/notes"
)

func testExtractor() *Extractor {
	return NewExtractor(nil, zerolog.Nop())
}

func TestExtractAdmittingDiagnosisAndPMH(t *testing.T) {
	text := "Admitting Diagnosis: Brain tumor\n\nPMH:\nAtrial fibrillation\nHypertension"
	rec := testExtractor().Extract(notes.Detect(text))

	if rec.AdmittingDiagnosis != "Brain tumor" {
		t.Errorf("Expected admitting diagnosis %q, got %q", "Brain tumor", rec.AdmittingDiagnosis)
	}
	if len(rec.PastMedicalHistory) != 2 {
		t.Fatalf("Expected 2 PMH items, got %d: %v", len(rec.PastMedicalHistory), rec.PastMedicalHistory)
	}
	if rec.PastMedicalHistory[0] != "Atrial fibrillation" || rec.PastMedicalHistory[1] != "Hypertension" {
		t.Errorf("Unexpected PMH items: %v", rec.PastMedicalHistory)
	}
}

func TestExtractRejectsHeaderFragmentProcedure(t *testing.T) {
	rec := testExtractor().Extract(&notes.Bundle{Procedure: "Procedure: progress"})
	if len(rec.Procedures) != 0 {
		t.Errorf("Expected no procedures from header fragment, got %v", rec.Procedures)
	}
}

func TestExtractHeaderNewlineProcedure(t *testing.T) {
	text := "Post-Op Procedure(s) (LRB):\nLeft Minicraniotomy, Open Biopsy of Tumor, Duraplasty"
	rec := testExtractor().Extract(&notes.Bundle{Procedure: text})

	if len(rec.Procedures) != 1 {
		t.Fatalf("Expected 1 procedure, got %d: %v", len(rec.Procedures), rec.Procedures)
	}
	desc := rec.Procedures[0].Description
	if !strings.Contains(desc, "Minicraniotomy") || !strings.Contains(desc, "Biopsy") {
		t.Errorf("Expected full procedure line, got %q", desc)
	}
	if rec.Procedures[0].Type != ProcCranial {
		t.Errorf("Expected cranial type, got %q", rec.Procedures[0].Type)
	}
}

func TestExtractDemographics(t *testing.T) {
	text := "John Smith is a 67 year old male admitted with headache. MRN: 483920.\n" +
		"He was admitted on 12/5/24 for evaluation of a large right frontal mass seen on CT scan."
	rec := testExtractor().Extract(notes.Detect(text))

	if rec.PatientName != "John Smith" {
		t.Errorf("Expected patient name John Smith, got %q", rec.PatientName)
	}
	if rec.Age != "67" {
		t.Errorf("Expected age 67, got %q", rec.Age)
	}
	if rec.Sex != "Male" {
		t.Errorf("Expected sex Male, got %q", rec.Sex)
	}
	if rec.MRN != "483920" {
		t.Errorf("Expected MRN 483920, got %q", rec.MRN)
	}
	if rec.AdmitDate != "12/05/2024" {
		t.Errorf("Expected normalized admit date 12/05/2024, got %q", rec.AdmitDate)
	}
}

func TestExtractDiagnosisRejectsNarrative(t *testing.T) {
	text := "Admitting Diagnosis: He presents with worsening headaches and she denies trauma\n\n" +
		"Patient has a brain tumor found on imaging."
	rec := testExtractor().Extract(&notes.Bundle{Admission: text})

	// Narrative prose fails the diagnosis gate; the semantic tier supplies
	// the condition instead.
	if strings.Contains(rec.AdmittingDiagnosis, "denies") {
		t.Errorf("Narrative accepted as diagnosis: %q", rec.AdmittingDiagnosis)
	}
	if !strings.Contains(strings.ToLower(rec.AdmittingDiagnosis), "tumor") {
		t.Errorf("Expected semantic tumor fallback, got %q", rec.AdmittingDiagnosis)
	}
}

func TestExtractPODCourse(t *testing.T) {
	progress := "POD 1: extubated, following commands\nPOD 2: ambulating with PT, tolerating diet"
	rec := testExtractor().Extract(&notes.Bundle{Progress: progress})

	if len(rec.PODProgress) != 2 {
		t.Fatalf("Expected 2 POD entries, got %d", len(rec.PODProgress))
	}
	if !strings.Contains(rec.HospitalCourse, "POD 1") || !strings.Contains(rec.HospitalCourse, "POD 2") {
		t.Errorf("Expected POD-built hospital course, got %q", rec.HospitalCourse)
	}
}

func TestExtractMedicationsOnlyDosedLines(t *testing.T) {
	final := "Discharge Medications:\nKeppra 500 mg BID\ncontinue home medications\nDexamethasone 4 mg daily taper\n\nDisposition: Home"
	rec := testExtractor().Extract(&notes.Bundle{Final: final})

	if len(rec.DischargeMedications) != 2 {
		t.Fatalf("Expected 2 medications, got %d: %v", len(rec.DischargeMedications), rec.DischargeMedications)
	}
	if rec.DischargeMedications[0] != "Keppra 500mg bid" {
		t.Errorf("Unexpected formatting: %q", rec.DischargeMedications[0])
	}
}

func TestExtractDefaults(t *testing.T) {
	rec := testExtractor().Extract(&notes.Bundle{Admission: "brief note"})
	if rec.Disposition != "Home" {
		t.Errorf("Expected default disposition Home, got %q", rec.Disposition)
	}
	if rec.Diet != "Regular" {
		t.Errorf("Expected default diet Regular, got %q", rec.Diet)
	}
	if rec.Activity != "As tolerated" {
		t.Errorf("Expected default activity, got %q", rec.Activity)
	}
}

func TestExtractIdempotent(t *testing.T) {
	text := "Jane Doe is a 54 year old female admitted 3/2/2024 with subarachnoid hemorrhage.\n" +
		"She underwent coiling of a ruptured aneurysm. POD 1: stable in ICU.\n" +
		"Discharge Medications:\nNimodipine 60 mg q4h\nDisposition: Rehab"
	bundle := notes.Detect(text)
	e := testExtractor()

	first := e.Extract(bundle)
	second := e.Extract(bundle)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Extraction not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestExtractMajorEvents(t *testing.T) {
	text := "Overnight the patient had a seizure and was transferred to ICU for monitoring. " +
		"He later required return to the OR for hematoma evacuation."
	rec := testExtractor().Extract(&notes.Bundle{Progress: text})

	if len(rec.MajorEvents) < 2 {
		t.Fatalf("Expected at least 2 major events, got %d: %v", len(rec.MajorEvents), rec.MajorEvents)
	}
	for _, ev := range rec.MajorEvents {
		if ev.Context == "" {
			t.Errorf("Expected context for event %q", ev.Event)
		}
	}
}

func TestExtractExplicitKPSWins(t *testing.T) {
	text := "Discharge Exam: bedridden, total care required. KPS: 90"
	rec := testExtractor().Extract(&notes.Bundle{Final: text})
	if rec.KPS != "90" {
		t.Errorf("Expected explicit KPS 90, got %q", rec.KPS)
	}
	if rec.DischargeCondition != "5 - Excellent" {
		t.Errorf("Expected tier 5 - Excellent, got %q", rec.DischargeCondition)
	}
}

func TestExtractFieldSources(t *testing.T) {
	text := "Admitting Diagnosis: Brain tumor\n\nPMH:\nAtrial fibrillation\nHypertension"
	rec := testExtractor().Extract(notes.Detect(text))
	if src := rec.FieldSources["admittingDiagnosis"]; !strings.HasPrefix(src, "pattern:") {
		t.Errorf("Expected pattern source for admittingDiagnosis, got %q", src)
	}
	if src := rec.FieldSources["disposition"]; src != "default" {
		t.Errorf("Expected default source for disposition, got %q", src)
	}
}

func TestExtractCategoryConfidence(t *testing.T) {
	text := "Patient: John Smith\nAge: 58 years old\nSex: Male\n" +
		"Date of Admission: 01/10/2024\n" +
		"Admitting Diagnosis: Subdural hematoma"
	rec := testExtractor().Extract(notes.Detect(text))

	if got := rec.ExtractionConfidence["demographics"]; got != 1.0 {
		t.Errorf("Expected demographics confidence 1.0, got %v", got)
	}
	if got := rec.ExtractionConfidence["dates"]; got != 0.5 {
		t.Errorf("Expected dates confidence 0.5, got %v", got)
	}
	if got := rec.ExtractionConfidence["medications"]; got != 0.0 {
		t.Errorf("Expected medications confidence 0.0, got %v", got)
	}
}

func TestExtractPastSurgicalHistory(t *testing.T) {
	text := "PMH:\nAtrial fibrillation\nHypertension\nPSH:\nCraniotomy 2019\nAppendectomy"
	rec := testExtractor().Extract(notes.Detect(text))

	if len(rec.PastMedicalHistory) != 2 {
		t.Fatalf("Expected 2 PMH items, got %d: %v", len(rec.PastMedicalHistory), rec.PastMedicalHistory)
	}
	if len(rec.PastSurgicalHistory) != 2 {
		t.Fatalf("Expected 2 PSH items, got %d: %v", len(rec.PastSurgicalHistory), rec.PastSurgicalHistory)
	}
	if rec.PastSurgicalHistory[0] != "Craniotomy 2019" || rec.PastSurgicalHistory[1] != "Appendectomy" {
		t.Errorf("Unexpected PSH items: %v", rec.PastSurgicalHistory)
	}
	if src := rec.FieldSources["pastSurgicalHistory"]; !strings.HasPrefix(src, "pattern:") {
		t.Errorf("Expected pattern source for pastSurgicalHistory, got %q", src)
	}
}

func TestExtractFollowUpSplitsList(t *testing.T) {
	text := "Discharge Note\nFollow-up: Neurosurgery clinic in 2 weeks, suture removal in 10 days"
	rec := testExtractor().Extract(notes.Detect(text))

	if len(rec.FollowUp) != 2 {
		t.Fatalf("Expected 2 follow-up items, got %d: %v", len(rec.FollowUp), rec.FollowUp)
	}
	if rec.FollowUp[0] != "Neurosurgery clinic in 2 weeks" {
		t.Errorf("Unexpected first follow-up item: %q", rec.FollowUp[0])
	}
	if rec.FollowUp[1] != "suture removal in 10 days" {
		t.Errorf("Unexpected second follow-up item: %q", rec.FollowUp[1])
	}
}

func TestExtractFunctionalStatusDescription(t *testing.T) {
	text := "Discharge Exam: Ambulating with minimal assistance."
	rec := testExtractor().Extract(&notes.Bundle{Final: text})

	if rec.KPS != "70" {
		t.Fatalf("Expected estimated KPS 70, got %q", rec.KPS)
	}
	if rec.FunctionalStatus != "Requires minimal assistance" {
		t.Errorf("Expected functional description, got %q", rec.FunctionalStatus)
	}
	if rec.DischargeCondition != "4 - Good" {
		t.Errorf("Expected 4 - Good, got %q", rec.DischargeCondition)
	}
	if src := rec.FieldSources["functionalStatus"]; src != "estimator" {
		t.Errorf("Expected estimator source for functionalStatus, got %q", src)
	}
}
