// Package extract turns segmented clinical notes into a structured patient
// record. It layers three tiers: a deterministic rule cascade, a semantic
// vocabulary fallback, and a functional status estimator, each filling only
// the fields the previous tier left empty.
package extract

import "strings"

// ProcedureType tags a procedure description with a coarse category used for
// summary grouping.
type ProcedureType string

const (
	ProcCranial  ProcedureType = "cranial"
	ProcSpinal   ProcedureType = "spinal"
	ProcVascular ProcedureType = "vascular"
	ProcCSF      ProcedureType = "csf"
	ProcOther    ProcedureType = "other"
)

// Procedure is one surgical or interventional procedure with optional date.
type Procedure struct {
	Description string        `json:"description"`
	Date        string        `json:"date,omitempty"`
	Type        ProcedureType `json:"type,omitempty"`
}

// Complication is a clinical complication, either extracted deterministically
// or produced by the complication adapter.
type Complication struct {
	Type      string `json:"type,omitempty"`
	Specific  string `json:"specific,omitempty"`
	Onset     string `json:"onset,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Treatment string `json:"treatment,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Label returns the best human-readable identity for the complication.
func (c Complication) Label() string {
	if c.Specific != "" {
		return c.Specific
	}
	return c.Type
}

// Recommendation is a single consultant recommendation attributed to a
// service.
type Recommendation struct {
	Service        string `json:"service"`
	Recommendation string `json:"recommendation"`
	Date           string `json:"date,omitempty"`
}

// Consultant is one consulting service's parsed input.
type Consultant struct {
	Service         string   `json:"service"`
	Date            string   `json:"date,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Medications     []string `json:"medications,omitempty"`
	FollowUp        string   `json:"followUp,omitempty"`
	Duration        string   `json:"duration,omitempty"`
}

// MajorEvent is a significant inpatient event (code, ICU transfer, return to
// OR) captured with surrounding context.
type MajorEvent struct {
	Event   string `json:"event"`
	Context string `json:"context,omitempty"`
}

// Record is the structured patient record assembled by the extraction
// tiers and augmentation adapters. Scalar fields hold "" when absent; slice
// fields hold nil.
type Record struct {
	PatientName string `json:"patientName,omitempty"`
	Age         string `json:"age,omitempty"`
	Sex         string `json:"sex,omitempty"`
	MRN         string `json:"mrn,omitempty"`

	AdmitDate     string `json:"admitDate,omitempty"`
	DischargeDate string `json:"dischargeDate,omitempty"`

	AdmittingDiagnosis string `json:"admittingDiagnosis,omitempty"`
	DischargeDiagnosis string `json:"dischargeDiagnosis,omitempty"`

	HistoryPresenting   string   `json:"historyPresenting,omitempty"`
	PastMedicalHistory  []string `json:"pastMedicalHistory,omitempty"`
	PastSurgicalHistory []string `json:"pastSurgicalHistory,omitempty"`
	Allergies           string   `json:"allergies,omitempty"`

	Procedures []Procedure `json:"procedures,omitempty"`

	HospitalCourse string `json:"hospitalCourse,omitempty"`
	PostOpProgress string `json:"postOpProgress,omitempty"`

	CurrentExam string `json:"currentExam,omitempty"`
	Vitals      string `json:"vitals,omitempty"`

	DischargeMedications []string `json:"dischargeMedications,omitempty"`

	Disposition string   `json:"disposition,omitempty"`
	FollowUp    []string `json:"followUp,omitempty"`
	Diet        string   `json:"diet,omitempty"`
	Activity    string   `json:"activity,omitempty"`

	ImagingFindings []string `json:"imagingFindings,omitempty"`

	Complications             []Complication   `json:"complications,omitempty"`
	ConsultantRecommendations []Recommendation `json:"consultantRecommendations,omitempty"`
	Consultants               []Consultant     `json:"consultants,omitempty"`

	PODProgress []string     `json:"podProgress,omitempty"`
	MajorEvents []MajorEvent `json:"majorEvents,omitempty"`

	DischargeExam string `json:"dischargeExam,omitempty"`
	NeuroExam     string `json:"neuroExam,omitempty"`

	KPS                string `json:"kps,omitempty"`
	FunctionalStatus   string `json:"functionalStatus,omitempty"`
	DischargeCondition string `json:"dischargeCondition,omitempty"`

	// FieldSources records which tier produced each populated field:
	// "pattern", "semantic", "estimator", "default", or "adapter:<name>".
	FieldSources map[string]string `json:"fieldSources,omitempty"`

	// ExtractionConfidence is the fraction of populated fields per
	// category, computed before defaults are applied.
	ExtractionConfidence map[string]float64 `json:"extractionConfidence,omitempty"`
}

// SetSource records the producing tier for a field, keeping the first writer.
func (r *Record) SetSource(field, source string) {
	if r.FieldSources == nil {
		r.FieldSources = make(map[string]string)
	}
	if _, ok := r.FieldSources[field]; !ok {
		r.FieldSources[field] = source
	}
}

// ClassifyProcedure tags a procedure description by keyword.
func ClassifyProcedure(desc string) ProcedureType {
	lower := strings.ToLower(desc)
	switch {
	case containsAny(lower, "craniotomy", "craniectomy", "cranioplasty", "minicraniotomy", "burr hole", "duraplasty"):
		return ProcCranial
	case containsAny(lower, "laminectomy", "discectomy", "fusion", "corpectomy", "foraminotomy", "kyphoplasty", "vertebroplasty"):
		return ProcSpinal
	case containsAny(lower, "clipping", "coiling", "embolization", "angioplasty", "thrombectomy", "stent"):
		return ProcVascular
	case containsAny(lower, "shunt", "evd", "ventriculostomy", "ventriculoperitoneal", "lumbar drain"):
		return ProcCSF
	}
	return ProcOther
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
