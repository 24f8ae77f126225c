package extract

import (
	"strings"
	"testing"
)

func TestAnalyzeSemanticsConditions(t *testing.T) {
	text := "Patient found to have a subdural hematoma with midline shift. " +
		"History of hypertension and seizures."
	sem := AnalyzeSemantics(text)

	if len(sem.Conditions) < 3 {
		t.Fatalf("Expected at least 3 conditions, got %d: %v", len(sem.Conditions), sem.Conditions)
	}
	first := sem.Conditions[0]
	if first.Family != "hemorrhage" {
		t.Errorf("Expected hemorrhage family first, got %q", first.Family)
	}
	if !strings.Contains(first.Context, "midline shift") {
		t.Errorf("Expected surrounding context, got %q", first.Context)
	}
}

func TestAnalyzeSemanticsDedup(t *testing.T) {
	text := "Seizure noted. Another SEIZURE overnight. seizure precautions in place."
	sem := AnalyzeSemantics(text)

	count := 0
	for _, c := range sem.Conditions {
		if strings.EqualFold(c.Term, "seizure") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected case-insensitive dedup to 1 seizure, got %d", count)
	}
}

func TestAnalyzeSemanticsProcedures(t *testing.T) {
	text := "He underwent craniotomy with evacuation of the hematoma, followed by EVD placement."
	sem := AnalyzeSemantics(text)

	joined := strings.ToLower(strings.Join(sem.Procedures, " "))
	for _, want := range []string{"craniotomy", "evacuation", "evd"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected %q among procedures %v", want, sem.Procedures)
		}
	}
}

func TestAnalyzeSemanticsMedications(t *testing.T) {
	text := "Started on Keppra 500 mg BID and nimodipine for vasospasm prophylaxis."
	sem := AnalyzeSemantics(text)

	joined := strings.ToLower(strings.Join(sem.Medications, " "))
	if !strings.Contains(joined, "keppra") {
		t.Errorf("Expected keppra among medications %v", sem.Medications)
	}
	if !strings.Contains(joined, "nimodipine") {
		t.Errorf("Expected nimodipine among medications %v", sem.Medications)
	}
}

func TestAnalyzeSemanticsCourseEvents(t *testing.T) {
	text := "The patient underwent surgery on hospital day 2. He improved steadily and was transferred to the floor."
	sem := AnalyzeSemantics(text)

	if len(sem.CourseEvents) == 0 {
		t.Fatal("Expected course events")
	}
	narrative := sem.CourseNarrative(10)
	if !strings.HasSuffix(narrative, ".") {
		t.Errorf("Expected sentence-form narrative, got %q", narrative)
	}
}

func TestAnalyzeSemanticsEmptyInput(t *testing.T) {
	sem := AnalyzeSemantics("   \n  ")
	if len(sem.Conditions)+len(sem.Procedures)+len(sem.Medications)+len(sem.CourseEvents) != 0 {
		t.Errorf("Expected empty findings for whitespace input, got %+v", sem)
	}
}

func TestTopConditions(t *testing.T) {
	text := "aneurysm with subarachnoid hemorrhage and hydrocephalus"
	sem := AnalyzeSemantics(text)
	top := sem.TopConditions(3)
	if top == "" || !strings.Contains(top, ",") {
		t.Errorf("Expected joined conditions, got %q", top)
	}
}
