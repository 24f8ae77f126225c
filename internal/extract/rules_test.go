package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidProcedure(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"progress", false},
		{"(s)", false},
		{"Left Minicraniotomy, Open Biopsy of Tumor, Duraplasty", true},
		{"craniotomy", false},
		{"see below", false},
		{"Right frontal craniotomy for tumor resection", true},
		{"L4-L5 laminectomy and discectomy", true},
		{"assessment", false},
	}
	for _, tt := range tests {
		if got := ValidProcedure(tt.in); got != tt.want {
			t.Errorf("ValidProcedure(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidDiagnosis(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Brain tumor", true},
		{"Subarachnoid hemorrhage", true},
		{"He presents with worsening headaches", false},
		{"Patient denies any trauma", false},
		{"Headache. Nausea. Vomiting.", false},
		{strings.Repeat("long diagnosis ", 10), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidDiagnosis(tt.in); got != tt.want {
			t.Errorf("ValidDiagnosis(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLibraryFirstPriorityOrder(t *testing.T) {
	lib := DefaultLibrary()
	text := "Patient: John Smith\nMary Jones is a 44 year old"
	v, rule := lib.First(FieldPatientName, text, nil)
	if v != "John Smith" {
		t.Errorf("Expected higher-priority labeled rule to win, got %q from %q", v, rule)
	}
}

func TestLibraryOverrideImmutable(t *testing.T) {
	base := DefaultLibrary()
	next := base.Override(FieldAllergies, []Rule{mustRule("custom", `(?i)NKDA`, 0)})

	if v, _ := base.First(FieldAllergies, "Allergies: penicillin", nil); v != "penicillin" {
		t.Errorf("Base library changed by Override, got %q", v)
	}
	if v, _ := next.First(FieldAllergies, "NKDA", nil); v != "NKDA" {
		t.Errorf("Override rules not applied, got %q", v)
	}
}

func TestLoadLibraryOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `fields:
  allergies:
    - name: nkda
      pattern: '(?i)\b(NKDA)\b'
      group: 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := LoadLibrary(path)
	if err != nil {
		t.Fatalf("LoadLibrary: %v", err)
	}
	if v, _ := lib.First(FieldAllergies, "NKDA", nil); v != "NKDA" {
		t.Errorf("Expected override rule to match, got %q", v)
	}
	// Untouched fields keep their defaults.
	if v, _ := lib.First(FieldAge, "age: 70", nil); v != "70" {
		t.Errorf("Expected default age rule intact, got %q", v)
	}
}

func TestLoadLibraryRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("fields:\n  nosuchfield:\n    - name: x\n      pattern: 'y'\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLibrary(path); err == nil {
		t.Fatal("Expected error for unknown field")
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"12/5/24", "12/05/2024"},
		{"1-2-2023", "01/02/2023"},
		{"12/15/2024", "12/15/2024"},
		{"not a date", "not a date"},
	}
	for _, tt := range tests {
		if got := NormalizeDate(tt.in); got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, ok := ParseDate("12/15/2024")
	if !ok || d.Month() != 12 || d.Day() != 15 || d.Year() != 2024 {
		t.Errorf("ParseDate(12/15/2024) = %v, %v", d, ok)
	}
	if _, ok := ParseDate("13/40/2024"); ok {
		t.Error("Expected invalid month/day to fail")
	}
}

func TestFormatMedication(t *testing.T) {
	tests := []struct{ in, want string }{
		{"keppra 500 mg BID", "Keppra 500mg bid"},
		{"1. Dexamethasone 4 mg PO daily", "Dexamethasone 4mg PO daily"},
		{"- aspirin 81 mg daily", "Aspirin 81mg daily"},
		{"continue home meds", "continue home meds"},
	}
	for _, tt := range tests {
		if got := FormatMedication(tt.in); got != tt.want {
			t.Errorf("FormatMedication(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
