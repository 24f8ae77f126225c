package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFlagsValues(t *testing.T) {
	f, err := parseFlags([]string{
		"notes.txt",
		"--llm", "google/gemini-2.5-flash",
		"--rules", "rules.yaml",
		"--db", "/tmp/scribe.db",
		"--timeout", "90s",
		"--log", "debug",
		"--save",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	if f.llm != "google/gemini-2.5-flash" {
		t.Errorf("Expected llm flag captured, got %q", f.llm)
	}
	if f.rules != "rules.yaml" {
		t.Errorf("Expected rules flag captured, got %q", f.rules)
	}
	if f.db != "/tmp/scribe.db" {
		t.Errorf("Expected db flag captured, got %q", f.db)
	}
	if f.timeout != "90s" {
		t.Errorf("Expected timeout flag captured, got %q", f.timeout)
	}
	if f.logLevel != "debug" {
		t.Errorf("Expected log flag captured, got %q", f.logLevel)
	}
	if !f.save {
		t.Error("Expected save flag set")
	}
	if len(f.args) != 1 || f.args[0] != "notes.txt" {
		t.Errorf("Expected positional arg notes.txt, got %v", f.args)
	}
}

func TestParseFlagsMissingValue(t *testing.T) {
	if _, err := parseFlags([]string{"--llm"}); err == nil {
		t.Fatal("Expected error for --llm without value")
	}
}

func TestParseFlagsUnknownFlag(t *testing.T) {
	if _, err := parseFlags([]string{"--bogus"}); err == nil {
		t.Fatal("Expected error for unknown flag")
	}
}

func TestParseFlagsNoLLM(t *testing.T) {
	f, err := parseFlags([]string{"--no-llm"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if !f.noLLM {
		t.Error("Expected noLLM set")
	}
}

func TestReadInputFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("Patient admitted today."), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	text, err := readInput([]string{path})
	if err != nil {
		t.Fatalf("readInput: %v", err)
	}
	if text != "Patient admitted today." {
		t.Errorf("Unexpected input text: %q", text)
	}
}

func TestReadInputMissingFile(t *testing.T) {
	if _, err := readInput([]string{"/nonexistent/notes.txt"}); err == nil {
		t.Fatal("Expected error for missing file")
	}
}
