package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func newTestArchive(t *testing.T) Archive {
	t.Helper()
	a, err := NewArchive(":memory:")
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSaveAndGetRun(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	id, err := a.SaveRun(ctx, &Run{
		Approach:     "hybrid",
		LLMProvider:  "google/gemini-2.5-flash",
		Valid:        true,
		Completeness: 0.875,
		InputChars:   4200,
		ResultJSON:   `{"record":{}}`,
	})
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id == "" {
		t.Fatal("Expected generated run ID")
	}

	got, err := a.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Approach != "hybrid" || !got.Valid || got.Completeness != 0.875 {
		t.Errorf("Unexpected run: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected created timestamp")
	}
}

func TestGetMissingRun(t *testing.T) {
	a := newTestArchive(t)
	_, err := a.GetRun(context.Background(), "no-such-id")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	older := time.Now().UTC().Add(-time.Hour)
	if _, err := a.SaveRun(ctx, &Run{ID: "old", CreatedAt: older, Approach: "deterministic-only", ResultJSON: "{}"}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.SaveRun(ctx, &Run{ID: "new", Approach: "hybrid", ResultJSON: "{}"}); err != nil {
		t.Fatal(err)
	}

	runs, err := a.ListRuns(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "new" || runs[1].ID != "old" {
		t.Errorf("Expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}
}

func TestDeleteRun(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	id, err := a.SaveRun(ctx, &Run{ResultJSON: "{}"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.DeleteRun(ctx, id); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := a.GetRun(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("Expected run gone, got %v", err)
	}
	// Deleting again is a no-op.
	if err := a.DeleteRun(ctx, id); err != nil {
		t.Fatalf("Second delete: %v", err)
	}
}

func TestArchiveStats(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	for _, r := range []*Run{
		{Approach: "hybrid", Valid: true, ResultJSON: "{}"},
		{Approach: "hybrid", Valid: false, ResultJSON: "{}"},
		{Approach: "deterministic-only", Valid: true, ResultJSON: "{}"},
	} {
		if _, err := a.SaveRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	st, err := a.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.RunCount != 3 || st.ValidCount != 2 || st.HybridCount != 2 {
		t.Errorf("Unexpected stats: %+v", st)
	}
}
