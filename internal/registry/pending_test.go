package registry

import (
	"context"
	"testing"
)

func nextMust(t *testing.T, fn func(context.Context) (string, bool, error)) (string, bool) {
	t.Helper()
	path, ok, err := fn(context.Background())
	if err != nil {
		t.Fatalf("next query: %v", err)
	}
	return path, ok
}

func TestPipelineStageProgression(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, p := range []string{"a.txt", "b.txt"} {
		if _, err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert(%s): %v", p, err)
		}
	}

	// Stage 1: both miss a report; the lowest id wins.
	if path, ok := nextMust(t, store.NextPathMissingReport); !ok || path != "a.txt" {
		t.Fatalf("missing report: got %q, %v", path, ok)
	}

	// A sentinel report does not count as done.
	if err := store.SetReport(ctx, "a.txt", ProcessingSentinels[0]); err != nil {
		t.Fatalf("SetReport: %v", err)
	}
	if path, _ := nextMust(t, store.NextPathMissingReport); path != "a.txt" {
		t.Fatalf("sentinel should stay pending, got %q", path)
	}

	if err := store.SetReport(ctx, "a.txt", "report for a"); err != nil {
		t.Fatalf("SetReport: %v", err)
	}
	if path, _ := nextMust(t, store.NextPathMissingReport); path != "b.txt" {
		t.Fatalf("after a's report, got %q", path)
	}
	if err := store.SetReport(ctx, "b.txt", "report for b"); err != nil {
		t.Fatalf("SetReport: %v", err)
	}
	if _, ok := nextMust(t, store.NextPathMissingReport); ok {
		t.Fatal("missing-report stage not drained")
	}

	// Stage 2: planner.
	if path, ok := nextMust(t, store.NextPathPendingPlan); !ok || path != "a.txt" {
		t.Fatalf("pending plan: got %q, %v", path, ok)
	}
	if err := store.MarkPlannerProcessed(ctx, "a.txt"); err != nil {
		t.Fatalf("MarkPlannerProcessed: %v", err)
	}
	if path, _ := nextMust(t, store.NextPathPendingPlan); path != "b.txt" {
		t.Fatalf("pending plan after a: got %q", path)
	}

	// Stage 3: only planner-processed files need a destination.
	if path, ok := nextMust(t, store.NextPathMissingPlannedDest); !ok || path != "a.txt" {
		t.Fatalf("missing planned dest: got %q, %v", path, ok)
	}
	dest, err := store.SetPlannedDestination(ctx, "a.txt", `sorted\text\a.txt`)
	if err != nil {
		t.Fatalf("SetPlannedDestination: %v", err)
	}
	if dest != "sorted/text/a.txt" {
		t.Errorf("planned dest not normalized: %q", dest)
	}
	if _, ok := nextMust(t, store.NextPathMissingPlannedDest); ok {
		t.Fatal("b should not need a destination before its planner step")
	}

	// Stage 4: relocation candidates.
	if path, ok := nextMust(t, store.NextPathMissingFinalDest); !ok || path != "a.txt" {
		t.Fatalf("missing final dest: got %q, %v", path, ok)
	}
	count, err := store.CountMissingFinalDest(ctx)
	if err != nil {
		t.Fatalf("CountMissingFinalDest: %v", err)
	}
	if count != 1 {
		t.Errorf("relocation candidates: got %d, want 1", count)
	}

	if err := store.SetFinalDestination(ctx, "a.txt", "/target/sorted/text/a.txt"); err != nil {
		t.Fatalf("SetFinalDestination: %v", err)
	}
	if _, ok := nextMust(t, store.NextPathMissingFinalDest); ok {
		t.Fatal("a still eligible after its final destination was set")
	}

	// An error marker is terminal too.
	if err := store.MarkPlannerProcessed(ctx, "b.txt"); err != nil {
		t.Fatalf("MarkPlannerProcessed: %v", err)
	}
	if _, err := store.SetPlannedDestination(ctx, "b.txt", "sorted/b.txt"); err != nil {
		t.Fatalf("SetPlannedDestination: %v", err)
	}
	if err := store.SetFinalDestination(ctx, "b.txt", "[error: source file not found]"); err != nil {
		t.Fatalf("SetFinalDestination: %v", err)
	}
	if _, ok := nextMust(t, store.NextPathMissingFinalDest); ok {
		t.Fatal("marker outcome should exclude b from the next pass")
	}
}

func TestDeselectedFilesAreInvisibleToPipeline(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Insert(ctx, "a.txt"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.SetSelected(ctx, "a.txt", false); err != nil {
		t.Fatalf("SetSelected: %v", err)
	}

	if _, ok := nextMust(t, store.NextPathMissingReport); ok {
		t.Error("deselected file offered for analysis")
	}

	if err := store.SetSelected(ctx, "a.txt", true); err != nil {
		t.Fatalf("SetSelected: %v", err)
	}
	if path, ok := nextMust(t, store.NextPathMissingReport); !ok || path != "a.txt" {
		t.Errorf("reselected file not offered: %q, %v", path, ok)
	}
}
