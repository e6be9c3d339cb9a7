package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/foldermate/foldermate/internal/config"
	"github.com/foldermate/foldermate/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.BaseDir = t.TempDir()
	store, err := New(database, nil, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestNormalizeRel(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"docs/a.txt", "docs/a.txt"},
		{"./docs/a.txt", "docs/a.txt"},
		{`docs\sub\a.txt`, "docs/sub/a.txt"},
		{"docs//sub/../a.txt", "docs/a.txt"},
		{"a.txt", "a.txt"},
	}
	for _, tc := range cases {
		if got := NormalizeRel(tc.in); got != tc.want {
			t.Errorf("NormalizeRel(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInsertExisted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.Insert(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first.Existed {
		t.Error("first insert reported Existed=true")
	}
	if first.ID == 0 {
		t.Error("first insert returned zero id")
	}

	second, err := store.Insert(ctx, "./docs/a.txt")
	if err != nil {
		t.Fatalf("Insert again: %v", err)
	}
	if !second.Existed {
		t.Error("second insert reported Existed=false")
	}
	if second.ID != first.ID {
		t.Errorf("second insert id %d, want %d", second.ID, first.ID)
	}
}

func TestInsertRejectsDisallowedExtension(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, p := range []string{"tool.exe", "Makefile", "bin/app"} {
		_, err := store.Insert(ctx, p)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Insert(%q): got %v, want ErrInvalidArgument", p, err)
		}
	}
}

func TestUpdatedAtStrictlyAdvances(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	res, err := store.Insert(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	before, err := store.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if err := store.SetReport(ctx, "a.txt", "summary of a"); err != nil {
		t.Fatalf("SetReport: %v", err)
	}
	after, err := store.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if !(after.UpdatedAt > before.UpdatedAt) {
		t.Errorf("updated_at did not advance: %q -> %q", before.UpdatedAt, after.UpdatedAt)
	}
	if after.CreatedAt != before.CreatedAt {
		t.Errorf("created_at changed: %q -> %q", before.CreatedAt, after.CreatedAt)
	}
}

func TestConfigValuesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.GetBaseDir(ctx); err != nil {
		t.Fatalf("GetBaseDir after New: %v", err)
	}

	if err := store.SetConfigValue(ctx, "instructions", "keep invoices together"); err != nil {
		t.Fatalf("SetConfigValue: %v", err)
	}
	got, err := store.GetInstructions(ctx)
	if err != nil {
		t.Fatalf("GetInstructions: %v", err)
	}
	if got != "keep invoices together" {
		t.Errorf("instructions: got %q", got)
	}

	if err := store.SetConfigValue(ctx, "dont_delete", true); err != nil {
		t.Fatalf("SetConfigValue dont_delete: %v", err)
	}
	if !store.Config().DontDelete {
		t.Error("dont_delete not mirrored into config")
	}

	_, ok, err := store.GetConfigValue(ctx, "no_such_key")
	if err != nil {
		t.Fatalf("GetConfigValue: %v", err)
	}
	if ok {
		t.Error("unknown key reported present")
	}
}

func TestResetClearsEverything(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Insert(ctx, "a.txt"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.SetConfigValue(ctx, "instructions", "whatever"); err != nil {
		t.Fatalf("SetConfigValue: %v", err)
	}

	newBase := t.TempDir()
	if err := store.Reset(ctx, newBase); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	page, err := store.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("files remain after reset: %d", page.Total)
	}

	instr, err := store.GetInstructions(ctx)
	if err != nil {
		t.Fatalf("GetInstructions: %v", err)
	}
	if instr != "" {
		t.Errorf("instructions survived reset: %q", instr)
	}

	// Ids restart from 1 after a reset.
	res, err := store.Insert(ctx, "b.txt")
	if err != nil {
		t.Fatalf("Insert after reset: %v", err)
	}
	if res.ID != 1 {
		t.Errorf("id after reset: got %d, want 1", res.ID)
	}
}
