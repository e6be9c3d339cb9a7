package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenMemoryMigrates(t *testing.T) {
	database, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer database.Close()

	for _, table := range []string{"files", "config"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "organizer.sqlite")
	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	if database.Path() != path {
		t.Errorf("Path: got %q, want %q", database.Path(), path)
	}

	// Reopening is idempotent thanks to IF NOT EXISTS migrations.
	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again.Close()
}

func TestExecRetry(t *testing.T) {
	ctx := context.Background()
	database, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer database.Close()

	res, err := database.ExecRetry(ctx,
		"INSERT INTO files(path_rel, created_at, updated_at) VALUES(?, ?, ?)",
		"a.txt", "2025-01-01T00:00:00.000000000Z", "2025-01-01T00:00:00.000000000Z")
	if err != nil {
		t.Fatalf("ExecRetry: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("LastInsertId: %v", err)
	}
	if id != 1 {
		t.Errorf("id: got %d, want 1", id)
	}

	// A plain SQL error is returned immediately, not retried into a hang.
	if _, err := database.ExecRetry(ctx, "INSERT INTO nope VALUES(1)"); err == nil {
		t.Error("ExecRetry swallowed a SQL error")
	}
}

func TestIsBusy(t *testing.T) {
	if isBusy(nil) {
		t.Error("nil error reported busy")
	}
	if !isBusy(errTest("database is locked")) {
		t.Error("locked error not recognized")
	}
	if !isBusy(errTest("SQLITE_BUSY")) {
		t.Error("busy error not recognized")
	}
	if isBusy(errTest("syntax error")) {
		t.Error("syntax error reported busy")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
