package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/foldermate/foldermate/internal/config"
	"github.com/foldermate/foldermate/internal/db"
	"github.com/foldermate/foldermate/internal/registry"
	"github.com/foldermate/foldermate/internal/relocation"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.BaseDir = t.TempDir()
	store, err := registry.New(database, nil, cfg)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return New(store, relocation.New(store, nil), "")
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	var decoded map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: unmarshal response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, decoded
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, "GET", "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}
}

func TestInsertAndGetFile(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, "POST", "/api/files", `{"path_rel":"docs/a.txt"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("insert: got %d: %v", w.Code, body)
	}
	if body["ok"] != true || body["existed"] != false {
		t.Errorf("insert body: %v", body)
	}

	w, body = doJSON(t, srv, "POST", "/api/files", `{"path_rel":"docs/a.txt"}`)
	if w.Code != http.StatusOK || body["existed"] != true {
		t.Errorf("reinsert: %d %v", w.Code, body)
	}

	w, body = doJSON(t, srv, "GET", "/api/files/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d", w.Code)
	}
	if body["path_rel"] != "docs/a.txt" {
		t.Errorf("get body: %v", body)
	}

	w, body = doJSON(t, srv, "GET", "/api/files/999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id: got %d", w.Code)
	}
	if body["ok"] != false {
		t.Errorf("error envelope: %v", body)
	}
}

func TestInsertRejectsBadExtension(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, "POST", "/api/files", `{"path_rel":"tool.exe"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body["ok"] != false || body["error"] == "" {
		t.Errorf("error envelope: %v", body)
	}
}

func TestReportEndpoints(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, "POST", "/api/files", `{"path_rel":"a.txt"}`)

	w, _ := doJSON(t, srv, "PUT", "/api/files/1/file_report", `{"file_report":"a report"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put report: got %d", w.Code)
	}

	w, body := doJSON(t, srv, "GET", "/api/files/1/report", "")
	if w.Code != http.StatusOK || body["file_report"] != "a report" {
		t.Errorf("get report: %d %v", w.Code, body)
	}

	w, _ = doJSON(t, srv, "PUT", "/api/files/1/file_report", `{"file_report":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty report: got %d", w.Code)
	}
}

func TestNextStageEndpoint(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, "POST", "/api/files", `{"path_rel":"a.txt"}`)

	w, body := doJSON(t, srv, "GET", "/api/next/report", "")
	if w.Code != http.StatusOK || body["path_rel"] != "a.txt" {
		t.Errorf("next report: %d %v", w.Code, body)
	}

	// Nothing is ready for the planner yet; the response carries null.
	w, body = doJSON(t, srv, "GET", "/api/next/plan", "")
	if w.Code != http.StatusOK {
		t.Fatalf("next plan: got %d", w.Code)
	}
	if body["path_rel"] != nil {
		t.Errorf("next plan: got %v, want null", body["path_rel"])
	}

	w, _ = doJSON(t, srv, "GET", "/api/next/bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown stage: got %d", w.Code)
	}
}

func TestListWithPreview(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, "POST", "/api/files", `{"path_rel":"a.txt"}`)

	long := strings.Repeat("x", 200)
	doJSON(t, srv, "PUT", "/api/files/1/file_report", `{"file_report":"`+long+`\nsecond line"}`)

	w, body := doJSON(t, srv, "GET", "/api/files?q=a.txt", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: got %d", w.Code)
	}
	rows, ok := body["rows"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("rows: %v", body["rows"])
	}
	row := rows[0].(map[string]any)
	preview, _ := row["file_report_preview"].(string)
	if len(preview) > 150 {
		t.Errorf("preview not truncated: %d chars", len(preview))
	}
	if strings.Contains(preview, "second line") {
		t.Error("preview crossed the first line")
	}
	if row["has_file_report"] != true {
		t.Errorf("has_file_report: %v", row["has_file_report"])
	}
}

func TestNotesAppendEndpoint(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, "POST", "/api/files", `{"path_rel":"a.txt"}`)
	doJSON(t, srv, "POST", "/api/files", `{"path_rel":"b.txt"}`)

	w, body := doJSON(t, srv, "POST", "/api/files/notes/append", `{"ids":[1,2],"text":"shared note"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("append: got %d: %v", w.Code, body)
	}
	updated, ok := body["updated_ids"].([]any)
	if !ok || len(updated) != 2 {
		t.Errorf("updated_ids: %v", body["updated_ids"])
	}

	w, notes := doJSON(t, srv, "GET", "/api/files/1/notes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get notes: got %d", w.Code)
	}
	if !strings.Contains(notes["organization_notes"].(string), "shared note") {
		t.Errorf("notes: %v", notes["organization_notes"])
	}

	w, _ = doJSON(t, srv, "POST", "/api/files/notes/append", `{"ids":[],"text":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty ids: got %d", w.Code)
	}
}

func TestSelectionEndpoints(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, "POST", "/api/files", `{"path_rel":"a.txt"}`)
	doJSON(t, srv, "POST", "/api/files", `{"path_rel":"b.txt"}`)

	w, body := doJSON(t, srv, "POST", "/api/files/selected", `{"all":true,"selected":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("batch deselect: got %d", w.Code)
	}
	if body["updated"] != float64(2) {
		t.Errorf("updated: %v", body["updated"])
	}

	w, _ = doJSON(t, srv, "PUT", "/api/files/1/selected", `{"selected":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("select one: got %d", w.Code)
	}

	w, body = doJSON(t, srv, "GET", "/api/files/1", "")
	if w.Code != http.StatusOK || body["selected"] != true {
		t.Errorf("file 1: %d %v", w.Code, body)
	}
	w, body = doJSON(t, srv, "GET", "/api/files/2", "")
	if w.Code != http.StatusOK || body["selected"] != false {
		t.Errorf("file 2: %d %v", w.Code, body)
	}
}

func TestConfigEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, "GET", "/api/config", "")
	if w.Code != http.StatusOK || body["base_dir"] == "" {
		t.Fatalf("get config: %d %v", w.Code, body)
	}

	w, body = doJSON(t, srv, "PUT", "/api/config", `{"instructions":"sort by year","dont_delete":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put config: got %d: %v", w.Code, body)
	}
	cfg, ok := body["config"].(map[string]any)
	if !ok {
		t.Fatalf("config missing from response: %v", body)
	}
	if cfg["dont_delete"] != true {
		t.Errorf("dont_delete not applied: %v", cfg["dont_delete"])
	}
}

func TestResetEndpoint(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, "POST", "/api/files", `{"path_rel":"a.txt"}`)

	w, _ := doJSON(t, srv, "POST", "/api/reset", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("reset without base_dir: got %d", w.Code)
	}

	w, body := doJSON(t, srv, "POST", "/api/reset", `{"base_dir":"`+t.TempDir()+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reset: got %d: %v", w.Code, body)
	}

	w, body = doJSON(t, srv, "GET", "/api/files", "")
	if w.Code != http.StatusOK || body["total"] != float64(0) {
		t.Errorf("files after reset: %d %v", w.Code, body)
	}
}

func TestRelocateWithoutTargetFails(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, "POST", "/api/actions/relocate", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("relocate without target: got %d", w.Code)
	}
	if body["ok"] != false {
		t.Errorf("error envelope: %v", body)
	}
}
