package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foldermate/foldermate/internal/registry"
	"github.com/foldermate/foldermate/internal/walker"
)

// envelope is the response shape shared by every endpoint.
type envelope map[string]any

func respond(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// fail converts a registry error into a structured not-ok response.
func fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidArgument):
		status = http.StatusBadRequest
	}
	respond(w, status, envelope{"ok": false, "error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond(w, http.StatusBadRequest, envelope{"ok": false, "error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// recordByIDParam resolves the {id} route parameter to a full record.
func (s *Server) recordByIDParam(w http.ResponseWriter, r *http.Request) (registry.FileRecord, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respond(w, http.StatusBadRequest, envelope{"ok": false, "error": "invalid file id"})
		return registry.FileRecord{}, false
	}
	rec, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		fail(w, err)
		return registry.FileRecord{}, false
	}
	return rec, true
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	base, err := s.store.GetBaseDir(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "config": s.store.Config(), "base_dir": base})
}

type configUpdate struct {
	BaseDir           *string  `json:"base_dir"`
	TargetDir         *string  `json:"target_dir"`
	Instructions      *string  `json:"instructions"`
	DontDelete        *bool    `json:"dont_delete"`
	Recursive         *bool    `json:"recursive"`
	AllowedExtensions []string `json:"allowed_extensions"`
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var payload configUpdate
	if !decode(w, r, &payload) {
		return
	}

	ctx := r.Context()
	updates := map[string]any{}
	if payload.BaseDir != nil {
		updates["base_dir"] = *payload.BaseDir
	}
	if payload.TargetDir != nil {
		updates["target_dir"] = *payload.TargetDir
	}
	if payload.Instructions != nil {
		updates["instructions"] = *payload.Instructions
	}
	if payload.DontDelete != nil {
		updates["dont_delete"] = *payload.DontDelete
	}
	if payload.Recursive != nil {
		updates["recursive"] = *payload.Recursive
	}
	if payload.AllowedExtensions != nil {
		updates["allowed_extensions"] = payload.AllowedExtensions
	}
	for key, value := range updates {
		if err := s.store.SetConfigValue(ctx, key, value); err != nil {
			fail(w, err)
			return
		}
	}

	// Mirror the change into the config document; runtime-only keys are
	// excluded by the config type itself.
	if s.configPath != "" {
		if err := s.store.Config().Save(s.configPath); err != nil {
			fail(w, err)
			return
		}
	}
	s.handleGetConfig(w, r)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		BaseDir string `json:"base_dir"`
	}
	if !decode(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.BaseDir) == "" {
		respond(w, http.StatusBadRequest, envelope{"ok": false, "error": "base_dir is required"})
		return
	}
	if err := s.store.Reset(r.Context(), payload.BaseDir); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "message": "store reset", "base_dir": s.store.Config().BaseDir})
}

// fileRow is the compact list representation with first-line previews.
type fileRow struct {
	ID                       int64   `json:"id"`
	PathRel                  string  `json:"path_rel"`
	FileReportPreview        *string `json:"file_report_preview"`
	OrganizationNotesPreview *string `json:"organization_notes_preview"`
	PlannedDest              string  `json:"planned_dest"`
	OrganizedPath            string  `json:"organized_path"`
	Selected                 bool    `json:"selected"`
	CreatedAt                string  `json:"created_at"`
	UpdatedAt                string  `json:"updated_at"`
	HasFileReport            bool    `json:"has_file_report"`
	HasOrganizationNotes     bool    `json:"has_organization_notes"`
}

func preview(s string) *string {
	if s == "" {
		return nil
	}
	const max = 140
	firstLine := s
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine = s[:idx]
	}
	if len(firstLine) > max {
		firstLine = firstLine[:max-1] + "…"
	}
	return &firstLine
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	result, err := s.store.List(r.Context(), registry.ListFilter{
		Query:    q.Get("q"),
		Page:     page,
		PageSize: pageSize,
		OrderBy:  q.Get("order_by"),
		OrderDir: q.Get("order_dir"),
	})
	if err != nil {
		fail(w, err)
		return
	}

	rows := make([]fileRow, 0, len(result.Rows))
	for _, rec := range result.Rows {
		rows = append(rows, fileRow{
			ID:                       rec.ID,
			PathRel:                  rec.PathRel,
			FileReportPreview:        preview(rec.FileReport),
			OrganizationNotesPreview: preview(rec.OrganizationNotes),
			PlannedDest:              rec.PlannedDest,
			OrganizedPath:            rec.FinalDest,
			Selected:                 rec.Selected,
			CreatedAt:                rec.CreatedAt,
			UpdatedAt:                rec.UpdatedAt,
			HasFileReport:            rec.FileReport != "",
			HasOrganizationNotes:     rec.OrganizationNotes != "",
		})
	}
	respond(w, http.StatusOK, envelope{
		"ok":        true,
		"page":      result.Page,
		"page_size": result.PageSize,
		"total":     result.Total,
		"rows":      rows,
	})
}

func (s *Server) handleInsertFile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PathRel string `json:"path_rel"`
	}
	if !decode(w, r, &payload) {
		return
	}
	res, err := s.store.Insert(r.Context(), payload.PathRel)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "id": res.ID, "path_rel": res.PathRel, "existed": res.Existed})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.recordByIDParam(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, envelope{
		"ok":                 true,
		"id":                 rec.ID,
		"path_rel":           rec.PathRel,
		"file_report":        rec.FileReport,
		"organization_notes": rec.OrganizationNotes,
		"planned_dest":       rec.PlannedDest,
		"organized_path":     rec.FinalDest,
		"selected":           rec.Selected,
		"created_at":         rec.CreatedAt,
		"updated_at":         rec.UpdatedAt,
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.recordByIDParam(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "file_report": rec.FileReport})
}

func (s *Server) handlePutReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.recordByIDParam(w, r)
	if !ok {
		return
	}
	var payload struct {
		FileReport string `json:"file_report"`
	}
	if !decode(w, r, &payload) {
		return
	}
	if err := s.store.SetReport(r.Context(), rec.PathRel, payload.FileReport); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "id": rec.ID, "path_rel": rec.PathRel})
}

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.recordByIDParam(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "organization_notes": rec.OrganizationNotes})
}

func (s *Server) handlePutPlannedDest(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.recordByIDParam(w, r)
	if !ok {
		return
	}
	var payload struct {
		PlannedDest string `json:"planned_dest"`
	}
	if !decode(w, r, &payload) {
		return
	}
	dest, err := s.store.SetPlannedDestination(r.Context(), rec.PathRel, payload.PlannedDest)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "path_rel": rec.PathRel, "planned_dest": dest})
}

func (s *Server) handlePutSelected(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.recordByIDParam(w, r)
	if !ok {
		return
	}
	var payload struct {
		Selected bool `json:"selected"`
	}
	if !decode(w, r, &payload) {
		return
	}
	if err := s.store.SetSelected(r.Context(), rec.PathRel, payload.Selected); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "path_rel": rec.PathRel, "selected": payload.Selected})
}

func (s *Server) handleSetSelectedBatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IDs      []int64 `json:"ids"`
		All      bool    `json:"all"`
		Selected bool    `json:"selected"`
	}
	if !decode(w, r, &payload) {
		return
	}

	var (
		updated int64
		err     error
	)
	if payload.All {
		updated, err = s.store.SetSelectedAll(r.Context(), payload.Selected)
	} else {
		updated, err = s.store.SetSelectedByIDs(r.Context(), payload.IDs, payload.Selected)
	}
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "updated": updated, "selected": payload.Selected})
}

func (s *Server) handleAppendNotes(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IDs  []int64 `json:"ids"`
		Text string  `json:"text"`
	}
	if !decode(w, r, &payload) {
		return
	}
	updated, err := s.store.AppendNotes(r.Context(), payload.IDs, payload.Text)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "updated_ids": updated})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.recordByIDParam(w, r)
	if !ok {
		return
	}
	topK, _ := strconv.Atoi(r.URL.Query().Get("top_k"))
	results, err := s.store.FindSimilarReports(r.Context(), rec.PathRel, topK)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "results": results})
}

func (s *Server) handleNextPath(w http.ResponseWriter, r *http.Request) {
	var (
		pathRel string
		found   bool
		err     error
	)
	ctx := r.Context()
	switch stage := chi.URLParam(r, "stage"); stage {
	case "report":
		pathRel, found, err = s.store.NextPathMissingReport(ctx)
	case "plan":
		pathRel, found, err = s.store.NextPathPendingPlan(ctx)
	case "destination":
		pathRel, found, err = s.store.NextPathMissingPlannedDest(ctx)
	case "move":
		pathRel, found, err = s.store.NextPathMissingFinalDest(ctx)
	default:
		respond(w, http.StatusBadRequest, envelope{"ok": false, "error": "unknown stage: " + stage})
		return
	}
	if err != nil {
		fail(w, err)
		return
	}
	var value any
	if found {
		value = pathRel
	}
	respond(w, http.StatusOK, envelope{"ok": true, "path_rel": value})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	result, err := walker.Scan(r.Context(), s.store, nil)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "inserted": result.Inserted, "existing": result.Existing, "skipped": result.Skipped})
}

func (s *Server) handleRelocate(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.engine.Run(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ok": true, "outcomes": outcomes})
}
