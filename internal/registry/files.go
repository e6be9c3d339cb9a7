package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/foldermate/foldermate/internal/vectorindex"
)

// Insert registers a path, normalizing it and rejecting disallowed
// extensions. Inserting an already-known path is not an error; the
// result reports Existed=true. New records default to selected.
func (s *Store) Insert(ctx context.Context, pathFromBase string) (InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pathRel := NormalizeRel(pathFromBase)
	if !s.IsAllowedFile(pathRel) {
		ext := path.Ext(pathRel)
		if ext == "" {
			ext = "no extension"
		}
		return InsertResult{}, invalidf("unsupported file extension: %s", ext)
	}

	now := s.stamp()
	res, err := s.db.ExecRetry(ctx,
		"INSERT OR IGNORE INTO files(path_rel, selected, created_at, updated_at) VALUES(?, 1, ?, ?)",
		pathRel, now, now)
	if err != nil {
		return InsertResult{}, fmt.Errorf("inserting %s: %w", pathRel, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return InsertResult{}, fmt.Errorf("inserting %s: %w", pathRel, err)
	}

	id, err := s.idByPath(ctx, pathRel)
	if err != nil {
		return InsertResult{}, err
	}
	return InsertResult{ID: id, PathRel: pathRel, Existed: affected == 0}, nil
}

// GetFileID resolves a path to its stable numeric id.
func (s *Store) GetFileID(ctx context.Context, pathFromBase string) (int64, error) {
	return s.idByPath(ctx, NormalizeRel(pathFromBase))
}

// SetReport stores the analysis report for a path and refreshes the
// report index. The report is persisted even when embedding fails; only
// the index falls behind in that case.
func (s *Store) SetReport(ctx context.Context, pathFromBase, text string) error {
	if strings.TrimSpace(text) == "" {
		return invalidf("file report text is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pathRel := NormalizeRel(pathFromBase)
	id, err := s.idByPath(ctx, pathRel)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecRetry(ctx,
		"UPDATE files SET file_report = ?, updated_at = ? WHERE id = ?",
		text, s.stamp(), id); err != nil {
		return fmt.Errorf("saving report for %s: %w", pathRel, err)
	}

	s.upsertIndex(ctx, vectorindex.KindReport, id, pathRel, text)
	return nil
}

// GetReport returns the stored report for a path.
func (s *Store) GetReport(ctx context.Context, pathFromBase string) (string, error) {
	pathRel := NormalizeRel(pathFromBase)
	var report sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT file_report FROM files WHERE path_rel = ?", pathRel).Scan(&report)
	if errors.Is(err, sql.ErrNoRows) {
		return "", pathNotFound(pathRel)
	}
	if err != nil {
		return "", fmt.Errorf("reading report for %s: %w", pathRel, err)
	}
	return report.String, nil
}

// ClearProcessingReports resets reports equal to a processing sentinel
// back to empty, so a crash mid-analysis does not leave files wedged in a
// false "done" state. Returns the number of rows cleared.
func (s *Store) ClearProcessingReports(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecRetry(ctx,
		"UPDATE files SET file_report = '', updated_at = ? WHERE file_report IN (?, ?)",
		s.stamp(), ProcessingSentinels[0], ProcessingSentinels[1])
	if err != nil {
		return 0, fmt.Errorf("clearing processing reports: %w", err)
	}
	return res.RowsAffected()
}

// MarkPlannerProcessed records that the planner has handled a path.
func (s *Store) MarkPlannerProcessed(ctx context.Context, pathFromBase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateColumn(ctx, NormalizeRel(pathFromBase), "planner_processed", 1)
}

// SetPlannedDestination stores the planner's relative destination for a
// path and returns the normalized value.
func (s *Store) SetPlannedDestination(ctx context.Context, pathFromBase, plannedDest string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dest := NormalizeRel(plannedDest)
	if err := s.updateColumn(ctx, NormalizeRel(pathFromBase), "planned_dest", dest); err != nil {
		return "", err
	}
	return dest, nil
}

// SetFinalDestination records the terminal outcome for a path: either the
// absolute destination the file was moved to, or a structured error
// marker like "[error: source file not found]". Markers are stored
// verbatim so they stay recognizable.
func (s *Store) SetFinalDestination(ctx context.Context, pathFromBase, finalDest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dest := finalDest
	if !strings.HasPrefix(dest, "[") {
		dest = strings.ReplaceAll(dest, "\\", "/")
	}
	return s.updateColumn(ctx, NormalizeRel(pathFromBase), "final_dest", dest)
}

// SetSelected toggles pipeline eligibility for a single path.
func (s *Store) SetSelected(ctx context.Context, pathFromBase string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateColumn(ctx, NormalizeRel(pathFromBase), "selected", boolInt(selected))
}

// SetSelectedByIDs toggles pipeline eligibility for a set of ids and
// returns the number of rows updated. An empty id list updates nothing.
func (s *Store) SetSelectedByIDs(ctx context.Context, ids []int64, selected bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+2)
	args = append(args, boolInt(selected), s.stamp())
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.ExecRetry(ctx,
		fmt.Sprintf("UPDATE files SET selected = ?, updated_at = ? WHERE id IN (%s)", placeholders),
		args...)
	if err != nil {
		return 0, fmt.Errorf("updating selection: %w", err)
	}
	return res.RowsAffected()
}

// SetSelectedAll toggles pipeline eligibility for every record.
func (s *Store) SetSelectedAll(ctx context.Context, selected bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecRetry(ctx,
		"UPDATE files SET selected = ?, updated_at = ?", boolInt(selected), s.stamp())
	if err != nil {
		return 0, fmt.Errorf("updating selection: %w", err)
	}
	return res.RowsAffected()
}

// updateColumn sets one column on the row for pathRel, bumping updated_at.
// Callers hold s.mu.
func (s *Store) updateColumn(ctx context.Context, pathRel, column string, value any) error {
	id, err := s.idByPath(ctx, pathRel)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecRetry(ctx,
		fmt.Sprintf("UPDATE files SET %s = ?, updated_at = ? WHERE id = ?", column),
		value, s.stamp(), id); err != nil {
		return fmt.Errorf("updating %s for %s: %w", column, pathRel, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// upsertIndex refreshes one vector index entry best-effort. Callers hold
// s.mu; failures are logged and never propagated.
func (s *Store) upsertIndex(ctx context.Context, kind vectorindex.Kind, id int64, pathRel, text string) {
	if s.index == nil {
		return
	}
	if strings.TrimSpace(text) == "" {
		if err := s.index.Delete(ctx, kind, id); err != nil {
			log.Printf("vector index delete failed for %s (%s): %v", pathRel, kind, err)
		}
		return
	}
	vec, err := s.index.EmbedText(ctx, text)
	if err != nil {
		log.Printf("embedding failed for %s (%s): %v", pathRel, kind, err)
		return
	}
	if err := s.index.Upsert(ctx, kind, id, vec, pathRel); err != nil {
		log.Printf("vector index update failed for %s (%s): %v", pathRel, kind, err)
	}
}
