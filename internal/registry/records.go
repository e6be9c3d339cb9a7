package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const recordColumns = `id, path_rel, IFNULL(file_report,''), IFNULL(organization_notes,''),
	planner_processed, IFNULL(planned_dest,''), IFNULL(final_dest,''), selected, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (FileRecord, error) {
	var (
		rec                        FileRecord
		plannerProcessed, selected int
	)
	err := row.Scan(&rec.ID, &rec.PathRel, &rec.FileReport, &rec.OrganizationNotes,
		&plannerProcessed, &rec.PlannedDest, &rec.FinalDest, &selected,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return FileRecord{}, err
	}
	rec.PlannerProcessed = plannerProcessed != 0
	rec.Selected = selected != 0
	return rec, nil
}

// GetByPath returns the full record for a path.
func (s *Store) GetByPath(ctx context.Context, pathFromBase string) (FileRecord, error) {
	pathRel := NormalizeRel(pathFromBase)
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM files WHERE path_rel = ?", pathRel))
	if errors.Is(err, sql.ErrNoRows) {
		return FileRecord{}, pathNotFound(pathRel)
	}
	if err != nil {
		return FileRecord{}, fmt.Errorf("reading record for %s: %w", pathRel, err)
	}
	return rec, nil
}

// GetByID returns the full record for a file id.
func (s *Store) GetByID(ctx context.Context, id int64) (FileRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM files WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return FileRecord{}, fmt.Errorf("%w: file id %d", ErrNotFound, id)
	}
	if err != nil {
		return FileRecord{}, fmt.Errorf("reading record %d: %w", id, err)
	}
	return rec, nil
}

// orderColumns whitelists the sortable list columns.
var orderColumns = map[string]bool{
	"path_rel":   true,
	"created_at": true,
	"updated_at": true,
}

// List returns one page of records, optionally filtered by a substring
// match over path, report, notes and destinations.
func (s *Store) List(ctx context.Context, filter ListFilter) (ListPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	orderBy := filter.OrderBy
	if !orderColumns[orderBy] {
		orderBy = "updated_at"
	}
	orderDir := "DESC"
	if strings.EqualFold(filter.OrderDir, "asc") {
		orderDir = "ASC"
	}

	var (
		where string
		args  []any
	)
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		where = ` WHERE (LOWER(path_rel) LIKE ? OR LOWER(IFNULL(file_report,'')) LIKE ?
			OR LOWER(IFNULL(organization_notes,'')) LIKE ?
			OR LOWER(IFNULL(planned_dest,'')) LIKE ? OR LOWER(IFNULL(final_dest,'')) LIKE ?)`
		like := "%" + q + "%"
		args = append(args, like, like, like, like, like)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files"+where, args...).Scan(&total); err != nil {
		return ListPage{}, fmt.Errorf("counting files: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM files%s ORDER BY %s %s LIMIT ? OFFSET ?",
		recordColumns, where, orderBy, orderDir)
	rows, err := s.db.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return ListPage{}, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	out := ListPage{Page: page, PageSize: pageSize, Total: total, Rows: []FileRecord{}}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return ListPage{}, fmt.Errorf("scanning file row: %w", err)
		}
		out.Rows = append(out.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return ListPage{}, fmt.Errorf("listing files: %w", err)
	}
	return out, nil
}
