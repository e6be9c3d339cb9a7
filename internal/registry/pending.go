package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// The four next-pending queries are the scheduling primitive of the
// pipeline: each returns the oldest-by-id selected record matching
// exactly one stage predicate, and workers poll one path at a time.
// Determinism comes from the id ordering; there is no claim or lease,
// so a worker must write its state change back before polling again.

// NextPathMissingReport returns the oldest selected path with no report
// (or a processing sentinel left by a crashed run).
func (s *Store) NextPathMissingReport(ctx context.Context) (string, bool, error) {
	return s.nextPath(ctx, `
		SELECT path_rel FROM files
		WHERE selected = 1
		  AND (IFNULL(TRIM(file_report),'') = '' OR file_report IN (?, ?))
		ORDER BY id ASC LIMIT 1`,
		ProcessingSentinels[0], ProcessingSentinels[1])
}

// NextPathPendingPlan returns the oldest selected path whose report is
// present but whose planner step has not run.
func (s *Store) NextPathPendingPlan(ctx context.Context) (string, bool, error) {
	return s.nextPath(ctx, `
		SELECT path_rel FROM files
		WHERE selected = 1
		  AND IFNULL(TRIM(file_report),'') <> ''
		  AND planner_processed = 0
		ORDER BY id ASC LIMIT 1`)
}

// NextPathMissingPlannedDest returns the oldest selected planner-processed
// path without a planned destination.
func (s *Store) NextPathMissingPlannedDest(ctx context.Context) (string, bool, error) {
	return s.nextPath(ctx, `
		SELECT path_rel FROM files
		WHERE selected = 1
		  AND IFNULL(TRIM(file_report),'') <> ''
		  AND planner_processed = 1
		  AND IFNULL(TRIM(planned_dest),'') = ''
		ORDER BY id ASC LIMIT 1`)
}

// NextPathMissingFinalDest returns the oldest selected path with a planned
// destination but no terminal outcome yet.
func (s *Store) NextPathMissingFinalDest(ctx context.Context) (string, bool, error) {
	return s.nextPath(ctx, `
		SELECT path_rel FROM files
		WHERE selected = 1
		  AND IFNULL(TRIM(planned_dest),'') <> ''
		  AND IFNULL(TRIM(final_dest),'') = ''
		ORDER BY id ASC LIMIT 1`)
}

// CountMissingFinalDest returns how many selected records are eligible
// for a relocation pass.
func (s *Store) CountMissingFinalDest(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM files
		WHERE selected = 1
		  AND IFNULL(TRIM(planned_dest),'') <> ''
		  AND IFNULL(TRIM(final_dest),'') = ''`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting relocation candidates: %w", err)
	}
	return count, nil
}

func (s *Store) nextPath(ctx context.Context, query string, args ...any) (string, bool, error) {
	var pathRel string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&pathRel)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("next pending query: %w", err)
	}
	return pathRel, true, nil
}
