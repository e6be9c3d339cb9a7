package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"

	"github.com/foldermate/foldermate/internal/vectorindex"
)

// EnsureDimensions compares the embedding dimension recorded in the
// config table against the current probe dimension and rebuilds both
// vector indices when they disagree. Safe and re-entrant: it runs on
// every startup. A fresh store just records the current dimension.
func (s *Store) EnsureDimensions(ctx context.Context) error {
	if s.index == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.index.Dimensions()
	stored, ok, err := s.GetConfigValue(ctx, "embedding_dim")
	if err != nil {
		return err
	}
	if ok {
		storedDim, convErr := strconv.Atoi(stored)
		if convErr != nil || storedDim != dim {
			log.Printf("embedding dimension changed (stored=%s, current=%d); rebuilding vector indices", stored, dim)
			if err := s.rebuildIndices(ctx); err != nil {
				return err
			}
		}
	}

	if _, err := s.db.ExecRetry(ctx,
		"INSERT OR REPLACE INTO config(key, value) VALUES('embedding_dim', ?)",
		strconv.Itoa(dim)); err != nil {
		return fmt.Errorf("recording embedding dimension: %w", err)
	}
	return nil
}

// rebuildIndices drops both collections and re-embeds every record with
// non-empty report or notes text. A record whose re-embedding fails is
// skipped, not fatal: the rest of the rebuild proceeds.
func (s *Store) rebuildIndices(ctx context.Context) error {
	if err := s.index.Reset(ctx); err != nil {
		return err
	}

	for _, src := range []struct {
		kind   vectorindex.Kind
		column string
	}{
		{vectorindex.KindReport, "file_report"},
		{vectorindex.KindNotes, "organization_notes"},
	} {
		query := fmt.Sprintf(
			"SELECT id, path_rel, %s FROM files WHERE IFNULL(TRIM(%s),'') <> ''",
			src.column, src.column)
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("reading %s rows for rebuild: %w", src.column, err)
		}

		for rows.Next() {
			var (
				id      int64
				pathRel string
				text    sql.NullString
			)
			if err := rows.Scan(&id, &pathRel, &text); err != nil {
				rows.Close()
				return fmt.Errorf("scanning rebuild row: %w", err)
			}
			vec, err := s.index.EmbedText(ctx, text.String)
			if err != nil {
				log.Printf("rebuild: embedding failed for %s (%s): %v", pathRel, src.kind, err)
				continue
			}
			if err := s.index.Upsert(ctx, src.kind, id, vec, pathRel); err != nil {
				log.Printf("rebuild: index insert failed for %s (%s): %v", pathRel, src.kind, err)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterating rebuild rows: %w", err)
		}
		rows.Close()
	}
	return nil
}
