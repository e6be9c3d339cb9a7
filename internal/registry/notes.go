package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/foldermate/foldermate/internal/vectorindex"
)

// noteStampLayout is the DD-MM-YY-HH:MM:SS stamp prefixed to journal
// lines, always in UTC.
const noteStampLayout = "02-01-06-15:04:05"

func (s *Store) noteLine(text string) string {
	return fmt.Sprintf("[%s]%s\n", s.now().UTC().Format(noteStampLayout), strings.TrimSpace(text))
}

// AppendNotes appends one timestamped note line to each of the given file
// ids. Unknown ids are silently skipped so a batch of mixed ids partially
// succeeds; the returned slice holds the ids actually updated. The call
// fails only when the id list or the text is empty.
func (s *Store) AppendNotes(ctx context.Context, ids []int64, text string) ([]int64, error) {
	if len(ids) == 0 {
		return nil, invalidf("no ids provided")
	}
	if strings.TrimSpace(text) == "" {
		return nil, invalidf("notes text is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.noteLine(text)
	updated := make([]int64, 0, len(ids))
	for _, id := range ids {
		var (
			notes   sql.NullString
			pathRel string
		)
		err := s.db.QueryRowContext(ctx,
			"SELECT organization_notes, path_rel FROM files WHERE id = ?", id).
			Scan(&notes, &pathRel)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return updated, fmt.Errorf("reading notes for id %d: %w", id, err)
		}

		merged := notes.String
		if merged != "" && !strings.HasSuffix(merged, "\n") {
			merged += "\n"
		}
		merged += line

		if err := s.writeNotes(ctx, id, pathRel, merged); err != nil {
			return updated, err
		}
		updated = append(updated, id)
	}
	return updated, nil
}

// AppendAnchorNotes appends a timestamped note to a single file addressed
// by path. It fails with a not-found error when the path is unknown.
func (s *Store) AppendAnchorNotes(ctx context.Context, pathFromBase, text string) (int64, error) {
	id, err := s.idByPath(ctx, NormalizeRel(pathFromBase))
	if err != nil {
		return 0, err
	}
	updated, err := s.AppendNotes(ctx, []int64{id}, text)
	if err != nil {
		return 0, err
	}
	if len(updated) == 0 {
		return 0, pathNotFound(NormalizeRel(pathFromBase))
	}
	return updated[0], nil
}

// PrependNoteSentinel inserts a marker line at the very start of a file's
// notes. A recognized processing sentinel is inserted bare, so it can be
// matched and stripped verbatim later; any other message gets the normal
// timestamp wrapper.
func (s *Store) PrependNoteSentinel(ctx context.Context, pathFromBase, message string) error {
	if strings.TrimSpace(message) == "" {
		return invalidf("message is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pathRel := NormalizeRel(pathFromBase)
	id, notes, err := s.notesByPath(ctx, pathRel)
	if err != nil {
		return err
	}

	msg := strings.TrimSpace(message)
	var block string
	if IsProcessingSentinel(msg) {
		block = msg + "\n"
	} else {
		block = s.noteLine(msg)
	}
	return s.writeNotes(ctx, id, pathRel, block+notes)
}

// RemoveNoteSentinel strips a previously prepended marker. The marker is
// removed only when it is literally the first line, or the second line
// (tolerating a line another writer slipped in above it); otherwise the
// notes are left unchanged.
func (s *Store) RemoveNoteSentinel(ctx context.Context, pathFromBase, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pathRel := NormalizeRel(pathFromBase)
	id, notes, err := s.notesByPath(ctx, pathRel)
	if err != nil {
		return err
	}

	msg := strings.TrimSpace(message)
	lines := splitAfterNewlines(notes)
	updated := notes
	switch {
	case len(lines) > 0 && strings.TrimSpace(lines[0]) == msg:
		updated = strings.Join(lines[1:], "")
	case len(lines) >= 2 && strings.TrimSpace(lines[1]) == msg:
		updated = strings.Join(lines[2:], "")
	}
	return s.writeNotes(ctx, id, pathRel, updated)
}

// GetNotes returns the notes journal for a path.
func (s *Store) GetNotes(ctx context.Context, pathFromBase string) (string, error) {
	pathRel := NormalizeRel(pathFromBase)
	_, notes, err := s.notesByPath(ctx, pathRel)
	return notes, err
}

func (s *Store) notesByPath(ctx context.Context, pathRel string) (int64, string, error) {
	var (
		id    int64
		notes sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, organization_notes FROM files WHERE path_rel = ?", pathRel).
		Scan(&id, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", pathNotFound(pathRel)
	}
	if err != nil {
		return 0, "", fmt.Errorf("reading notes for %s: %w", pathRel, err)
	}
	return id, notes.String, nil
}

// writeNotes persists the merged notes and refreshes the notes index
// best-effort. Callers hold s.mu.
func (s *Store) writeNotes(ctx context.Context, id int64, pathRel, notes string) error {
	if _, err := s.db.ExecRetry(ctx,
		"UPDATE files SET organization_notes = ?, updated_at = ? WHERE id = ?",
		notes, s.stamp(), id); err != nil {
		return fmt.Errorf("saving notes for %s: %w", pathRel, err)
	}
	s.upsertIndex(ctx, vectorindex.KindNotes, id, pathRel, notes)
	return nil
}

// splitAfterNewlines splits keeping the trailing newline on each line,
// mirroring splitlines(keepends=True).
func splitAfterNewlines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
