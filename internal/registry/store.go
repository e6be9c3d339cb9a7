package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/foldermate/foldermate/internal/config"
	"github.com/foldermate/foldermate/internal/db"
	"github.com/foldermate/foldermate/internal/vectorindex"
)

// timeLayout is a fixed-width UTC timestamp so that string comparison
// and ORDER BY agree with chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the authoritative registry of tracked files and the key/value
// configuration table. A single Store instance is shared by all workers
// and request handlers; every mutating operation is serialized by mu.
// The vector index is maintained best-effort after the row write commits:
// an index failure is logged, never rolled back into the primary write.
type Store struct {
	db    *db.DB
	index *vectorindex.Index
	cfg   *config.Config

	mu       sync.Mutex
	allowed  map[string]bool
	now      func() time.Time
	lastTime time.Time
}

// New creates a Store, seeds the config table from cfg and loads any
// values already persisted in the store back into cfg.
func New(database *db.DB, index *vectorindex.Index, cfg *config.Config) (*Store, error) {
	s := &Store{
		db:      database,
		index:   index,
		cfg:     cfg,
		allowed: config.NormalizeExtensions(cfg.AllowedExtensions),
		now:     time.Now,
	}
	if err := s.seedConfig(context.Background()); err != nil {
		return nil, fmt.Errorf("seeding config: %w", err)
	}
	if err := s.loadConfigFromStore(context.Background()); err != nil {
		return nil, fmt.Errorf("loading stored config: %w", err)
	}
	return s, nil
}

// SetClock replaces the time source (tests only).
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Index returns the vector index attached to the store, which may be nil
// when embeddings are unavailable.
func (s *Store) Index() *vectorindex.Index { return s.index }

// Config returns the live configuration the store was built with.
func (s *Store) Config() *config.Config { return s.cfg }

// NormalizeRel normalizes a path to forward slashes relative to the base
// directory: backslashes become slashes, a leading "./" is dropped and
// the result is cleaned.
func NormalizeRel(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return path.Clean(p)
}

// stamp returns a strictly increasing UTC timestamp. Two mutations can
// land on the same clock reading; updated_at must still advance.
func (s *Store) stamp() string {
	t := s.now().UTC()
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Nanosecond)
	}
	s.lastTime = t
	return t.Format(timeLayout)
}

// IsAllowedFile reports whether the path's extension is on the allow-list.
func (s *Store) IsAllowedFile(pathRel string) bool {
	ext := strings.ToLower(path.Ext(pathRel))
	if ext == "" {
		return false
	}
	return s.allowed[ext]
}

// idByPath resolves a normalized path to its file id.
func (s *Store) idByPath(ctx context.Context, pathRel string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM files WHERE path_rel = ?", pathRel).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, pathNotFound(pathRel)
	}
	if err != nil {
		return 0, fmt.Errorf("looking up path %s: %w", pathRel, err)
	}
	return id, nil
}

// seedConfig writes base_dir (absolute) into the config table if missing,
// and target_dir/instructions when the config document supplies them.
func (s *Store) seedConfig(ctx context.Context) error {
	baseAbs, err := filepath.Abs(s.cfg.BaseDir)
	if err != nil {
		return fmt.Errorf("resolving base dir: %w", err)
	}
	if _, err := s.db.ExecRetry(ctx,
		"INSERT OR IGNORE INTO config(key, value) VALUES('base_dir', ?)", filepath.ToSlash(baseAbs)); err != nil {
		return err
	}
	for key, val := range map[string]string{
		"target_dir":   s.cfg.TargetDir,
		"instructions": s.cfg.Instructions,
	} {
		if val == "" {
			continue
		}
		if _, err := s.db.ExecRetry(ctx,
			"INSERT OR IGNORE INTO config(key, value) VALUES(?, ?)", key, val); err != nil {
			return err
		}
	}
	return nil
}

// loadConfigFromStore overlays values persisted in the config table onto
// the in-memory configuration. Non-string values are stored JSON-encoded.
func (s *Store) loadConfigFromStore(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM config")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		switch key {
		case "base_dir":
			s.cfg.BaseDir = value
		case "target_dir":
			s.cfg.TargetDir = value
		case "instructions":
			s.cfg.Instructions = value
		case "dont_delete":
			var b bool
			if err := json.Unmarshal([]byte(value), &b); err == nil {
				s.cfg.DontDelete = b
			}
		case "recursive":
			var b bool
			if err := json.Unmarshal([]byte(value), &b); err == nil {
				s.cfg.Recursive = b
			}
		case "allowed_extensions":
			var exts []string
			if err := json.Unmarshal([]byte(value), &exts); err == nil {
				s.cfg.AllowedExtensions = exts
			} else {
				s.cfg.AllowedExtensions = []string{value}
			}
			s.allowed = config.NormalizeExtensions(s.cfg.AllowedExtensions)
		}
	}
	return rows.Err()
}

// SetConfigValue upserts a key into the config table and mirrors it into
// the in-memory configuration. Directory values are stored absolute.
func (s *Store) SetConfigValue(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := encodeConfigValue(key, value)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecRetry(ctx,
		"INSERT OR REPLACE INTO config(key, value) VALUES(?, ?)", key, stored); err != nil {
		return fmt.Errorf("saving config key %s: %w", key, err)
	}
	return s.loadConfigFromStore(ctx)
}

func encodeConfigValue(key string, value any) (string, error) {
	if str, ok := value.(string); ok {
		if key == "base_dir" || key == "target_dir" {
			abs, err := filepath.Abs(str)
			if err != nil {
				return "", fmt.Errorf("resolving %s: %w", key, err)
			}
			return filepath.ToSlash(abs), nil
		}
		return str, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encoding config key %s: %w", key, err)
	}
	return string(data), nil
}

// GetConfigValue reads a raw value from the config table.
func (s *Store) GetConfigValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading config key %s: %w", key, err)
	}
	return value, true, nil
}

// GetBaseDir returns the configured base directory.
func (s *Store) GetBaseDir(ctx context.Context) (string, error) {
	value, ok, err := s.GetConfigValue(ctx, "base_dir")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("base directory not set; run reset with a base dir")
	}
	return value, nil
}

// GetInstructions returns the stored folder organization instructions, or
// an empty string when none were saved.
func (s *Store) GetInstructions(ctx context.Context) (string, error) {
	value, _, err := s.GetConfigValue(ctx, "instructions")
	return value, err
}

// Reset wipes all file and config state from the embedded store and
// re-seeds only the base directory key. The config file on disk is not
// touched; reset affects the store alone.
func (s *Store) Reset(ctx context.Context, baseDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	baseAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("resolving base dir: %w", err)
	}
	baseAbs = filepath.ToSlash(baseAbs)

	for _, stmt := range []string{
		"DELETE FROM files",
		"DELETE FROM config",
	} {
		if _, err := s.db.ExecRetry(ctx, stmt); err != nil {
			return fmt.Errorf("resetting store: %w", err)
		}
	}
	// Restart id assignment from 1; the table may never have had rows.
	if _, err := s.db.ExecRetry(ctx, "DELETE FROM sqlite_sequence WHERE name='files'"); err != nil && !isMissingTable(err) {
		return fmt.Errorf("resetting id sequence: %w", err)
	}

	if _, err := s.db.ExecRetry(ctx,
		"INSERT OR REPLACE INTO config(key, value) VALUES('base_dir', ?)", baseAbs); err != nil {
		return fmt.Errorf("seeding base dir: %w", err)
	}

	s.cfg.BaseDir = baseAbs
	s.cfg.TargetDir = ""
	s.cfg.Instructions = ""

	if s.index != nil {
		if err := s.index.Reset(ctx); err != nil {
			return fmt.Errorf("resetting vector index: %w", err)
		}
		if _, err := s.db.ExecRetry(ctx,
			"INSERT OR REPLACE INTO config(key, value) VALUES('embedding_dim', ?)",
			fmt.Sprintf("%d", s.index.Dimensions())); err != nil {
			return fmt.Errorf("recording embedding dimension: %w", err)
		}
	}
	return nil
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// BaseDirAbs resolves the configured base directory to an OS path.
func (s *Store) BaseDirAbs(ctx context.Context) (string, error) {
	base, err := s.GetBaseDir(ctx)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(filepath.FromSlash(base)) {
		abs, err := filepath.Abs(filepath.FromSlash(base))
		if err != nil {
			return "", err
		}
		return abs, nil
	}
	return filepath.FromSlash(base), nil
}
