// Package walker discovers files under the base directory and enqueues
// them into the registry.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/foldermate/foldermate/internal/progress"
	"github.com/foldermate/foldermate/internal/registry"
)

// ScanResult summarizes one discovery pass.
type ScanResult struct {
	Inserted int `json:"inserted"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"` // disallowed extension or filtered out
}

// Scan walks the store's base directory and inserts every allowed file.
// Files with disallowed extensions or matching exclude patterns are
// counted as skipped, not errors. reporter may be nil.
func Scan(ctx context.Context, store *registry.Store, reporter progress.Reporter) (ScanResult, error) {
	baseAbs, err := store.BaseDirAbs(ctx)
	if err != nil {
		return ScanResult{}, err
	}

	cfg := store.Config()

	// Collect candidates first so progress has a total.
	var candidates []string
	err = filepath.WalkDir(baseAbs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip entries we cannot read instead of aborting.
			return nil
		}
		if d.IsDir() {
			if path == baseAbs {
				return nil
			}
			if !cfg.Recursive || shouldExcludeDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		relPath, err := filepath.Rel(baseAbs, path)
		if err != nil {
			return nil
		}
		candidates = append(candidates, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return ScanResult{}, fmt.Errorf("walking %s: %w", baseAbs, err)
	}

	if reporter != nil {
		reporter.Start(len(candidates))
		defer reporter.Finish()
	}

	var result ScanResult
	for i, relPath := range candidates {
		if reporter != nil {
			reporter.Update(i+1, relPath)
		}
		if !MatchesInclude(relPath, cfg.Include) || MatchesExclude(relPath, cfg.Exclude) {
			result.Skipped++
			continue
		}
		res, err := store.Insert(ctx, relPath)
		if errors.Is(err, registry.ErrInvalidArgument) {
			result.Skipped++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("inserting %s: %w", relPath, err)
		}
		if res.Existed {
			result.Existing++
		} else {
			result.Inserted++
		}
	}
	return result, nil
}
