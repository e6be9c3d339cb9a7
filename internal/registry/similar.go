package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/foldermate/foldermate/internal/vectorindex"
)

// FindSimilarReports embeds the stored report of the given path and
// returns the top-k most similar files, closest first, joined with their
// full registry records.
func (s *Store) FindSimilarReports(ctx context.Context, pathFromBase string, topK int) ([]SimilarResult, error) {
	if s.index == nil {
		return nil, fmt.Errorf("vector index unavailable")
	}

	pathRel := NormalizeRel(pathFromBase)
	rec, err := s.GetByPath(ctx, pathRel)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.FileReport) == "" {
		return nil, invalidf("file report is empty for: %s", pathRel)
	}

	vec, err := s.index.EmbedText(ctx, rec.FileReport)
	if err != nil {
		return nil, fmt.Errorf("embedding query report: %w", err)
	}

	if topK <= 0 {
		topK = s.cfg.Search.TopK
	}
	matches, err := s.index.Query(ctx, vectorindex.KindReport, vec, topK)
	if err != nil {
		return nil, err
	}

	results := make([]SimilarResult, 0, len(matches))
	for _, m := range matches {
		row, err := s.GetByID(ctx, m.FileID)
		if err != nil {
			// The index can briefly trail the registry; skip orphans.
			continue
		}
		results = append(results, SimilarResult{
			FileRecord: row,
			Distance:   m.Distance,
			Score:      m.Score,
		})
	}
	return results, nil
}
