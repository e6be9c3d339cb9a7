package registry

import "strings"

// ProcessingSentinels are placeholder markers stored while a file
// analysis is in progress. A crash mid-analysis leaves one behind; on
// the next start ClearProcessingReports returns such files to pending.
var ProcessingSentinels = []string{"processing...", "processing.."}

// IsProcessingSentinel reports whether text is a recognized sentinel.
func IsProcessingSentinel(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, s := range ProcessingSentinels {
		if trimmed == s {
			return true
		}
	}
	return false
}

// FileRecord is one row of the files table.
type FileRecord struct {
	ID                int64  `json:"id"`
	PathRel           string `json:"path_rel"`
	FileReport        string `json:"file_report"`
	OrganizationNotes string `json:"organization_notes"`
	PlannerProcessed  bool   `json:"planner_processed"`
	PlannedDest       string `json:"planned_dest"`
	FinalDest         string `json:"final_dest"`
	Selected          bool   `json:"selected"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// InsertResult reports the outcome of an Insert call.
type InsertResult struct {
	ID      int64  `json:"id"`
	PathRel string `json:"path_rel"`
	Existed bool   `json:"existed"`
}

// SimilarResult is one ranked row of a similarity search, joining the
// index match with the full registry record.
type SimilarResult struct {
	FileRecord
	Distance float64 `json:"distance"`
	Score    float64 `json:"similarity_score"`
}

// ListFilter controls which files List returns.
type ListFilter struct {
	Query    string
	Page     int
	PageSize int
	OrderBy  string // path_rel | created_at | updated_at
	OrderDir string // asc | desc
}

// ListPage is one page of list results.
type ListPage struct {
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Total    int          `json:"total"`
	Rows     []FileRecord `json:"rows"`
}
