// Package relocation moves files from the base directory into their
// planned destinations under the target root, recording a terminal
// outcome on every attempted record.
package relocation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/foldermate/foldermate/internal/progress"
	"github.com/foldermate/foldermate/internal/registry"
)

// Status classifies the outcome of one relocation attempt.
type Status string

const (
	StatusMoved  Status = "moved"
	StatusCopied Status = "copied" // source kept (dont_delete)
	StatusFailed Status = "failed"
)

// Error markers persisted into the final-destination field. They keep a
// failed record in a terminal, inspectable state instead of leaving it
// forever "in progress". The driving query excludes any record whose
// final destination is set, markers included, so re-runs are safe.
const (
	markerEscape        = "[error: planned destination escapes target directory]"
	markerInvalidDest   = "[error: invalid planned destination]"
	markerMissingSource = "[error: source file not found]"
)

// Outcome reports what happened to one file during a pass.
type Outcome struct {
	RunID       string `json:"run_id"`
	PathRel     string `json:"path_rel"`
	PlannedDest string `json:"planned_dest"`
	FinalDest   string `json:"final_dest"`
	Status      Status `json:"status"`
	Error       string `json:"error,omitempty"`
}

// Engine drives relocation passes against a registry store.
type Engine struct {
	store    *registry.Store
	reporter progress.Reporter
}

// New creates an Engine. reporter may be nil.
func New(store *registry.Store, reporter progress.Reporter) *Engine {
	return &Engine{store: store, reporter: reporter}
}

// Run processes every record with a planned destination and no final
// destination. The pass is not transactional across files: each record
// ends in a terminal state (destination path or error marker) as it is
// processed, and a crash mid-batch leaves finished files finished and
// the rest still eligible for the next run.
func (e *Engine) Run(ctx context.Context) ([]Outcome, error) {
	cfg := e.store.Config()
	if strings.TrimSpace(cfg.TargetDir) == "" {
		return nil, fmt.Errorf("target directory not configured")
	}
	targetAbs, err := filepath.Abs(filepath.FromSlash(cfg.TargetDir))
	if err != nil {
		return nil, fmt.Errorf("resolving target directory: %w", err)
	}
	baseAbs, err := e.store.BaseDirAbs(ctx)
	if err != nil {
		return nil, err
	}

	total, err := e.store.CountMissingFinalDest(ctx)
	if err != nil {
		return nil, err
	}
	if e.reporter != nil {
		e.reporter.Start(total)
		defer e.reporter.Finish()
	}

	runID := uuid.New().String()
	var outcomes []Outcome
	for {
		pathRel, ok, err := e.store.NextPathMissingFinalDest(ctx)
		if err != nil {
			return outcomes, err
		}
		if !ok {
			break
		}

		outcome := e.relocateOne(ctx, runID, baseAbs, targetAbs, pathRel)
		outcomes = append(outcomes, outcome)

		// The outcome write changes the driving predicate; if it failed
		// the same path would come back forever, so stop the pass.
		if err := e.store.SetFinalDestination(ctx, pathRel, outcome.FinalDest); err != nil {
			return outcomes, fmt.Errorf("recording outcome for %s: %w", pathRel, err)
		}
		if e.reporter != nil {
			e.reporter.Update(len(outcomes), pathRel)
		}
	}
	return outcomes, nil
}

func (e *Engine) relocateOne(ctx context.Context, runID, baseAbs, targetAbs, pathRel string) Outcome {
	out := Outcome{RunID: runID, PathRel: pathRel, Status: StatusFailed}

	rec, err := e.store.GetByPath(ctx, pathRel)
	if err != nil {
		out.FinalDest = fmt.Sprintf("[error: %v]", err)
		out.Error = err.Error()
		return out
	}
	out.PlannedDest = rec.PlannedDest

	// A planner failure can leave its own error marker in the planned
	// destination; that is not a path and must never be resolved as one.
	if strings.HasPrefix(strings.TrimSpace(rec.PlannedDest), "[error") {
		out.FinalDest = markerInvalidDest
		out.Error = "planned destination is an error marker"
		return out
	}

	destAbs, ok := resolveWithin(targetAbs, rec.PlannedDest)
	if !ok {
		out.FinalDest = markerEscape
		out.Error = "planned destination escapes target directory"
		return out
	}

	source := filepath.Join(baseAbs, filepath.FromSlash(pathRel))
	if _, err := os.Stat(source); err != nil {
		out.FinalDest = markerMissingSource
		out.Error = fmt.Sprintf("source missing: %v", err)
		return out
	}

	if err := os.MkdirAll(filepath.Dir(destAbs), 0o755); err != nil {
		out.FinalDest = fmt.Sprintf("[error: creating destination directory: %v]", err)
		out.Error = err.Error()
		return out
	}
	if err := copyFile(source, destAbs); err != nil {
		out.FinalDest = fmt.Sprintf("[error: copy failed: %v]", err)
		out.Error = err.Error()
		return out
	}
	// Only remove the original once the copy verifiably exists.
	if _, err := os.Stat(destAbs); err != nil {
		out.FinalDest = fmt.Sprintf("[error: destination missing after copy: %v]", err)
		out.Error = err.Error()
		return out
	}

	out.Status = StatusCopied
	if !e.store.Config().DontDelete {
		if err := os.Remove(source); err != nil {
			out.FinalDest = fmt.Sprintf("[error: removing source: %v]", err)
			out.Error = err.Error()
			out.Status = StatusFailed
			return out
		}
		out.Status = StatusMoved
	}

	out.FinalDest = filepath.ToSlash(destAbs)
	return out
}

// resolveWithin joins a relative planned destination onto the target root
// and verifies containment: an absolute path or one that traverses above
// the root is rejected.
func resolveWithin(targetAbs, plannedDest string) (string, bool) {
	planned := filepath.FromSlash(strings.ReplaceAll(plannedDest, "\\", "/"))
	if filepath.IsAbs(planned) {
		return "", false
	}
	destAbs := filepath.Join(targetAbs, planned)
	rel, err := filepath.Rel(targetAbs, destAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return destAbs, true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy contents: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("flush destination: %w", err)
	}
	return nil
}
