package vectorindex

import (
	"context"
	"fmt"
	"math"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/foldermate/foldermate/internal/embeddings"
)

// Kind selects which of the two indices an operation targets.
type Kind string

const (
	// KindReport indexes per-file analysis reports.
	KindReport Kind = "file_reports"
	// KindNotes indexes the merged organization notes journal.
	KindNotes Kind = "org_notes"
)

// Kinds lists every index kind.
var Kinds = []Kind{KindReport, KindNotes}

// Match is one ranked result of a nearest-neighbour query.
type Match struct {
	FileID   int64
	PathRel  string
	Distance float64
	Score    float64
}

// Index is an embedded nearest-neighbour index over fixed-length float
// vectors, keyed by file id, with one collection per Kind.
type Index struct {
	db          *chromem.DB
	collections map[Kind]*chromem.Collection
	embedder    embeddings.Embedder
	embedFunc   chromem.EmbeddingFunc
	dimensions  int
	scoreRound  int
}

// New creates an Index persisted under persistDir. An empty persistDir
// yields an in-memory index (useful for testing). dimensions is the probe
// dimension D; every stored vector must have exactly that length.
func New(persistDir string, embedder embeddings.Embedder, dimensions, scoreRound int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("vectorindex: dimensions must be positive, got %d", dimensions)
	}

	var (
		db  *chromem.DB
		err error
	)
	if persistDir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(persistDir, true)
		if err != nil {
			return nil, fmt.Errorf("vectorindex: open persistent db: %w", err)
		}
	}

	ix := &Index{
		db:          db,
		collections: make(map[Kind]*chromem.Collection, len(Kinds)),
		embedder:    embedder,
		embedFunc:   embeddings.ToChromemFunc(embedder),
		dimensions:  dimensions,
		scoreRound:  scoreRound,
	}
	for _, kind := range Kinds {
		col, err := db.GetOrCreateCollection(string(kind), nil, ix.embedFunc)
		if err != nil {
			return nil, fmt.Errorf("vectorindex: create collection %s: %w", kind, err)
		}
		ix.collections[kind] = col
	}
	return ix, nil
}

// Dimensions returns the configured embedding dimension D.
func (ix *Index) Dimensions() int { return ix.dimensions }

// EmbedText embeds a document text via the external embedding collaborator
// and validates the result against the configured dimension.
func (ix *Index) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vec, err := embeddings.EmbedPassage(ctx, ix.embedder, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != ix.dimensions {
		return nil, fmt.Errorf("vectorindex: embedder produced %d dimensions, index expects %d", len(vec), ix.dimensions)
	}
	return vec, nil
}

// Upsert inserts or replaces the vector for (kind, fileID). The relative
// path is denormalized into the entry for fast result assembly.
func (ix *Index) Upsert(ctx context.Context, kind Kind, fileID int64, vector []float32, pathRel string) error {
	if len(vector) != ix.dimensions {
		return fmt.Errorf("vectorindex: vector has %d dimensions, index expects %d", len(vector), ix.dimensions)
	}
	col, err := ix.collection(kind)
	if err != nil {
		return err
	}
	doc := chromem.Document{
		ID:        strconv.FormatInt(fileID, 10),
		Metadata:  map[string]string{"path_rel": pathRel},
		Embedding: vector,
		Content:   pathRel,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("vectorindex: upsert %s/%d: %w", kind, fileID, err)
	}
	return nil
}

// Delete removes the entry for (kind, fileID). Deleting a missing entry is
// not an error.
func (ix *Index) Delete(ctx context.Context, kind Kind, fileID int64) error {
	col, err := ix.collection(kind)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, strconv.FormatInt(fileID, 10)); err != nil {
		return fmt.Errorf("vectorindex: delete %s/%d: %w", kind, fileID, err)
	}
	return nil
}

// Query returns the k nearest entries to the given vector by cosine
// distance, closest first. The similarity score is derived as
// clamp(1 - distance/2, 0, 1) and rounded to the configured precision.
func (ix *Index) Query(ctx context.Context, kind Kind, vector []float32, k int) ([]Match, error) {
	if len(vector) != ix.dimensions {
		return nil, fmt.Errorf("vectorindex: query vector has %d dimensions, index expects %d", len(vector), ix.dimensions)
	}
	col, err := ix.collection(kind)
	if err != nil {
		return nil, err
	}

	if k <= 0 {
		k = 10
	}
	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query %s: %w", kind, err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		distance := 1 - float64(r.Similarity)
		matches = append(matches, Match{
			FileID:   id,
			PathRel:  r.Metadata["path_rel"],
			Distance: round(distance, ix.scoreRound),
			Score:    round(clamp01(1-distance/2), ix.scoreRound),
		})
	}
	return matches, nil
}

// Count returns the number of entries indexed under kind.
func (ix *Index) Count(kind Kind) int {
	col, err := ix.collection(kind)
	if err != nil {
		return 0
	}
	return col.Count()
}

// Reset drops and recreates both collections. Callers re-embed records
// afterwards; this is the physical half of a dimension migration.
func (ix *Index) Reset(ctx context.Context) error {
	for _, kind := range Kinds {
		if err := ix.db.DeleteCollection(string(kind)); err != nil {
			return fmt.Errorf("vectorindex: drop collection %s: %w", kind, err)
		}
		col, err := ix.db.GetOrCreateCollection(string(kind), nil, ix.embedFunc)
		if err != nil {
			return fmt.Errorf("vectorindex: recreate collection %s: %w", kind, err)
		}
		ix.collections[kind] = col
	}
	return nil
}

func (ix *Index) collection(kind Kind) (*chromem.Collection, error) {
	col, ok := ix.collections[kind]
	if !ok {
		return nil, fmt.Errorf("vectorindex: unknown kind %q", kind)
	}
	return col, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round(v float64, places int) float64 {
	factor := math.Pow10(places)
	return math.Round(v*factor) / factor
}
