package embeddings

import (
	"context"
	"fmt"
	"strings"
)

// PassagePrefix is prepended to every document text before embedding. It
// disambiguates stored passages from potential query-style prefixes the
// model family may support later.
const PassagePrefix = "passage: "

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// EmbedPassage embeds a single document text with the passage prefix
// applied. The text must be non-empty.
func EmbedPassage(ctx context.Context, e Embedder, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed: text is empty")
	}
	results, err := e.Embed(ctx, []string{PassagePrefix + text})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || len(results[0]) == 0 {
		return nil, fmt.Errorf("embedder %s returned no vector", e.Name())
	}
	return results[0], nil
}

// ProbeDimensions determines the model's output dimension by embedding a
// probe string. The result is fixed for the life of the process.
func ProbeDimensions(ctx context.Context, e Embedder) (int, error) {
	vec, err := EmbedPassage(ctx, e, "probe")
	if err != nil {
		return 0, fmt.Errorf("probing embedding dimension: %w", err)
	}
	return len(vec), nil
}
