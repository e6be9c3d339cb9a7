package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/foldermate/foldermate/internal/config"
	"github.com/foldermate/foldermate/internal/db"
	"github.com/foldermate/foldermate/internal/embeddings"
	"github.com/foldermate/foldermate/internal/registry"
	"github.com/foldermate/foldermate/internal/vectorindex"
)

// loadConfig loads and validates the config file named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel)), nil
	case config.ProviderOllama, "":
		return embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, cfg.EmbeddingBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// openStore wires config, database, embedder and vector index into a
// registry store. When the embedding provider is unreachable the store is
// opened without an index and similarity search is unavailable; everything
// else keeps working.
func openStore(ctx context.Context) (*registry.Store, *db.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	var index *vectorindex.Index
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	dims, err := embeddings.ProbeDimensions(ctx, embedder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: embedding provider unavailable (%v); similarity search disabled\n", err)
	} else {
		vectorDir := filepath.Join(filepath.Dir(cfg.DBPath), "vectordb")
		index, err = vectorindex.New(vectorDir, embedder, dims, cfg.Search.ScoreRound)
		if err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("opening vector index: %w", err)
		}
	}

	store, err := registry.New(database, index, cfg)
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	// Crash recovery: reports left mid-flight by a previous run go back to
	// the pending pool, and a changed embedding model triggers a rebuild.
	if cleared, err := store.ClearProcessingReports(ctx); err != nil {
		database.Close()
		return nil, nil, err
	} else if cleared > 0 {
		fmt.Fprintf(os.Stderr, "requeued %d report(s) left in a processing state\n", cleared)
	}
	if err := store.EnsureDimensions(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}

	return store, database, nil
}
