package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load reads configuration from the given JSON file, then overlays
// environment variable overrides (FOLDERMATE_*). If the file does not
// exist it is created with defaults, so a first run leaves a config
// document behind that the user can edit.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	} else {
		if err := k.Load(file.Provider(path), koanfjson.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	// Overlay environment variables: FOLDERMATE_BASE_DIR -> base_dir, etc.
	if err := k.Load(env.Provider("FOLDERMATE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "FOLDERMATE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// A db_path relative to the config file stays next to it.
	if cfg.DBPath != "" && !filepath.IsAbs(cfg.DBPath) {
		cfg.DBPath = filepath.Join(filepath.Dir(path), cfg.DBPath)
	}

	return cfg, nil
}

// Save writes the configuration to the given JSON file path. Runtime-only
// keys (target directory, instructions) are excluded by their json tags;
// they are persisted in the store's config table instead.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized embedding provider values.
var validProviders = map[ProviderType]bool{
	ProviderOllama: true,
	ProviderOpenAI: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir is required")
	}
	if c.EmbeddingProvider != "" && !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q: must be one of ollama, openai", c.EmbeddingProvider)
	}
	if c.Search.TopK < 0 {
		return fmt.Errorf("search.top_k must be non-negative")
	}
	if c.Search.ScoreRound < 0 {
		return fmt.Errorf("search.score_round must be non-negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range")
	}
	return nil
}

// NormalizeExtensions lowercases the given extensions, adds a leading dot
// where missing and drops blanks. A single comma-separated string is
// tolerated because the HTTP config endpoint accepts free-form values.
func NormalizeExtensions(values []string) map[string]bool {
	out := make(map[string]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			ext := strings.ToLower(strings.TrimSpace(part))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			out[ext] = true
		}
	}
	return out
}
