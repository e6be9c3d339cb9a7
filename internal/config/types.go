package config

// ProviderType identifies an embedding provider.
type ProviderType string

const (
	ProviderOllama ProviderType = "ollama"
	ProviderOpenAI ProviderType = "openai"
)

// SearchConfig controls similarity search behaviour.
type SearchConfig struct {
	TopK       int `json:"top_k" koanf:"top_k"`
	ScoreRound int `json:"score_round" koanf:"score_round"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `json:"port" koanf:"port"`
	AllowAll bool `json:"allow_all" koanf:"allow_all"`
}

// Config is the top-level foldermate configuration, corresponding to
// organizer.config.json. TargetDir and Instructions are runtime-only:
// they live in the store's config table and are never written back to
// the config file, which is why they carry a "-" json tag.
type Config struct {
	DBPath            string       `json:"db_path" koanf:"db_path"`
	BaseDir           string       `json:"base_dir" koanf:"base_dir"`
	TargetDir         string       `json:"-" koanf:"target_dir"`
	Instructions      string       `json:"-" koanf:"instructions"`
	CacheDir          string       `json:"cache_dir" koanf:"cache_dir"`
	EmbeddingProvider ProviderType `json:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `json:"embedding_model" koanf:"embedding_model"`
	EmbeddingBaseURL  string       `json:"embedding_base_url" koanf:"embedding_base_url"`
	AllowedExtensions []string     `json:"allowed_extensions" koanf:"allowed_extensions"`
	Include           []string     `json:"include" koanf:"include"`
	Exclude           []string     `json:"exclude" koanf:"exclude"`
	DontDelete        bool         `json:"dont_delete" koanf:"dont_delete"`
	Recursive         bool         `json:"recursive" koanf:"recursive"`
	Search            SearchConfig `json:"search" koanf:"search"`
	Server            ServerConfig `json:"server" koanf:"server"`
}
