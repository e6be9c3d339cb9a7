package config

// DefaultAllowedExtensions lists the file types the pipeline will track.
// Anything else is rejected at insert time.
var DefaultAllowedExtensions = []string{
	".txt", ".md", ".rst",
	".json", ".csv", ".yaml", ".yml", ".ini", ".toml",
	".docx", ".xlsx", ".pptx", ".pdf",
	".html", ".xhtml", ".htm",
	".webvtt", ".vtt",
	".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp", ".webp",
}

// DefaultExcludes are glob patterns skipped during discovery scans.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	"vendor/**",
	"__pycache__/**",
	".foldermate/**",
	"dist/**",
	"build/**",
	".venv/**",
	".DS_Store",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DBPath:            "organizer.sqlite",
		BaseDir:           ".",
		CacheDir:          ".foldermate/cache",
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    "nomic-embed-text",
		AllowedExtensions: DefaultAllowedExtensions,
		Recursive:         true,
		Include:           []string{"**"},
		Exclude:           DefaultExcludes,
		Search: SearchConfig{
			TopK:       10,
			ScoreRound: 4,
		},
		Server: ServerConfig{
			Port: 8000,
		},
	}
}
