package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "organizer.config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
	if cfg.EmbeddingProvider != ProviderOllama {
		t.Errorf("default provider: got %q", cfg.EmbeddingProvider)
	}
	if cfg.Search.TopK != 10 || cfg.Search.ScoreRound != 4 {
		t.Errorf("default search config: %+v", cfg.Search)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	// A relative db_path is anchored next to the config file.
	if cfg.DBPath != filepath.Join(dir, "organizer.sqlite") {
		t.Errorf("db path: got %q", cfg.DBPath)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "organizer.config.json")

	cfg := DefaultConfig()
	cfg.BaseDir = "/data/inbox"
	cfg.DontDelete = true
	cfg.Search.TopK = 25
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.BaseDir != "/data/inbox" {
		t.Errorf("base dir: got %q", loaded.BaseDir)
	}
	if !loaded.DontDelete {
		t.Error("dont_delete lost")
	}
	if loaded.Search.TopK != 25 {
		t.Errorf("top_k: got %d", loaded.Search.TopK)
	}
}

func TestRuntimeKeysNotWrittenToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "organizer.config.json")

	cfg := DefaultConfig()
	cfg.TargetDir = "/data/organized"
	cfg.Instructions = "group by year"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if strings.Contains(string(data), "organized") || strings.Contains(string(data), "group by year") {
		t.Errorf("runtime-only values leaked into the file: %s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.TargetDir != "" || loaded.Instructions != "" {
		t.Errorf("runtime keys populated from file: %q %q", loaded.TargetDir, loaded.Instructions)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.EmbeddingProvider = "carrier-pigeon"
	if err := bad.Validate(); err == nil {
		t.Error("unknown provider accepted")
	}

	bad = DefaultConfig()
	bad.Server.Port = 70000
	if err := bad.Validate(); err == nil {
		t.Error("out-of-range port accepted")
	}

	bad = DefaultConfig()
	bad.DBPath = ""
	if err := bad.Validate(); err == nil {
		t.Error("empty db_path accepted")
	}
}

func TestNormalizeExtensions(t *testing.T) {
	got := NormalizeExtensions([]string{"TXT", ".Md", "pdf, docx", " ", ""})
	want := []string{".txt", ".md", ".pdf", ".docx"}
	if len(got) != len(want) {
		t.Fatalf("normalized set: got %v", got)
	}
	for _, ext := range want {
		if !got[ext] {
			t.Errorf("missing %s in %v", ext, got)
		}
	}
}
