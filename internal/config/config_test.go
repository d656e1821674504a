package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "test.db") {
		t.Errorf("database_path should be relative to config dir, got %s", cfg.Storage.DatabasePath)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.Search.ChunkSize != 512 {
		t.Errorf("chunk_size default should be 512, got %d", cfg.Search.ChunkSize)
	}
	if cfg.Search.ChunkOverlap != 10 {
		t.Errorf("chunk_overlap default should be 10, got %d", cfg.Search.ChunkOverlap)
	}
	if cfg.Search.RRFK != 60 {
		t.Errorf("rrf_k default should be 60, got %d", cfg.Search.RRFK)
	}
	if cfg.Search.HistoryWindow != 10 {
		t.Errorf("history_window default should be 10, got %d", cfg.Search.HistoryWindow)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("embedding provider default should be openai, got %s", cfg.Embedding.Provider)
	}
	if cfg.Generation.Model == "" {
		t.Error("generation model default should be set")
	}
}

func TestApplyDefaults_keepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Search.TopK = 8
	cfg.Embedding.Provider = "mock"
	ApplyDefaults(&cfg)
	if cfg.Search.TopK != 8 {
		t.Errorf("explicit top_k should be kept, got %d", cfg.Search.TopK)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("explicit provider should be kept, got %s", cfg.Embedding.Provider)
	}
}
