// Package config provides configuration loading and structs for the narau server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Social     SocialConfig     `yaml:"social"`
	Search     SearchConfig     `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and the vector index snapshot.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// EmbeddingConfig holds embedding provider settings. API keys are read from
// the environment variable named by APIKeyEnv, never from the config file.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "openai", "gemini", or "mock"
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	CacheSize      int    `yaml:"cache_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// GenerationConfig holds answer generation settings.
type GenerationConfig struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// SocialConfig holds Facebook page ingestion settings. Ingestion from the
// page is disabled when PageID is empty.
type SocialConfig struct {
	PageID         string `yaml:"page_id"`
	AccessTokenEnv string `yaml:"access_token_env"`
}

// SearchConfig holds retrieval, chunking, and conversation settings.
type SearchConfig struct {
	TopK                int `yaml:"top_k"`
	CandidateMultiplier int `yaml:"candidate_multiplier"`
	RRFK                int `yaml:"rrf_k"`
	HistoryWindow       int `yaml:"history_window"`
	ChunkSize           int `yaml:"chunk_size"`
	ChunkOverlap        int `yaml:"chunk_overlap"`
	AnswerWordLimit     int `yaml:"answer_word_limit"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
