// Package main is the Narau server entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/narau/narau/internal/answer"
	"github.com/narau/narau/internal/config"
	"github.com/narau/narau/internal/embedding"
	"github.com/narau/narau/internal/extract"
	"github.com/narau/narau/internal/ingest"
	"github.com/narau/narau/internal/keyword"
	"github.com/narau/narau/internal/memory"
	"github.com/narau/narau/internal/search"
	"github.com/narau/narau/internal/server"
	"github.com/narau/narau/internal/social"
	"github.com/narau/narau/internal/splitter"
	"github.com/narau/narau/internal/storage"
	"github.com/narau/narau/internal/vector"
	"github.com/narau/narau/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/narau/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "config file path")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("narau version %s\n", version)
		return
	}

	// .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", *configPath),
		zap.Bool("debug", debugMode),
	)

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()

	vectorIndex, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions, cfg.Storage.VectorIndexPath)
	if err != nil {
		logger.Fatal("Failed to open vector index", zap.Error(err))
	}

	ctx := context.Background()
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	defer embedder.Close()

	generator, err := answer.NewGeminiGenerator(ctx, answer.GeminiConfig{
		APIKeyEnv: cfg.Generation.APIKeyEnv,
		Model:     cfg.Generation.Model,
	})
	if err != nil {
		logger.Fatal("Failed to create generator", zap.Error(err))
	}
	defer generator.Close()

	var socialClient *social.Client
	if cfg.Social.PageID != "" {
		socialClient, err = social.NewClient(social.Config{
			PageID:         cfg.Social.PageID,
			AccessTokenEnv: cfg.Social.AccessTokenEnv,
		})
		if err != nil {
			logger.Fatal("Failed to create facebook client", zap.Error(err))
		}
	}

	split := splitter.New(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap)
	pipeline := ingest.NewPipeline(split, store, store, vectorIndex, embedder, ingest.WithLogger(logger))
	engine := search.NewEngine(store, vectorIndex, keyword.NewLexicalIndex(store), embedder, search.Options{
		TopK:                cfg.Search.TopK,
		CandidateMultiplier: cfg.Search.CandidateMultiplier,
		RRFK:                cfg.Search.RRFK,
	}, search.WithLogger(logger))
	mem := memory.New(store, cfg.Search.HistoryWindow)
	orchestrator := answer.New(store, engine, mem, generator, cfg.Search.AnswerWordLimit, answer.WithLogger(logger))

	srv := server.NewServer(pipeline, engine, orchestrator, mem, store, extract.NewExtractor(), socialClient, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.VectorIndexPath != "" {
		if err := vectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed", zap.Error(err))
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// newEmbedder builds the configured embedding backend wrapped in an LRU cache.
func newEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	var (
		inner embedding.Embedder
		err   error
	)
	switch cfg.Embedding.Provider {
	case "openai":
		inner, err = embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKeyEnv:  cfg.Embedding.APIKeyEnv,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		})
	case "gemini":
		inner, err = embedding.NewGeminiEmbedder(ctx, embedding.GeminiConfig{
			APIKeyEnv:  cfg.Embedding.APIKeyEnv,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	case "mock":
		inner = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, err
	}
	return embedding.NewCachedEmbedder(inner, cfg.Embedding.CacheSize), nil
}
