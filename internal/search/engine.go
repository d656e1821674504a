package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/narau/narau/internal/embedding"
	"github.com/narau/narau/internal/keyword"
	"github.com/narau/narau/internal/models"
	"github.com/narau/narau/internal/storage"
	"github.com/narau/narau/internal/vector"
)

// Options tunes retrieval.
type Options struct {
	TopK                int
	CandidateMultiplier int
	RRFK                int
}

// Engine retrieves chunks for a query by running dense and sparse searches
// concurrently and fusing their rankings.
type Engine struct {
	content  storage.ContentStore
	vectors  vector.Index
	keywords keyword.Index
	embedder embedding.Embedder
	opts     Options
	logger   *zap.Logger // optional
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for retrieval diagnostics.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a retrieval engine with the given dependencies.
func NewEngine(
	content storage.ContentStore,
	vectors vector.Index,
	keywords keyword.Index,
	embedder embedding.Embedder,
	opts Options,
	engineOpts ...EngineOption,
) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.CandidateMultiplier <= 0 {
		opts.CandidateMultiplier = 3
	}
	if opts.RRFK <= 0 {
		opts.RRFK = 60
	}
	e := &Engine{
		content:  content,
		vectors:  vectors,
		keywords: keywords,
		embedder: embedder,
		opts:     opts,
	}
	for _, opt := range engineOpts {
		opt(e)
	}
	return e
}

// Retrieve returns up to k chunks relevant to query within a course, ranked
// by fused score. k <= 0 falls back to the configured top-k. Both legs pull a
// candidate pool larger than k so fusion has positions to work with; either
// leg failing fails the whole retrieval rather than silently degrading to a
// single-mode ranking.
func (e *Engine) Retrieve(ctx context.Context, course, query string, k int) ([]*models.ScoredChunk, error) {
	if !models.ValidCourseName(course) {
		return nil, fmt.Errorf("%w: invalid course name %q", models.ErrInvalidInput, course)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", models.ErrInvalidInput)
	}
	if k <= 0 {
		k = e.opts.TopK
	}
	candidates := k * e.opts.CandidateMultiplier

	var (
		denseResults  []*vector.Result
		sparseResults []*keyword.Result
		errChan       = make(chan error, 2)
		wg            sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		queryEmbedding, err := e.embedder.Embed(ctx, query)
		if err != nil {
			errChan <- fmt.Errorf("embed query: %w", err)
			return
		}
		results, err := e.vectors.Search(ctx, course, queryEmbedding, candidates)
		if err != nil {
			errChan <- fmt.Errorf("dense search: %w", err)
			return
		}
		denseResults = results
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		results, err := e.keywords.Search(ctx, course, query, candidates)
		if err != nil {
			errChan <- fmt.Errorf("sparse search: %w", err)
			return
		}
		sparseResults = results
	}()

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := fuseRRF(denseResults, sparseResults, e.opts.RRFK)
	if len(fused) > k {
		fused = fused[:k]
	}

	out := make([]*models.ScoredChunk, 0, len(fused))
	for _, h := range fused {
		chunk, err := e.content.GetChunk(ctx, h.ChunkID)
		if err != nil {
			// a chunk deleted between search and resolve is skipped
			if errors.Is(err, models.ErrNotFound) {
				if e.logger != nil {
					e.logger.Debug("fused chunk vanished before resolve", zap.String("chunk", h.ChunkID))
				}
				continue
			}
			return nil, fmt.Errorf("resolve chunk %s: %w", h.ChunkID, err)
		}
		out = append(out, &models.ScoredChunk{Chunk: chunk, Score: h.Score})
	}

	if e.logger != nil {
		e.logger.Debug("retrieval complete",
			zap.String("course", course),
			zap.Int("dense", len(denseResults)),
			zap.Int("sparse", len(sparseResults)),
			zap.Int("returned", len(out)))
	}
	return out, nil
}
