// Package ingest writes course material into the content store, vector index,
// and file registry, and removes it again with cascading cleanup.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/narau/narau/internal/embedding"
	"github.com/narau/narau/internal/models"
	"github.com/narau/narau/internal/splitter"
	"github.com/narau/narau/internal/storage"
	"github.com/narau/narau/internal/vector"
)

// Pipeline ingests documents into the knowledge base. Writes are ordered so
// the registry entry lands last; a file is only discoverable once its chunks
// and vectors are fully in place.
type Pipeline struct {
	splitter *splitter.Splitter
	content  storage.ContentStore
	registry storage.FileRegistry
	vectors  vector.Index
	embedder embedding.Embedder
	logger   *zap.Logger // optional; when set, logs ingest and delete events
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for ingest and delete events.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates an ingest pipeline with the given dependencies.
func NewPipeline(
	split *splitter.Splitter,
	content storage.ContentStore,
	registry storage.FileRegistry,
	vectors vector.Index,
	embedder embedding.Embedder,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		splitter: split,
		content:  content,
		registry: registry,
		vectors:  vectors,
		embedder: embedder,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest splits text into chunks, embeds them, and registers the file under
// the course. A file name already registered for the course is rejected with
// ErrConflict; text that yields no chunks is rejected with ErrInvalidInput.
func (p *Pipeline) Ingest(ctx context.Context, course, fileName, text, topic string) (int, error) {
	if !models.ValidCourseName(course) {
		return 0, fmt.Errorf("%w: invalid course name %q", models.ErrInvalidInput, course)
	}
	if fileName == "" {
		return 0, fmt.Errorf("%w: empty file name", models.ErrInvalidInput)
	}
	exists, err := p.registry.HasFile(ctx, course, fileName)
	if err != nil {
		return 0, fmt.Errorf("check registry: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("%w: file %q already ingested for course %q", models.ErrConflict, fileName, course)
	}

	chunks := p.splitter.Split(course, fileName, text, topic)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: no extractable text", models.ErrInvalidInput)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	entries := make([]*vector.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = &vector.Entry{ChunkID: c.ID, FileName: fileName, Vector: vectors[i]}
	}
	if err := p.vectors.Add(ctx, course, entries); err != nil {
		return 0, fmt.Errorf("index vectors: %w", err)
	}
	if err := p.content.AddChunks(ctx, chunks); err != nil {
		// roll the vectors back so the partitions stay consistent
		if rbErr := p.vectors.RemoveByFile(ctx, course, fileName); rbErr != nil && p.logger != nil {
			p.logger.Warn("vector rollback failed",
				zap.String("course", course),
				zap.String("file", fileName),
				zap.Error(rbErr))
		}
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	if err := p.registry.AddFile(ctx, course, fileName); err != nil {
		// unwind both partitions so a failed registration leaves no orphans
		if rbErr := p.content.DeleteByFile(ctx, course, fileName); rbErr != nil && p.logger != nil {
			p.logger.Warn("chunk rollback failed",
				zap.String("course", course),
				zap.String("file", fileName),
				zap.Error(rbErr))
		}
		if rbErr := p.vectors.RemoveByFile(ctx, course, fileName); rbErr != nil && p.logger != nil {
			p.logger.Warn("vector rollback failed",
				zap.String("course", course),
				zap.String("file", fileName),
				zap.Error(rbErr))
		}
		return 0, fmt.Errorf("register file: %w", err)
	}

	if p.logger != nil {
		p.logger.Info("file ingested",
			zap.String("course", course),
			zap.String("file", fileName),
			zap.Int("chunks", len(chunks)))
	}
	return len(chunks), nil
}
