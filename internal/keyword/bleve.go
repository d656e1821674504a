package keyword

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/narau/narau/internal/storage"
)

// chunkDoc is the shape indexed per chunk.
type chunkDoc struct {
	Content string `json:"content"`
}

// LexicalIndex implements Index with Bleve over the content store. The index
// is built in memory per search from the course's stored chunks, so it never
// drifts from the store and needs no invalidation on ingest or delete.
// Course corpora are small enough that the rebuild stays cheap.
type LexicalIndex struct {
	content storage.ContentStore
}

// NewLexicalIndex creates a lexical index reading chunks from content.
func NewLexicalIndex(content storage.ContentStore) *LexicalIndex {
	return &LexicalIndex{content: content}
}

// Search builds a memory-only Bleve index from the course's chunks and runs
// a match query over their content. An empty course yields no results.
func (l *LexicalIndex) Search(ctx context.Context, course, query string, k int) ([]*Result, error) {
	if k <= 0 {
		return nil, nil
	}
	chunks, err := l.content.ChunksByCourse(ctx, course)
	if err != nil {
		return nil, fmt.Errorf("load course chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	index, err := newMemIndex()
	if err != nil {
		return nil, err
	}
	defer index.Close()

	batch := index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, chunkDoc{Content: c.Content}); err != nil {
			return nil, fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("index course chunks: %w", err)
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = k
	results, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ChunkID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// newMemIndex builds an in-memory index with the standard analyzer, which
// lowercases and tokenizes without stemming so query words match exactly.
func newMemIndex() (bleve.Index, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("create memory index: %w", err)
	}
	return index, nil
}
