// Package vector provides the per-course embedding index and similarity search.
package vector

import "context"

// Entry is one chunk's vector plus the file-name tag used for deletion filtering.
type Entry struct {
	ChunkID  string
	FileName string
	Vector   []float32
}

// Result is a single vector search hit.
type Result struct {
	ChunkID string
	Score   float64 // inner product; equals cosine similarity for normalized vectors
}

// Index defines per-course vector storage and similarity search.
type Index interface {
	Add(ctx context.Context, course string, entries []*Entry) error
	Search(ctx context.Context, course string, query []float32, k int) ([]*Result, error)
	RemoveByFile(ctx context.Context, course, fileName string) error
	DropCourse(ctx context.Context, course string) error
	Count(course string) int
	Save(path string) error
	Close() error
}
