// Package keyword provides sparse lexical retrieval over stored chunks.
package keyword

import "context"

// Result is a single lexical search hit.
type Result struct {
	ChunkID string
	Score   float64
}

// Index runs lexical search scoped to one course.
type Index interface {
	Search(ctx context.Context, course, query string, k int) ([]*Result, error)
}
