package embedding

import (
	"context"
	"testing"
)

func TestCache_GetSet(t *testing.T) {
	c := NewCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

func TestCache_LRUOrdering(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a") // a becomes most recent
	c.Set("c", []float32{3})
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain after recent use")
	}
}

// countingEmbedder wraps MockEmbedder and counts calls to the backend.
type countingEmbedder struct {
	*MockEmbedder
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return e.MockEmbedder.Embed(ctx, text)
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls += len(texts)
	return e.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := e.Embed(ctx, "office hours")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := e.Embed(ctx, "office hours")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 backend call, got %d", inner.calls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached embedding differs from original")
		}
	}

	embs, err := e.EmbedBatch(ctx, []string{"office hours", "grading policy"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(embs) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embs))
	}
	// only the unseen text hits the backend
	if inner.calls != 2 {
		t.Errorf("expected 2 backend calls, got %d", inner.calls)
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, err := e.Embed(ctx, "syllabus")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(ctx, "syllabus")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 dimensions, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text produced different embeddings")
		}
	}
	c, err := e.Embed(ctx, "midterm")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}
