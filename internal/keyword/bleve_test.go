package keyword

import (
	"context"
	"testing"

	"github.com/narau/narau/internal/models"
)

// fakeContentStore serves a fixed chunk set per course.
type fakeContentStore struct {
	chunks map[string][]*models.Chunk
}

func (s *fakeContentStore) AddChunks(ctx context.Context, chunks []*models.Chunk) error { return nil }
func (s *fakeContentStore) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	return nil, models.ErrNotFound
}
func (s *fakeContentStore) ChunksByCourse(ctx context.Context, course string) ([]*models.Chunk, error) {
	return s.chunks[course], nil
}
func (s *fakeContentStore) ChunksByFile(ctx context.Context, course, fileName string) ([]*models.Chunk, error) {
	return nil, nil
}
func (s *fakeContentStore) DeleteByFile(ctx context.Context, course, fileName string) error {
	return nil
}
func (s *fakeContentStore) DropCourse(ctx context.Context, course string) error { return nil }
func (s *fakeContentStore) CountChunks(ctx context.Context, course string) (int64, error) {
	return int64(len(s.chunks[course])), nil
}

func testStore() *fakeContentStore {
	return &fakeContentStore{chunks: map[string][]*models.Chunk{
		"cs101": {
			{ID: "cs101/syllabus#0000", Content: "Office hours are Tuesdays at noon in room 204."},
			{ID: "cs101/syllabus#0001", Content: "The final exam covers sorting and graph algorithms."},
			{ID: "cs101/notes#0000", Content: "Dijkstra's algorithm finds shortest paths in weighted graphs."},
		},
		"bio150": {
			{ID: "bio150/lab#0000", Content: "Office safety rules apply to all lab sessions."},
		},
	}}
}

func TestLexicalIndex_Search(t *testing.T) {
	idx := NewLexicalIndex(testStore())
	results, err := idx.Search(context.Background(), "cs101", "office hours", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results for matching query")
	}
	if results[0].ChunkID != "cs101/syllabus#0000" {
		t.Errorf("expected syllabus chunk first, got %s", results[0].ChunkID)
	}
	for _, r := range results {
		if r.Score <= 0 {
			t.Errorf("expected positive score for %s, got %f", r.ChunkID, r.Score)
		}
	}
}

func TestLexicalIndex_CourseScoping(t *testing.T) {
	idx := NewLexicalIndex(testStore())
	results, err := idx.Search(context.Background(), "bio150", "office", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ChunkID == "cs101/syllabus#0000" {
			t.Error("result leaked from another course")
		}
	}
	if len(results) != 1 || results[0].ChunkID != "bio150/lab#0000" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestLexicalIndex_EmptyCourse(t *testing.T) {
	idx := NewLexicalIndex(testStore())
	results, err := idx.Search(context.Background(), "unknown", "office", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for unknown course, got %d", len(results))
	}
}

func TestLexicalIndex_LimitsResults(t *testing.T) {
	idx := NewLexicalIndex(testStore())
	results, err := idx.Search(context.Background(), "cs101", "algorithm graphs sorting", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) > 1 {
		t.Errorf("expected at most 1 result, got %d", len(results))
	}
}
