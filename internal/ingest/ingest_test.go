package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/narau/narau/internal/embedding"
	"github.com/narau/narau/internal/models"
	"github.com/narau/narau/internal/splitter"
	"github.com/narau/narau/internal/storage"
	"github.com/narau/narau/internal/vector"
)

const testDims = 8

func newTestPipeline(t *testing.T) (*Pipeline, *storage.SQLiteStore, *vector.MemoryIndex) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	idx, err := vector.NewMemoryIndex(testDims, "")
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	p := NewPipeline(splitter.New(16, 2), store, store, idx, embedding.NewMockEmbedder(testDims))
	return p, store, idx
}

func TestPipeline_Ingest(t *testing.T) {
	p, store, idx := newTestPipeline(t)
	ctx := context.Background()

	n, err := p.Ingest(ctx, "cs101", "syllabus", "Office hours are Tuesdays at noon. The final exam covers sorting.", "logistics")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one chunk")
	}

	chunks, err := store.ChunksByFile(ctx, "cs101", "syllabus")
	if err != nil {
		t.Fatalf("ChunksByFile: %v", err)
	}
	if len(chunks) != n {
		t.Errorf("store has %d chunks, ingest reported %d", len(chunks), n)
	}
	if got := idx.Count("cs101"); got != n {
		t.Errorf("vector index has %d entries, expected %d", got, n)
	}
	ok, err := store.HasFile(ctx, "cs101", "syllabus")
	if err != nil || !ok {
		t.Errorf("expected file registered, got ok=%v err=%v", ok, err)
	}
	for _, c := range chunks {
		if c.Topic != "logistics" {
			t.Errorf("chunk %s missing topic tag, got %q", c.ID, c.Topic)
		}
	}
}

func TestPipeline_IngestDuplicate(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, "cs101", "syllabus", "Office hours are Tuesdays.", ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	_, err := p.Ingest(ctx, "cs101", "syllabus", "Different content entirely.", "")
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// the same file name is fine under another course
	if _, err := p.Ingest(ctx, "bio150", "syllabus", "Lab safety rules apply.", ""); err != nil {
		t.Fatalf("Ingest other course: %v", err)
	}
}

func TestPipeline_IngestInvalid(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, "bad course!", "f", "text", ""); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad course name, got %v", err)
	}
	if _, err := p.Ingest(ctx, "cs101", "", "text", ""); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty file name, got %v", err)
	}
	if _, err := p.Ingest(ctx, "cs101", "empty", "   \n\t  ", ""); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank text, got %v", err)
	}
}

func TestPipeline_Delete(t *testing.T) {
	p, store, idx := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, "cs101", "syllabus", "Office hours are Tuesdays at noon.", ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := p.Ingest(ctx, "cs101", "notes", "Dijkstra finds shortest paths in graphs.", ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := p.Delete(ctx, "cs101", "syllabus"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	chunks, err := store.ChunksByFile(ctx, "cs101", "syllabus")
	if err != nil {
		t.Fatalf("ChunksByFile: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for deleted file, got %d", len(chunks))
	}
	if ok, _ := store.HasFile(ctx, "cs101", "syllabus"); ok {
		t.Error("expected file removed from registry")
	}
	// the other file survives
	remaining, err := store.ChunksByFile(ctx, "cs101", "notes")
	if err != nil || len(remaining) == 0 {
		t.Fatalf("expected notes chunks intact, got %d err=%v", len(remaining), err)
	}
	if idx.Count("cs101") != len(remaining) {
		t.Errorf("vector count %d does not match remaining chunks %d", idx.Count("cs101"), len(remaining))
	}
}

func TestPipeline_DeleteNotFound(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	if err := p.Delete(ctx, "cs101", "syllabus"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown course, got %v", err)
	}
	if _, err := p.Ingest(ctx, "cs101", "syllabus", "Office hours are Tuesdays.", ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := p.Delete(ctx, "cs101", "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown file, got %v", err)
	}
}

func TestPipeline_DeleteGarbageCollectsCourse(t *testing.T) {
	p, store, idx := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, "temp", "only-file", "Some short lived material.", ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := p.Delete(ctx, "temp", "only-file"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if ok, _ := store.HasCourse(ctx, "temp"); ok {
		t.Error("expected course gone from registry")
	}
	count, err := store.CountChunks(ctx, "temp")
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 chunks after course GC, got %d", count)
	}
	if idx.Count("temp") != 0 {
		t.Errorf("expected empty vector partition after course GC, got %d", idx.Count("temp"))
	}
	courses, err := store.Courses(ctx)
	if err != nil {
		t.Fatalf("Courses: %v", err)
	}
	for _, c := range courses {
		if c == "temp" {
			t.Error("course still listed after GC")
		}
	}
}

// failingRegistry refuses registration so rollback behavior can be observed.
type failingRegistry struct {
	storage.FileRegistry
}

func (failingRegistry) AddFile(ctx context.Context, course, fileName string) error {
	return errors.New("registry write refused")
}

func TestPipeline_IngestRegistryFailureRollsBack(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	idx, err := vector.NewMemoryIndex(testDims, "")
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	p := NewPipeline(splitter.New(16, 2), store, failingRegistry{store}, idx, embedding.NewMockEmbedder(testDims))
	ctx := context.Background()

	if _, err := p.Ingest(ctx, "cs101", "syllabus", "Office hours are Tuesdays at noon.", ""); err == nil {
		t.Fatal("expected registration failure")
	}
	chunks, err := store.ChunksByFile(ctx, "cs101", "syllabus")
	if err != nil {
		t.Fatalf("ChunksByFile: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected chunk rollback, %d chunks remain", len(chunks))
	}
	if got := idx.Count("cs101"); got != 0 {
		t.Errorf("expected vector rollback, %d entries remain", got)
	}
}
