package answer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/narau/narau/internal/embedding"
	"github.com/narau/narau/internal/ingest"
	"github.com/narau/narau/internal/keyword"
	"github.com/narau/narau/internal/memory"
	"github.com/narau/narau/internal/models"
	"github.com/narau/narau/internal/search"
	"github.com/narau/narau/internal/splitter"
	"github.com/narau/narau/internal/storage"
	"github.com/narau/narau/internal/vector"
)

const testDims = 8

// fakeGenerator echoes the context it was handed, recording the request.
type fakeGenerator struct {
	lastReq *Request
	fail    bool
}

func (g *fakeGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	g.lastReq = req
	if g.fail {
		return "", fmt.Errorf("model overloaded")
	}
	if len(req.Context) == 0 {
		return "Hmm, I'm not sure.", nil
	}
	return "Based on the course material: " + req.Context[0], nil
}

func (g *fakeGenerator) Close() error { return nil }

type testRig struct {
	orch     *Orchestrator
	pipeline *ingest.Pipeline
	mem      *memory.Memory
	gen      *fakeGenerator
}

func newTestRig(t *testing.T) *testRig {
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
	emb := embedding.NewMockEmbedder(testDims)
	engine := search.NewEngine(store, idx, keyword.NewLexicalIndex(store), emb, search.Options{})
	mem := memory.New(store, 10)
	gen := &fakeGenerator{}
	return &testRig{
		orch:     New(store, engine, mem, gen, 80),
		pipeline: ingest.NewPipeline(splitter.New(16, 2), store, store, idx, emb),
		mem:      mem,
		gen:      gen,
	}
}

func TestOrchestrator_Answer(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if _, err := rig.pipeline.Ingest(ctx, "cs101", "syllabus", "Office hours are Tuesdays at noon in room 204.", ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	msg, err := rig.orch.Answer(ctx, "cs101", "u1", "When are office hours?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(msg.Response, "Office hours") {
		t.Errorf("expected grounded response, got %q", msg.Response)
	}
	if rig.gen.lastReq == nil || len(rig.gen.lastReq.Context) == 0 {
		t.Fatal("generator received no context")
	}
	if !strings.Contains(rig.gen.lastReq.SystemPrompt, "cs101") {
		t.Errorf("system prompt missing course name: %q", rig.gen.lastReq.SystemPrompt)
	}
	if !strings.Contains(rig.gen.lastReq.SystemPrompt, "80 words") {
		t.Errorf("system prompt missing word limit: %q", rig.gen.lastReq.SystemPrompt)
	}

	history, err := rig.mem.History(ctx, "cs101", "u1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 recorded turn, got %d", len(history))
	}
	if history[0].UserQuery != "When are office hours?" {
		t.Errorf("unexpected recorded query: %q", history[0].UserQuery)
	}
}

func TestOrchestrator_AnswerUnderscoredCourseName(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if _, err := rig.pipeline.Ingest(ctx, "machine_learning", "intro", "Gradient descent minimizes a loss function.", ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := rig.orch.Answer(ctx, "machine_learning", "u1", "What does gradient descent do?"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(rig.gen.lastReq.SystemPrompt, "machine learning") {
		t.Errorf("underscores not spaced in prompt: %q", rig.gen.lastReq.SystemPrompt)
	}
}

func TestOrchestrator_AnswerUnknownCourse(t *testing.T) {
	rig := newTestRig(t)
	_, err := rig.orch.Answer(context.Background(), "ghost", "u1", "Anything?")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOrchestrator_AnswerValidation(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	if _, err := rig.orch.Answer(ctx, "bad name!", "u1", "q"); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad course, got %v", err)
	}
	if _, err := rig.orch.Answer(ctx, "cs101", "u1", "  "); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank query, got %v", err)
	}
}

func TestOrchestrator_GenerationFailureKeepsHistoryClean(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if _, err := rig.pipeline.Ingest(ctx, "cs101", "syllabus", "Office hours are Tuesdays.", ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	rig.gen.fail = true

	_, err := rig.orch.Answer(ctx, "cs101", "u1", "When are office hours?")
	if !errors.Is(err, models.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	history, err := rig.mem.History(ctx, "cs101", "u1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("failed turn must not be recorded, got %d messages", len(history))
	}
}

func TestOrchestrator_HistoryReplayedToGenerator(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if _, err := rig.pipeline.Ingest(ctx, "cs101", "syllabus", "Office hours are Tuesdays at noon.", ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := rig.orch.Answer(ctx, "cs101", "u1", "When are office hours?"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, err := rig.orch.Answer(ctx, "cs101", "u1", "And where?"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(rig.gen.lastReq.History) != 1 {
		t.Fatalf("expected 1 prior turn in generator request, got %d", len(rig.gen.lastReq.History))
	}
	if rig.gen.lastReq.History[0].UserQuery != "When are office hours?" {
		t.Errorf("unexpected replayed turn: %q", rig.gen.lastReq.History[0].UserQuery)
	}
}
