// Package answer turns a user question into a grounded response by combining
// retrieval, conversation history, and a text generator.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/narau/narau/internal/memory"
	"github.com/narau/narau/internal/models"
	"github.com/narau/narau/internal/search"
	"github.com/narau/narau/internal/storage"
)

// systemPromptTemplate instructs the generator to answer only from the
// retrieved context. %s is the course name with underscores spaced out,
// %d is the word limit.
const systemPromptTemplate = "You are an AI assistant chatbot tasked with answering any question about %s. " +
	"Generate a comprehensive and informative answer of %d words or less for the given question " +
	"based solely on the provided context. Do not rely on prior knowledge. " +
	"If there is no relevant information in the context, just say \"Hmm, I'm not sure.\" " +
	"Don't try to make up an answer."

// Request is everything a Generator needs to produce a response.
type Request struct {
	SystemPrompt string
	Context      []string
	History      []*models.Message
	Query        string
}

// Generator produces a response from a grounded request.
type Generator interface {
	Generate(ctx context.Context, req *Request) (string, error)
	Close() error
}

// Orchestrator answers questions about a course. Each answered question is
// recorded as a conversation turn.
type Orchestrator struct {
	registry  storage.FileRegistry
	engine    *search.Engine
	memory    *memory.Memory
	generator Generator
	wordLimit int
	logger    *zap.Logger // optional
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a logger for answer diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator with the given dependencies.
func New(
	registry storage.FileRegistry,
	engine *search.Engine,
	mem *memory.Memory,
	generator Generator,
	wordLimit int,
	opts ...Option,
) *Orchestrator {
	if wordLimit <= 0 {
		wordLimit = 80
	}
	o := &Orchestrator{
		registry:  registry,
		engine:    engine,
		memory:    mem,
		generator: generator,
		wordLimit: wordLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Answer retrieves context for query, replays recent history, and asks the
// generator for a response. The turn is persisted only after generation
// succeeds, so a failed generation never pollutes the conversation. A history
// read failure degrades to an empty history rather than failing the answer.
func (o *Orchestrator) Answer(ctx context.Context, course, userID, query string) (*models.Message, error) {
	if !models.ValidCourseName(course) {
		return nil, fmt.Errorf("%w: invalid course name %q", models.ErrInvalidInput, course)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", models.ErrInvalidInput)
	}
	exists, err := o.registry.HasCourse(ctx, course)
	if err != nil {
		return nil, fmt.Errorf("check course: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: course %q", models.ErrNotFound, course)
	}

	scored, err := o.engine.Retrieve(ctx, course, query, 0)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	contextTexts := make([]string, len(scored))
	for i, s := range scored {
		contextTexts[i] = s.Chunk.Content
	}

	history, err := o.memory.History(ctx, course, userID)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("history unavailable, answering without it",
				zap.String("course", course),
				zap.Error(err))
		}
		history = nil
	}

	req := &Request{
		SystemPrompt: fmt.Sprintf(systemPromptTemplate, strings.ReplaceAll(course, "_", " "), o.wordLimit),
		Context:      contextTexts,
		History:      history,
		Query:        query,
	}
	response, err := o.generator.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}

	msg, err := o.memory.Append(ctx, course, userID, query, response)
	if err != nil {
		// the user already has an answer; losing one history turn is
		// preferable to failing the request
		if o.logger != nil {
			o.logger.Warn("failed to record conversation turn",
				zap.String("course", course),
				zap.Error(err))
		}
		return &models.Message{Course: course, UserID: userID, UserQuery: query, Response: response}, nil
	}
	return msg, nil
}
