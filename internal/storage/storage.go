// Package storage defines the persistence interfaces for chunks, the file
// registry, conversations, and feedback.
package storage

import (
	"context"

	"github.com/narau/narau/internal/models"
)

// ContentStore persists chunk content and metadata, partitioned by course.
// Chunk rows are derived data: they must never outlive the corresponding
// FileRegistry entry.
type ContentStore interface {
	AddChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	ChunksByCourse(ctx context.Context, course string) ([]*models.Chunk, error)
	ChunksByFile(ctx context.Context, course, fileName string) ([]*models.Chunk, error)
	DeleteByFile(ctx context.Context, course, fileName string) error
	DropCourse(ctx context.Context, course string) error
	CountChunks(ctx context.Context, course string) (int64, error)
}

// FileRegistry is the authoritative per-course ledger of ingested file ids.
// A file exists in a course iff it is listed here.
type FileRegistry interface {
	AddFile(ctx context.Context, course, fileName string) error
	HasFile(ctx context.Context, course, fileName string) (bool, error)
	RemoveFile(ctx context.Context, course, fileName string) error
	Files(ctx context.Context, course string) ([]string, error)
	Courses(ctx context.Context) ([]string, error)
	HasCourse(ctx context.Context, course string) (bool, error)
}

// ConversationStore persists append-only conversation turns per (course, user).
type ConversationStore interface {
	AppendMessage(ctx context.Context, msg *models.Message) error
	// LastMessages returns up to n most recent messages, newest first.
	LastMessages(ctx context.Context, course, userID string, n int) ([]*models.Message, error)
	// Messages returns the full transcript in insertion order.
	Messages(ctx context.Context, course, userID string) ([]*models.Message, error)
	SetReaction(ctx context.Context, messageID string, reaction int) error
}

// FeedbackStore persists user feedback records.
type FeedbackStore interface {
	AddFeedback(ctx context.Context, fb *models.Feedback) error
	// FeedbackByCourse returns feedback for a course, filtered by status when non-empty.
	FeedbackByCourse(ctx context.Context, course, status string) ([]*models.Feedback, error)
	UpdateFeedbackStatus(ctx context.Context, course, userID, status string) (*models.Feedback, error)
	HasFeedback(ctx context.Context, course, userID string) (bool, error)
}

// Store combines all persistence interfaces; the SQLite adapter implements
// all of them over one connection and is bound once at process start.
type Store interface {
	ContentStore
	FileRegistry
	ConversationStore
	FeedbackStore
	Close() error
}
