// Package models defines core data structures for chunks, conversations, and feedback.
package models

import (
	"regexp"
	"time"
)

// courseNameRe is the allowed course identifier pattern. Course names become
// storage partition keys, so only letters, digits, hyphen, and underscore are allowed.
var courseNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidCourseName reports whether name is a valid course identifier.
func ValidCourseName(name string) bool {
	return courseNameRe.MatchString(name)
}

// Chunk is a bounded span of a file's text, stored and indexed independently.
// Chunks are immutable once written; re-ingesting a file replaces them wholesale.
type Chunk struct {
	ID        string            `json:"id" db:"id"`
	Course    string            `json:"course" db:"course"`
	FileName  string            `json:"file_name" db:"file_name"`
	Topic     string            `json:"topic,omitempty" db:"topic"`
	Position  int               `json:"position" db:"position"`
	Content   string            `json:"content" db:"content"`
	Metadata  map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// ScoredChunk is a chunk with its retrieval score.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// Message is one (query, response) turn in a conversation. Append-only;
// only Reaction is ever updated after the fact.
type Message struct {
	ID        string    `json:"id" db:"id"`
	Course    string    `json:"course" db:"course"`
	UserID    string    `json:"user_id" db:"user_id"`
	UserQuery string    `json:"user_query" db:"user_query"`
	Response  string    `json:"response" db:"response"`
	Reaction  int       `json:"reaction" db:"reaction"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Feedback is a (user, course, status) record, independent of any conversation.
// New feedback always starts in StatusNew.
type Feedback struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Course    string    `json:"course" db:"course"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// StatusNew is the initial feedback status.
const StatusNew = "New"
