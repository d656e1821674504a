package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/narau/narau/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		course TEXT NOT NULL,
		file_name TEXT NOT NULL,
		topic TEXT,
		position INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_course ON chunks(course);
	CREATE INDEX IF NOT EXISTS idx_chunks_course_file ON chunks(course, file_name);

	CREATE TABLE IF NOT EXISTS registry (
		course TEXT NOT NULL,
		file_name TEXT NOT NULL,
		seq INTEGER NOT NULL,
		PRIMARY KEY (course, file_name)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		course TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_query TEXT NOT NULL,
		response TEXT NOT NULL,
		reaction INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_course_user ON messages(course, user_id);

	CREATE TABLE IF NOT EXISTS feedback (
		course TEXT NOT NULL,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (course, user_id)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// AddChunks inserts chunks in a single transaction.
func (s *SQLiteStore) AddChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, course, file_name, topic, position, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, ch := range chunks {
		metadataJSON, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		ch.CreatedAt = now
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.Course, ch.FileName, ch.Topic, ch.Position, ch.Content, string(metadataJSON), ch.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, course, file_name, topic, position, content, metadata, created_at
		 FROM chunks WHERE id = ?`, id,
	)
	ch, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// ChunksByCourse returns all chunks in a course's partition, ordered by file and position.
func (s *SQLiteStore) ChunksByCourse(ctx context.Context, course string) ([]*models.Chunk, error) {
	return s.queryChunks(ctx,
		`SELECT id, course, file_name, topic, position, content, metadata, created_at
		 FROM chunks WHERE course = ? ORDER BY file_name, position`, course)
}

// ChunksByFile returns a file's chunks ordered by position.
func (s *SQLiteStore) ChunksByFile(ctx context.Context, course, fileName string) ([]*models.Chunk, error) {
	return s.queryChunks(ctx,
		`SELECT id, course, file_name, topic, position, content, metadata, created_at
		 FROM chunks WHERE course = ? AND file_name = ? ORDER BY position`, course, fileName)
}

func (s *SQLiteStore) queryChunks(ctx context.Context, query string, args ...any) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(r rowScanner) (*models.Chunk, error) {
	var ch models.Chunk
	var topic sql.NullString
	var metadataJSON sql.NullString
	if err := r.Scan(&ch.ID, &ch.Course, &ch.FileName, &topic, &ch.Position, &ch.Content, &metadataJSON, &ch.CreatedAt); err != nil {
		return nil, err
	}
	ch.Topic = topic.String
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &ch.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &ch, nil
}

// DeleteByFile removes all of a file's chunks from a course partition.
func (s *SQLiteStore) DeleteByFile(ctx context.Context, course, fileName string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE course = ? AND file_name = ?`, course, fileName)
	return err
}

// DropCourse removes a course's entire chunk partition.
func (s *SQLiteStore) DropCourse(ctx context.Context, course string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE course = ?`, course)
	return err
}

// CountChunks returns the number of chunks in a course partition.
func (s *SQLiteStore) CountChunks(ctx context.Context, course string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE course = ?`, course).Scan(&count)
	return count, err
}

// AddFile appends a file to a course's registry list, preserving insertion order.
func (s *SQLiteStore) AddFile(ctx context.Context, course, fileName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registry (course, file_name, seq)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM registry WHERE course = ?))`,
		course, fileName, course,
	)
	return err
}

// HasFile reports whether a file is registered in a course.
func (s *SQLiteStore) HasFile(ctx context.Context, course, fileName string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM registry WHERE course = ? AND file_name = ?`, course, fileName,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveFile removes a file from a course's registry list. Removing the last
// file leaves no registry rows for the course, so the course disappears from
// Courses without a separate delete.
func (s *SQLiteStore) RemoveFile(ctx context.Context, course, fileName string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM registry WHERE course = ? AND file_name = ?`, course, fileName)
	return err
}

// Files returns a course's file list in registration order.
func (s *SQLiteStore) Files(ctx context.Context, course string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_name FROM registry WHERE course = ? ORDER BY seq`, course)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		files = append(files, name)
	}
	return files, rows.Err()
}

// Courses returns all courses that have at least one registered file.
func (s *SQLiteStore) Courses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course FROM registry GROUP BY course ORDER BY MIN(rowid)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		courses = append(courses, name)
	}
	return courses, rows.Err()
}

// HasCourse reports whether a course has any registered files.
func (s *SQLiteStore) HasCourse(ctx context.Context, course string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM registry WHERE course = ? LIMIT 1`, course,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AppendMessage inserts a conversation turn. Messages are never updated
// afterwards except for the reaction field.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, course, user_id, user_query, response, reaction, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Course, msg.UserID, msg.UserQuery, msg.Response, msg.Reaction, msg.CreatedAt,
	)
	return err
}

// LastMessages returns up to n most recent messages for a conversation, newest first.
func (s *SQLiteStore) LastMessages(ctx context.Context, course, userID string, n int) ([]*models.Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, course, user_id, user_query, response, reaction, created_at
		 FROM messages WHERE course = ? AND user_id = ? ORDER BY rowid DESC LIMIT ?`,
		course, userID, n)
}

// Messages returns the full transcript for a conversation in insertion order.
func (s *SQLiteStore) Messages(ctx context.Context, course, userID string) ([]*models.Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, course, user_id, user_query, response, reaction, created_at
		 FROM messages WHERE course = ? AND user_id = ? ORDER BY rowid`,
		course, userID)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Course, &m.UserID, &m.UserQuery, &m.Response, &m.Reaction, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// SetReaction updates a message's reaction.
func (s *SQLiteStore) SetReaction(ctx context.Context, messageID string, reaction int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET reaction = ? WHERE id = ?`, reaction, messageID)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
	}
	return nil
}

// AddFeedback inserts a feedback record with status New.
func (s *SQLiteStore) AddFeedback(ctx context.Context, fb *models.Feedback) error {
	fb.Status = models.StatusNew
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO feedback (course, user_id, status, created_at)
		 VALUES (?, ?, ?, ?)`,
		fb.Course, fb.UserID, fb.Status, fb.CreatedAt,
	)
	return err
}

// FeedbackByCourse returns feedback for a course, filtered by status when non-empty.
func (s *SQLiteStore) FeedbackByCourse(ctx context.Context, course, status string) ([]*models.Feedback, error) {
	query := `SELECT course, user_id, status, created_at FROM feedback WHERE course = ?`
	args := []any{course}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feedbacks []*models.Feedback
	for rows.Next() {
		var fb models.Feedback
		if err := rows.Scan(&fb.Course, &fb.UserID, &fb.Status, &fb.CreatedAt); err != nil {
			return nil, err
		}
		feedbacks = append(feedbacks, &fb)
	}
	return feedbacks, rows.Err()
}

// UpdateFeedbackStatus updates a feedback record's status and returns the updated record.
func (s *SQLiteStore) UpdateFeedbackStatus(ctx context.Context, course, userID, status string) (*models.Feedback, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE feedback SET status = ? WHERE course = ? AND user_id = ?`, status, course, userID)
	if err != nil {
		return nil, err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("feedback for user %s in %s: %w", userID, course, models.ErrNotFound)
	}
	var fb models.Feedback
	err = s.db.QueryRowContext(ctx,
		`SELECT course, user_id, status, created_at FROM feedback WHERE course = ? AND user_id = ?`,
		course, userID,
	).Scan(&fb.Course, &fb.UserID, &fb.Status, &fb.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// HasFeedback reports whether a feedback record exists for (course, user).
func (s *SQLiteStore) HasFeedback(ctx context.Context, course, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM feedback WHERE course = ? AND user_id = ?`, course, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
