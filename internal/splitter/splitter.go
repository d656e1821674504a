// Package splitter turns raw documents into ordered, overlapping text chunks.
package splitter

import (
	"fmt"
	"strings"

	"github.com/narau/narau/internal/models"
)

// Splitter splits text into overlapping word-based chunks. Splitting is
// deterministic: the same document and configuration always produce the
// same chunk sequence and chunk IDs.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a splitter with the given size and overlap (in words).
func New(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split splits text into Chunks tagged with course, file, and topic.
// Chunk IDs are "<course>/<file>#<ordinal>" so they are globally unique and
// sort lexically in position order within a file. Whitespace-only input
// yields no chunks.
func (s *Splitter) Split(course, fileName, text, topic string) []*models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := s.chunkSize - s.chunkOverlap
	if step <= 0 {
		step = 1
	}
	chunks := make([]*models.Chunk, 0)
	position := 0
	for i := 0; i < len(words); i += step {
		end := i + s.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, &models.Chunk{
			ID:       ChunkID(course, fileName, position),
			Course:   course,
			FileName: fileName,
			Topic:    topic,
			Position: position,
			Content:  strings.Join(words[i:end], " "),
		})
		position++
		if end >= len(words) {
			break
		}
	}
	return chunks
}

// ChunkID returns the deterministic chunk identifier for a file position.
// The ordinal is zero-padded so lexical order matches position order.
func ChunkID(course, fileName string, position int) string {
	return fmt.Sprintf("%s/%s#%04d", course, fileName, position)
}
