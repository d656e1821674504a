package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/narau/narau/pkg/utils"
)

// MemoryIndex is an in-memory vector index using brute-force inner product
// search, partitioned by course. When constructed with a non-empty path it
// loads the snapshot at startup and persists after every mutation, so the
// index never trails the registry across a clean restart.
type MemoryIndex struct {
	dimensions int
	path       string
	courses    map[string][]*Entry
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
// If path is non-empty and a snapshot exists there, it is loaded.
func NewMemoryIndex(dimensions int, path string) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m := &MemoryIndex{
		dimensions: dimensions,
		path:       path,
		courses:    make(map[string][]*Entry),
	}
	if path != "" {
		if err := m.load(path); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add appends entries to a course's partition, creating it if absent.
func (m *MemoryIndex) Add(ctx context.Context, course string, entries []*Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(e.Vector), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, e.Vector)
		m.courses[course] = append(m.courses[course], &Entry{
			ChunkID:  e.ChunkID,
			FileName: e.FileName,
			Vector:   vec,
		})
	}
	return m.persistLocked()
}

// Search returns the top-k entries in a course's partition by inner product.
// Ties are broken by chunk ID so rankings are reproducible. An unknown
// course yields no results.
func (m *MemoryIndex) Search(ctx context.Context, course string, query []float32, k int) ([]*Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.courses[course]
	if k <= 0 || len(entries) == 0 {
		return nil, nil
	}
	scores := make([]*Result, len(entries))
	for i, e := range entries {
		scores[i] = &Result{ChunkID: e.ChunkID, Score: utils.Dot(query, e.Vector)}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ChunkID < scores[j].ChunkID
	})
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// RemoveByFile removes all entries tagged with fileName from a course's partition.
func (m *MemoryIndex) RemoveByFile(ctx context.Context, course, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.courses[course]
	if entries == nil {
		return nil
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.FileName != fileName {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(m.courses, course)
	} else {
		m.courses[course] = kept
	}
	return m.persistLocked()
}

// DropCourse removes a course's entire partition.
func (m *MemoryIndex) DropCourse(ctx context.Context, course string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.courses, course)
	return m.persistLocked()
}

// Count returns the number of entries in a course's partition.
func (m *MemoryIndex) Count(course string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.courses[course])
}

// persistLocked writes the snapshot if a path is configured. Callers must hold mu.
func (m *MemoryIndex) persistLocked() error {
	if m.path == "" {
		return nil
	}
	return m.saveLocked(m.path)
}

// Save persists the index to path. Directory is created if needed.
// Format: dimensions (4), course count (4), then per course: nameLen (4),
// name bytes, entry count (4), per entry: idLen (4), id bytes, fileLen (4),
// file bytes, vector (dimensions*4 bytes), all little-endian.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked(path)
}

func (m *MemoryIndex) saveLocked(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	// stable course order keeps snapshots byte-comparable
	names := make([]string, 0, len(m.courses))
	for name := range m.courses {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := binary.Write(f, binary.LittleEndian, uint32(len(names))); err != nil {
		return fmt.Errorf("write course count: %w", err)
	}
	for _, name := range names {
		if err := writeString(f, name); err != nil {
			return err
		}
		entries := m.courses[name]
		if err := binary.Write(f, binary.LittleEndian, uint32(len(entries))); err != nil {
			return fmt.Errorf("write entry count: %w", err)
		}
		for _, e := range entries {
			if err := writeString(f, e.ChunkID); err != nil {
				return err
			}
			if err := writeString(f, e.FileName); err != nil {
				return err
			}
			if _, err := f.Write(float32SliceToBytes(e.Vector)); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
		}
	}
	return nil
}

// load reads the snapshot from path and replaces the in-memory contents.
// A missing file is not an error; the index starts empty.
func (m *MemoryIndex) load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, courseCount uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &courseCount); err != nil {
		return fmt.Errorf("read course count: %w", err)
	}
	m.courses = make(map[string][]*Entry, courseCount)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < courseCount; i++ {
		name, err := readString(f)
		if err != nil {
			return err
		}
		var entryCount uint32
		if err := binary.Read(f, binary.LittleEndian, &entryCount); err != nil {
			return fmt.Errorf("read entry count: %w", err)
		}
		entries := make([]*Entry, 0, entryCount)
		for j := uint32(0); j < entryCount; j++ {
			id, err := readString(f)
			if err != nil {
				return err
			}
			fileName, err := readString(f)
			if err != nil {
				return err
			}
			if _, err := io.ReadFull(f, buf); err != nil {
				return fmt.Errorf("read vector: %w", err)
			}
			entries = append(entries, &Entry{
				ChunkID:  id,
				FileName: fileName,
				Vector:   bytesToFloat32Slice(buf),
			})
		}
		m.courses[name] = entries
	}
	return nil
}

// Close is a no-op for MemoryIndex; state is persisted on every mutation.
func (m *MemoryIndex) Close() error {
	return nil
}

func writeString(f *os.File, s string) error {
	b := []byte(s)
	if err := binary.Write(f, binary.LittleEndian, uint32(len(b))); err != nil {
		return fmt.Errorf("write string len: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write string: %w", err)
	}
	return nil
}

func readString(f *os.File) (string, error) {
	var n uint32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("read string len: %w", err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(f, b); err != nil {
		return "", fmt.Errorf("read string: %w", err)
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
