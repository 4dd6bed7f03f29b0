// Package memory provides in-memory implementations of the document
// store and job queue for tests and local experimentation.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
)

// Store is an in-memory DocumentStore.
type Store struct {
	mu         sync.RWMutex
	docs       map[string]*domain.Document // key: kind + "\x00" + storagePath
	chunks     map[string][]domain.Chunk   // key: parent kind + "\x00" + id
	vectors    map[string][]float32        // key: chunk ID
	legacy     map[string]int              // legacy-linked chunk counts by PRD id
	dimensions int
}

var _ driven.DocumentStore = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		docs:    make(map[string]*domain.Document),
		chunks:  make(map[string][]domain.Chunk),
		vectors: make(map[string][]float32),
		legacy:  make(map[string]int),
	}
}

func docKey(kind domain.Kind, path string) string {
	return string(kind) + "\x00" + path
}

func parentKey(ref domain.ParentRef) string {
	return string(ref.Kind) + "\x00" + ref.ID
}

// FindByPath looks up a document by kind and storage path.
func (s *Store) FindByPath(_ context.Context, kind domain.Kind, storagePath string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docKey(kind, storagePath)]
	if !ok {
		return nil, fmt.Errorf("document %s/%s: %w", kind, storagePath, domain.ErrNotFound)
	}
	copied := *doc
	return &copied, nil
}

// Upsert writes the document and replaces its chunks and embeddings.
func (s *Store) Upsert(_ context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) (string, error) {
	if len(chunks) != len(vectors) {
		return "", fmt.Errorf("chunk/vector count mismatch (%d vs %d): %w",
			len(chunks), len(vectors), domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range vectors {
		if s.dimensions == 0 {
			s.dimensions = len(v)
		} else if len(v) != s.dimensions {
			return "", fmt.Errorf("vector dimensionality %d does not match corpus %d: %w",
				len(v), s.dimensions, domain.ErrSchemaInconsistency)
		}
	}

	key := docKey(doc.Kind, doc.StoragePath)
	now := time.Now().UTC()

	stored := *doc
	if existing, ok := s.docs[key]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.docs[key] = &stored

	ref := stored.Ref()
	pk := parentKey(ref)
	for _, old := range s.chunks[pk] {
		delete(s.vectors, old.ID)
	}
	delete(s.legacy, stored.ID)

	replaced := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.ID = uuid.NewString()
		c.Parent = ref
		c.Position = i
		replaced[i] = c
		s.vectors[c.ID] = vectors[i]
	}
	s.chunks[pk] = replaced

	return stored.ID, nil
}

// CountChunks counts chunks for the parent, including legacy-linked
// rows for PRD parents.
func (s *Store) CountChunks(_ context.Context, parent domain.ParentRef) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.chunks[parentKey(parent)])
	if parent.Kind == domain.KindPRD {
		n += s.legacy[parent.ID]
	}
	return n, nil
}

// GetChunks returns the parent's chunks ordered by position.
func (s *Store) GetChunks(_ context.Context, parent domain.ParentRef) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.chunks[parentKey(parent)]
	out := make([]domain.Chunk, len(src))
	copy(out, src)
	return out, nil
}

// Dimensions returns the corpus embedding dimensionality.
func (s *Store) Dimensions(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Vector returns the stored embedding for a chunk, for tests.
func (s *Store) Vector(chunkID string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vectors[chunkID]
	return v, ok
}

// DropChunks removes a parent's chunks without touching the document,
// simulating a crash between metadata and chunk writes.
func (s *Store) DropChunks(parent domain.ParentRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chunks[parentKey(parent)] {
		delete(s.vectors, c.ID)
	}
	delete(s.chunks, parentKey(parent))
}

// AddLegacyChunks records legacy-linked chunks for a PRD, for tests.
func (s *Store) AddLegacyChunks(prdID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy[prdID] += n
}
