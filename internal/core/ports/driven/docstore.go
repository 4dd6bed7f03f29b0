package driven

import (
	"context"

	"github.com/specrag/specrag-cli/internal/core/domain"
)

// DocumentStore persists documents, their chunks and embeddings.
type DocumentStore interface {
	// FindByPath looks up a document of the given kind by storage path.
	// Returns domain.ErrNotFound when absent.
	FindByPath(ctx context.Context, kind domain.Kind, storagePath string) (*domain.Document, error)

	// Upsert writes the document and replaces its chunks and embeddings
	// in full. Chunks carry Position and Text; the store assigns chunk
	// IDs and parent linkage. vectors[i] embeds chunks[i]. Returns the
	// document ID, which is preserved across re-ingestion.
	Upsert(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) (string, error)

	// CountChunks returns how many chunks reference the parent. For PRD
	// parents this includes rows linked through the legacy column.
	CountChunks(ctx context.Context, parent domain.ParentRef) (int, error)

	// GetChunks returns the parent's chunks ordered by position.
	GetChunks(ctx context.Context, parent domain.ParentRef) ([]domain.Chunk, error)

	// Dimensions returns the corpus embedding dimensionality, or zero
	// when no embedding has been written yet.
	Dimensions(ctx context.Context) (int, error)

	// Close releases the underlying connection.
	Close() error
}
