package driven

import (
	"context"

	"github.com/specrag/specrag-cli/internal/core/domain"
)

// PostProcessor transforms normalised content into chunks. Processors
// compose: each receives the chunks produced so far.
type PostProcessor interface {
	// Name identifies the processor in logs.
	Name() string

	// Process returns the next chunk set derived from content and the
	// chunks produced by earlier processors.
	Process(ctx context.Context, content string, chunks []domain.Chunk) ([]domain.Chunk, error)
}
