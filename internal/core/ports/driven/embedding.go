package driven

import "context"

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call,
	// preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length this service produces.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Ping verifies the service is reachable and authenticated.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
