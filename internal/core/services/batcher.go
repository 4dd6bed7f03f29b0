package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/logger"
	"github.com/specrag/specrag-cli/internal/metrics"
)

const (
	// DefaultBatchSize bounds the number of texts per embedding call.
	DefaultBatchSize = 25

	// DefaultBatchDelay is the pause between consecutive batch calls.
	DefaultBatchDelay = 3 * time.Second
)

// EmbeddingBatcher embeds chunk texts in fixed-size batches with
// static pacing between calls. Pacing is not adaptive: ingestion is a
// bulk offline job, so a fixed inter-batch delay keeps it under the
// provider's request ceiling without feedback control.
type EmbeddingBatcher struct {
	embedder  driven.EmbeddingService
	batchSize int
	limiter   *rate.Limiter
}

// BatcherOption configures the batcher.
type BatcherOption func(*EmbeddingBatcher)

// WithBatchSize overrides the batch size.
func WithBatchSize(n int) BatcherOption {
	return func(b *EmbeddingBatcher) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithBatchDelay overrides the inter-batch delay.
func WithBatchDelay(d time.Duration) BatcherOption {
	return func(b *EmbeddingBatcher) {
		if d > 0 {
			b.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// NewEmbeddingBatcher creates a batcher over the embedding service.
func NewEmbeddingBatcher(embedder driven.EmbeddingService, opts ...BatcherOption) *EmbeddingBatcher {
	b := &EmbeddingBatcher{
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		limiter:   rate.NewLimiter(rate.Every(DefaultBatchDelay), 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EmbedAll embeds every text, preserving input order. A failed batch
// propagates to the caller; retry policy lives at the job level, not
// per batch, so a retried job never mixes vectors from two runs.
func (b *EmbeddingBatcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	want := b.embedder.Dimensions()
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += b.batchSize {
		// The limiter holds one token refilled per delay interval, so
		// the first call proceeds at once and later calls are paced.
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting between batches: %w", err)
		}

		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		logger.Debug("embedding batch %d-%d of %d", start, end, len(texts))
		began := time.Now()
		batchVectors, err := b.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embedding batch starting at %d: %w", start, err)
		}
		metrics.EmbeddingBatchSeconds.Observe(time.Since(began).Seconds())

		if len(batchVectors) != len(batch) {
			return nil, fmt.Errorf("embedding service returned %d vectors for %d texts: %w",
				len(batchVectors), len(batch), domain.ErrSchemaInconsistency)
		}
		for i, v := range batchVectors {
			if want > 0 && len(v) != want {
				return nil, fmt.Errorf("vector %d has dimensionality %d, model %s produces %d: %w",
					start+i, len(v), b.embedder.ModelName(), want, domain.ErrSchemaInconsistency)
			}
		}

		vectors = append(vectors, batchVectors...)
	}

	return vectors, nil
}
