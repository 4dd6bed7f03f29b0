// Package postprocessors runs normalised content through an ordered
// chain of processors that produce the chunks to embed.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/logger"
)

// Pipeline executes post-processors in registration order.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline over the given processors.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process feeds content through every processor and returns the final
// chunk set.
func (p *Pipeline) Process(ctx context.Context, content string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, proc := range p.processors {
		var err error
		chunks, err = proc.Process(ctx, content, chunks)
		if err != nil {
			return nil, fmt.Errorf("post-processor %s: %w", proc.Name(), err)
		}
		logger.Debug("post-processor %s produced %d chunks", proc.Name(), len(chunks))
	}
	return chunks, nil
}
