// Package chunker splits content into fixed-size overlapping windows.
package chunker

import (
	"context"

	"github.com/google/uuid"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
)

const (
	// DefaultChunkSize is the window length in runes.
	DefaultChunkSize = 1500

	// DefaultOverlap is how many runes consecutive windows share.
	DefaultOverlap = 300
)

// Processor is a fixed-window chunker with overlap.
type Processor struct {
	chunkSize int
	overlap   int
}

var _ driven.PostProcessor = (*Processor)(nil)

// Option configures the processor.
type Option func(*Processor)

// WithChunkSize overrides the window length.
func WithChunkSize(n int) Option {
	return func(p *Processor) { p.chunkSize = n }
}

// WithOverlap overrides the window overlap.
func WithOverlap(n int) Option {
	return func(p *Processor) { p.overlap = n }
}

// New creates a chunker with the default 1500/300 windowing.
func New(opts ...Option) *Processor {
	p := &Processor{chunkSize: DefaultChunkSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		opt(p)
	}
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 5
	}
	return p
}

// Name identifies the processor in logs.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits content into windows of chunkSize runes advancing by
// chunkSize-overlap, assigning zero-based contiguous positions. Content
// no longer than one window yields a single chunk. Empty content yields
// none.
func (p *Processor) Process(_ context.Context, content string, _ []domain.Chunk) ([]domain.Chunk, error) {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []domain.Chunk
	step := p.chunkSize - p.overlap
	for start, pos := 0, 0; start < len(runes); start, pos = start+step, pos+1 {
		end := start + p.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, domain.Chunk{
			ID:       uuid.NewString(),
			Position: pos,
			Text:     string(runes[start:end]),
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
