// Package text normalises plain-text formats: txt, markdown and json.
package text

import (
	"context"
	"fmt"
	"strings"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/normalisers"
)

// Normaliser handles text formats that need no extraction step.
type Normaliser struct{}

var _ driven.Normaliser = (*Normaliser)(nil)

// New creates a text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions lists the handled extensions.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{"txt", "md", "markdown", "json"}
}

// Priority returns the routing priority.
func (n *Normaliser) Priority() int {
	return 10
}

// Normalise sanitises the content and derives a title.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawObject) (*domain.NormalisedDocument, error) {
	content := normalisers.Sanitise(string(raw.Content))
	if content == "" {
		return nil, fmt.Errorf("%s: %w", raw.StoragePath, domain.ErrEmptyContent)
	}

	return &domain.NormalisedDocument{
		Title:   extractTitle(content, raw.StoragePath),
		Content: content,
	}, nil
}

// extractTitle takes the first short non-empty line, stripping a
// markdown heading marker, and falls back to the filename.
func extractTitle(content, path string) string {
	for _, line := range strings.SplitN(content, "\n", 5) {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line == "" {
			continue
		}
		if len(line) > 100 {
			break
		}
		return line
	}

	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
