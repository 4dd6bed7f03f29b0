package driven

import (
	"context"

	"github.com/specrag/specrag-cli/internal/core/domain"
)

// Normaliser converts a raw object into clean UTF-8 text.
type Normaliser interface {
	// SupportedExtensions lists the lowercase extensions (no dot) this
	// normaliser handles.
	SupportedExtensions() []string

	// Priority orders normalisers that claim the same extension;
	// higher wins.
	Priority() int

	// Normalise extracts and sanitises the object's text. Returns
	// domain.ErrEmptyContent when nothing usable remains.
	Normalise(ctx context.Context, raw *domain.RawObject) (*domain.NormalisedDocument, error)
}

// NormaliserRegistry resolves the normaliser for an object.
type NormaliserRegistry interface {
	// Register adds a normaliser to the registry.
	Register(n Normaliser)

	// ForPath returns the highest-priority normaliser claiming the
	// path's extension, or domain.ErrUnsupportedFormat.
	ForPath(path string) (Normaliser, error)

	// Normalise resolves and runs the normaliser for raw.
	Normalise(ctx context.Context, raw *domain.RawObject) (*domain.NormalisedDocument, error)
}
