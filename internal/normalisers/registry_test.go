package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrag/specrag-cli/internal/core/domain"
)

type stubNormaliser struct {
	exts     []string
	priority int
	out      string
}

func (s *stubNormaliser) SupportedExtensions() []string { return s.exts }
func (s *stubNormaliser) Priority() int                 { return s.priority }
func (s *stubNormaliser) Normalise(_ context.Context, raw *domain.RawObject) (*domain.NormalisedDocument, error) {
	return &domain.NormalisedDocument{Content: s.out}, nil
}

func TestRegistryRoutesByExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{exts: []string{"txt", "md"}, priority: 10, out: "text"})
	r.Register(&stubNormaliser{exts: []string{"pdf"}, priority: 10, out: "pdf"})

	doc, err := r.Normalise(context.Background(), &domain.RawObject{StoragePath: "a/b.md"})
	require.NoError(t, err)
	assert.Equal(t, "text", doc.Content)

	doc, err = r.Normalise(context.Background(), &domain.RawObject{StoragePath: "a/b.PDF"})
	require.NoError(t, err)
	assert.Equal(t, "pdf", doc.Content)
}

func TestRegistryPrefersHigherPriority(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{exts: []string{"md"}, priority: 5, out: "generic"})
	r.Register(&stubNormaliser{exts: []string{"md"}, priority: 20, out: "special"})

	doc, err := r.Normalise(context.Background(), &domain.RawObject{StoragePath: "x.md"})
	require.NoError(t, err)
	assert.Equal(t, "special", doc.Content)
}

func TestRegistryUnsupportedExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{exts: []string{"txt"}, priority: 10})

	_, err := r.ForPath("design/archive.zip")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = r.ForPath("no-extension")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}
