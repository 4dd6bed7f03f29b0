package normalisers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/logger"
)

// Registry routes raw objects to the normaliser claiming their
// extension. When several claim the same extension, the highest
// priority wins.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string][]driven.Normaliser
}

var _ driven.NormaliserRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string][]driven.Normaliser)}
}

// Register adds a normaliser for each extension it supports.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range n.SupportedExtensions() {
		r.byExt[ext] = append(r.byExt[ext], n)
		sort.SliceStable(r.byExt[ext], func(i, j int) bool {
			return r.byExt[ext][i].Priority() > r.byExt[ext][j].Priority()
		})
	}
}

// ForPath returns the normaliser for the path's extension.
func (r *Registry) ForPath(path string) (driven.Normaliser, error) {
	ext := domain.PathExtension(path)

	r.mu.RLock()
	defer r.mu.RUnlock()
	candidates := r.byExt[ext]
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no normaliser for %q: %w", path, domain.ErrUnsupportedFormat)
	}
	return candidates[0], nil
}

// Normalise resolves and runs the normaliser for raw.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawObject) (*domain.NormalisedDocument, error) {
	n, err := r.ForPath(raw.StoragePath)
	if err != nil {
		return nil, err
	}

	logger.Debug("normalising %s", raw.StoragePath)
	doc, err := n.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("normalise %s: %w", raw.StoragePath, err)
	}
	return doc, nil
}
