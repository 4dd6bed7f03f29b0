package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/logger"
)

// Decision is the change detector's verdict for one file.
type Decision int

const (
	// DecisionIngest means the file must be (re)ingested.
	DecisionIngest Decision = iota

	// DecisionSkip means the stored record is current and complete.
	DecisionSkip
)

// ChangeDetector decides skip vs ingest from the stored fingerprint
// and the actual presence of derived chunks.
type ChangeDetector struct {
	store driven.DocumentStore
}

// NewChangeDetector creates a detector over the given store.
func NewChangeDetector(store driven.DocumentStore) *ChangeDetector {
	return &ChangeDetector{store: store}
}

// ShouldIngest compares the new fingerprint against the stored record.
// A matching fingerprint alone is not enough to skip: at least one
// chunk must exist for the record, otherwise a previous run crashed
// between the metadata write and the chunk write and the file is
// re-ingested to heal it.
func (d *ChangeDetector) ShouldIngest(ctx context.Context, storagePath string, fingerprint string, kind domain.Kind) (Decision, *domain.Document, error) {
	doc, err := d.store.FindByPath(ctx, kind, storagePath)
	if errors.Is(err, domain.ErrNotFound) {
		return DecisionIngest, nil, nil
	}
	if err != nil {
		return DecisionIngest, nil, fmt.Errorf("looking up %s: %w", storagePath, err)
	}

	if doc.Fingerprint != fingerprint {
		logger.Debug("%s: fingerprint changed", storagePath)
		return DecisionIngest, doc, nil
	}

	count, err := d.store.CountChunks(ctx, doc.Ref())
	if err != nil {
		return DecisionIngest, doc, fmt.Errorf("counting chunks for %s: %w", storagePath, err)
	}
	if count == 0 {
		logger.Warn("%s: fingerprint matches but no chunks found, re-ingesting", storagePath)
		return DecisionIngest, doc, nil
	}

	return DecisionSkip, doc, nil
}
