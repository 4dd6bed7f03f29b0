// Package driving defines the inbound ports: the use-case surface the
// CLI drives.
package driving

import (
	"context"

	"github.com/specrag/specrag-cli/internal/core/domain"
)

// OutcomeKind classifies what happened to one file during ingestion.
type OutcomeKind string

const (
	// OutcomeIngested means the file was (re)written to the store.
	OutcomeIngested OutcomeKind = "ingested"

	// OutcomeSkipped means change detection found nothing to do.
	OutcomeSkipped OutcomeKind = "skipped"
)

// Outcome is the result of ingesting a single file.
type Outcome struct {
	Kind       OutcomeKind
	DocumentID string
	ChunkCount int
}

// RunSummary aggregates the results of an ingestion run.
type RunSummary struct {
	Ingested int
	Skipped  int
	Failed   int
	Chunks   int
}

// Ingestor runs the per-file ingestion pipeline.
type Ingestor interface {
	// IngestOne downloads, normalises, chunks, embeds and stores one
	// object. force bypasses change detection.
	IngestOne(ctx context.Context, storagePath string, kind domain.Kind, force bool) (*Outcome, error)
}

// Scanner discovers ingestable files and enqueues jobs for them.
type Scanner interface {
	// Scan walks the configured roots and enqueues one job per
	// ingestable file, returning how many jobs were enqueued.
	Scan(ctx context.Context, force bool) (int, error)
}
