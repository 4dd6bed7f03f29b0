// Package services implements the core ingestion use cases: the
// per-file pipeline, change detection, path classification, embedding
// batching, file discovery and the queue worker.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/core/ports/driving"
	"github.com/specrag/specrag-cli/internal/logger"
	"github.com/specrag/specrag-cli/internal/metrics"
	"github.com/specrag/specrag-cli/internal/retry"
)

// screenshotName is the sibling object that carries a design's
// rendered image.
const screenshotName = "screenshot.png"

// ChunkPipeline turns normalised content into ordered chunks.
type ChunkPipeline interface {
	Process(ctx context.Context, content string) ([]domain.Chunk, error)
}

// Ingestor runs the per-file pipeline: download, normalise,
// fingerprint, change-detect, chunk, embed, classify, store.
type Ingestor struct {
	objects    driven.ObjectStore
	registry   driven.NormaliserRegistry
	pipeline   ChunkPipeline
	batcher    *EmbeddingBatcher
	detector   *ChangeDetector
	classifier *PathClassifier
	store      driven.DocumentStore
	ioPolicy   retry.Policy
}

var _ driving.Ingestor = (*Ingestor)(nil)

// NewIngestor wires the pipeline's collaborators together.
func NewIngestor(
	objects driven.ObjectStore,
	registry driven.NormaliserRegistry,
	pipeline ChunkPipeline,
	batcher *EmbeddingBatcher,
	detector *ChangeDetector,
	classifier *PathClassifier,
	store driven.DocumentStore,
) *Ingestor {
	return &Ingestor{
		objects:    objects,
		registry:   registry,
		pipeline:   pipeline,
		batcher:    batcher,
		detector:   detector,
		classifier: classifier,
		store:      store,
		ioPolicy:   retry.DefaultPolicy,
	}
}

// IngestOne processes a single object end to end. force bypasses
// change detection. Steps run strictly in order; any failure
// propagates to the worker, where retry policy is decided.
func (s *Ingestor) IngestOne(ctx context.Context, storagePath string, kind domain.Kind, force bool) (*driving.Outcome, error) {
	logger.Debug("ingesting %s (%s)", storagePath, kind)

	var raw []byte
	err := retry.Do(ctx, s.ioPolicy, retry.IsTransient, func(ctx context.Context) error {
		var dlErr error
		raw, dlErr = s.objects.Download(ctx, storagePath)
		return dlErr
	})
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", storagePath, err)
	}

	normalised, err := s.registry.Normalise(ctx, &domain.RawObject{
		StoragePath: storagePath,
		Kind:        kind,
		Content:     raw,
	})
	if err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(normalised.Content)

	if !force {
		decision, existing, err := s.detector.ShouldIngest(ctx, storagePath, fingerprint, kind)
		if err != nil {
			return nil, err
		}
		if decision == DecisionSkip {
			logger.Debug("%s unchanged, skipping", storagePath)
			metrics.FilesIngested.WithLabelValues("skipped").Inc()
			count, err := s.store.CountChunks(ctx, existing.Ref())
			if err != nil {
				return nil, fmt.Errorf("counting chunks for %s: %w", storagePath, err)
			}
			return &driving.Outcome{
				Kind:       driving.OutcomeSkipped,
				DocumentID: existing.ID,
				ChunkCount: count,
			}, nil
		}
	}

	chunks, err := s.pipeline.Process(ctx, normalised.Content)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", storagePath, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s produced no chunks: %w", storagePath, domain.ErrEmptyContent)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.batcher.EmbedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %s: %w", storagePath, err)
	}

	cls := s.classifier.Classify(storagePath, kind, raw)
	doc := &domain.Document{
		Kind:        kind,
		StoragePath: storagePath,
		Fingerprint: fingerprint,
		DisplayName: cls.DisplayName,
		TeamName:    cls.TeamName,
		ProjectName: cls.ProjectName,
		FileName:    cls.FileName,
		FigmaURL:    cls.FigmaURL,
		PRDFileName: cls.PRDFileName,
	}
	if doc.DisplayName == "" {
		doc.DisplayName = normalised.Title
	}
	if kind == domain.KindDesign {
		doc.ImageURL = s.objects.PublicURL(siblingPath(storagePath, screenshotName))
	}

	id, err := s.store.Upsert(ctx, doc, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("storing %s: %w", storagePath, err)
	}

	metrics.FilesIngested.WithLabelValues("ingested").Inc()
	metrics.ChunksWritten.Add(float64(len(chunks)))
	logger.Info("ingested %s: %d chunks", storagePath, len(chunks))

	return &driving.Outcome{
		Kind:       driving.OutcomeIngested,
		DocumentID: id,
		ChunkCount: len(chunks),
	}, nil
}

// Fingerprint returns the lowercase hex SHA-256 digest of the UTF-8
// bytes of content. This is the persisted change-detection key.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// siblingPath replaces the final segment of path with name.
func siblingPath(path, name string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i+1] + name
	}
	return name
}
