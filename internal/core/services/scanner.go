package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/core/ports/driving"
	"github.com/specrag/specrag-cli/internal/logger"
)

// Root maps a storage prefix to the document kind found beneath it.
type Root struct {
	Prefix string
	Kind   domain.Kind
}

// entryClass is the scanner's three-valued entry classification.
type entryClass int

const (
	entryFile entryClass = iota
	entryFolder
	entryAmbiguous
)

// Scanner walks the object store and enqueues one job per ingestable
// file.
type Scanner struct {
	objects     driven.ObjectStore
	queue       driven.JobQueue
	registry    driven.NormaliserRegistry
	roots       []Root
	maxAttempts int
}

var _ driving.Scanner = (*Scanner)(nil)

// ScannerOption configures the scanner.
type ScannerOption func(*Scanner)

// WithJobMaxAttempts overrides the attempt budget on enqueued jobs.
// Zero leaves the queue's default in place.
func WithJobMaxAttempts(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewScanner creates a scanner over the given roots.
func NewScanner(objects driven.ObjectStore, queue driven.JobQueue, registry driven.NormaliserRegistry, roots []Root, opts ...ScannerOption) *Scanner {
	s := &Scanner{objects: objects, queue: queue, registry: registry, roots: roots}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan lists every root recursively and enqueues jobs for the files a
// normaliser can handle. Files already queued or active are not
// duplicated. Returns the number of newly enqueued jobs.
func (s *Scanner) Scan(ctx context.Context, force bool) (int, error) {
	type found struct {
		path string
		kind domain.Kind
	}

	var files []found
	for _, root := range s.roots {
		paths, err := s.walk(ctx, root.Prefix)
		if err != nil {
			return 0, fmt.Errorf("scanning %s: %w", root.Prefix, err)
		}
		for _, p := range paths {
			files = append(files, found{path: p, kind: root.Kind})
		}
	}

	var ingestable []found
	for _, f := range files {
		if _, err := s.registry.ForPath(f.path); err != nil {
			logger.Debug("skipping %s: no normaliser", f.path)
			continue
		}
		ingestable = append(ingestable, f)
	}

	enqueued := 0
	for i, f := range ingestable {
		_, created, err := s.queue.Enqueue(ctx, &domain.IngestJob{
			StoragePath: f.path,
			Kind:        f.kind,
			Position:    i + 1,
			Total:       len(ingestable),
			Force:       force,
			MaxAttempts: s.maxAttempts,
		})
		if err != nil {
			return enqueued, fmt.Errorf("enqueueing %s: %w", f.path, err)
		}
		if created {
			enqueued++
		}
	}

	logger.Info("scan found %d files, enqueued %d new jobs", len(ingestable), enqueued)
	return enqueued, nil
}

// walk lists prefix recursively and returns the file paths beneath it.
func (s *Scanner) walk(ctx context.Context, prefix string) ([]string, error) {
	entries, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		switch s.classifyEntry(e) {
		case entryFile:
			files = append(files, e.Path)
		case entryFolder:
			children, err := s.walk(ctx, e.Path)
			if err != nil {
				return nil, err
			}
			files = append(files, children...)
		case entryAmbiguous:
			// Resolve with exactly one probe: an entry with children
			// is a folder, one without is an extension-less file.
			children, err := s.objects.List(ctx, e.Path)
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				files = append(files, e.Path)
				continue
			}
			grandchildren, err := s.walk(ctx, e.Path)
			if err != nil {
				return nil, err
			}
			files = append(files, grandchildren...)
		}
	}
	return files, nil
}

// classifyEntry decides file vs folder vs ambiguous. A recognised
// extension means file; a folder hint from the store means folder; an
// identity-bearing entry without a recognised extension is ambiguous
// because the store does not reliably distinguish the two.
func (s *Scanner) classifyEntry(e driven.Entry) entryClass {
	if hasRecognisedExtension(e.Path) {
		return entryFile
	}
	if !e.IsFileHint {
		return entryFolder
	}
	return entryAmbiguous
}

// recognisedExtensions covers everything the pipeline or its siblings
// produce, so that classification does not depend on which normalisers
// happen to be registered.
var recognisedExtensions = map[string]bool{
	"txt": true, "md": true, "markdown": true, "json": true,
	"pdf": true, "png": true, "jpg": true, "jpeg": true, "svg": true,
	"csv": true, "html": true,
}

func hasRecognisedExtension(path string) bool {
	ext := domain.PathExtension(path)
	return ext != "" && recognisedExtensions[ext] && !strings.HasSuffix(path, "/")
}
