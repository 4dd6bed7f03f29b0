// Package gcs implements the object store over a Google Cloud Storage
// bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
)

// Store reads the corpus from a GCS bucket.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

var _ driven.ObjectStore = (*Store)(nil)

// New creates a store over the named bucket. Credentials come from the
// ambient environment unless overridden via opts.
func New(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}
	return &Store{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
	}, nil
}

// List returns the immediate children of prefix. GCS has no real
// folders; prefixes returned by a delimited listing are reported as
// folder entries, objects as files.
func (s *Store) List(ctx context.Context, prefix string) ([]driven.Entry, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})

	var entries []driven.Entry
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}

		if attrs.Prefix != "" {
			entries = append(entries, driven.Entry{
				Path:       strings.TrimSuffix(attrs.Prefix, "/"),
				IsFileHint: false,
			})
			continue
		}
		if attrs.Name == prefix {
			// Placeholder object some tools create for the folder
			// itself.
			continue
		}
		entries = append(entries, driven.Entry{
			Path:       attrs.Name,
			IsFileHint: true,
			Size:       attrs.Size,
		})
	}
	return entries, nil
}

// Download fetches the object at path.
func (s *Store) Download(ctx context.Context, path string) ([]byte, error) {
	reader, err := s.bucket.Object(path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("object %s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return content, nil
}

// PublicURL returns the canonical public URL for path.
func (s *Store) PublicURL(path string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.name, path)
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
