// Package filesystem implements the object store over a local
// directory tree, for development and tests. Paths stay
// slash-delimited and relative to the root, mirroring bucket
// semantics.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/logger"
)

// Store serves objects from a directory tree.
type Store struct {
	root string
}

var (
	_ driven.ObjectStore = (*Store)(nil)
	_ driven.Watcher     = (*Store)(nil)
)

// New creates a store rooted at dir.
func New(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("object store root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("object store root %s is not a directory: %w", dir, domain.ErrInvalidInput)
	}
	return &Store{root: dir}, nil
}

func (s *Store) abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// List returns the immediate children of prefix.
func (s *Store) List(_ context.Context, prefix string) ([]driven.Entry, error) {
	dirEntries, err := os.ReadDir(s.abs(prefix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		// Listing a file yields no children, matching bucket
		// semantics.
		if info, statErr := os.Stat(s.abs(prefix)); statErr == nil && !info.IsDir() {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}

	prefix = strings.Trim(prefix, "/")
	var entries []driven.Entry
	for _, de := range dirEntries {
		path := de.Name()
		if prefix != "" {
			path = prefix + "/" + de.Name()
		}

		entry := driven.Entry{Path: path, IsFileHint: !de.IsDir()}
		if info, err := de.Info(); err == nil && !de.IsDir() {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Download reads the object at path.
func (s *Store) Download(_ context.Context, path string) ([]byte, error) {
	content, err := os.ReadFile(s.abs(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("object %s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return content, nil
}

// PublicURL returns a file URL for path.
func (s *Store) PublicURL(path string) string {
	return "file://" + filepath.ToSlash(s.abs(path))
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Watch emits an event per created or modified file under prefix until
// ctx is cancelled. New directories are added to the watch as they
// appear.
func (s *Store) Watch(ctx context.Context, prefix string) (<-chan driven.WatchEvent, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	rootDir := s.abs(prefix)
	if err := addRecursive(watcher, rootDir); err != nil {
		watcher.Close()
		return nil, err
	}

	events := make(chan driven.WatchEvent)
	go func() {
		defer close(events)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}

				info, err := os.Stat(ev.Name)
				if err != nil {
					continue
				}
				if info.IsDir() {
					if err := addRecursive(watcher, ev.Name); err != nil {
						logger.Warn("watching new directory %s: %v", ev.Name, err)
					}
					continue
				}

				rel, err := filepath.Rel(s.root, ev.Name)
				if err != nil {
					continue
				}
				select {
				case events <- driven.WatchEvent{Path: filepath.ToSlash(rel)}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("filesystem watch: %v", err)
			}
		}
	}()

	return events, nil
}

func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
