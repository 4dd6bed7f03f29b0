package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestListClassifiesFilesAndFolders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "prds/GrowthTeam/roadmap.txt", "content")
	writeFile(t, root, "prds/GrowthTeam/notes.md", "notes")

	store, err := New(root)
	require.NoError(t, err)

	entries, err := store.List(context.Background(), "prds")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "prds/GrowthTeam", entries[0].Path)
	assert.False(t, entries[0].IsFileHint)

	entries, err = store.List(context.Background(), "prds/GrowthTeam")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, e.IsFileHint)
		assert.Greater(t, e.Size, int64(0))
	}
}

func TestListMissingPrefixIsEmpty(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	entries, err := store.List(context.Background(), "does/not/exist")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListFileYieldsNoChildren(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "prds/doc.txt", "content")

	store, err := New(root)
	require.NoError(t, err)

	entries, err := store.List(context.Background(), "prds/doc.txt")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "prds/doc.txt", "hello")

	store, err := New(root)
	require.NoError(t, err)

	content, err := store.Download(context.Background(), "prds/doc.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)

	_, err = store.Download(context.Background(), "prds/missing.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewRejectsMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestWatchEmitsCreatedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "prds/existing.txt", "x")

	store, err := New(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := store.Watch(ctx, "prds")
	require.NoError(t, err)

	// Give the watcher a moment before writing.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, root, "prds/new.txt", "fresh")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev == (driven.WatchEvent{Path: "prds/new.txt"}) {
				return
			}
		case <-deadline:
			t.Fatal("no watch event received")
		}
	}
}
