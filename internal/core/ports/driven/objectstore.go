package driven

import "context"

// Entry is one listing result from an object store.
type Entry struct {
	// Path is the full slash-delimited object or prefix path.
	Path string

	// IsFileHint is the store's best guess at whether the entry is an
	// object rather than a prefix. Stores without reliable metadata may
	// guess wrong; the scanner resolves ambiguity itself.
	IsFileHint bool

	// Size is the object size in bytes when known, else zero.
	Size int64
}

// ObjectStore is a read-only view of the corpus bucket or directory.
type ObjectStore interface {
	// List returns the immediate children of prefix, non-recursively.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Download fetches the object at path.
	Download(ctx context.Context, path string) ([]byte, error)

	// PublicURL returns the externally reachable URL for path.
	PublicURL(path string) string

	// Close releases client resources.
	Close() error
}

// WatchEvent signals that an object changed in the store.
type WatchEvent struct {
	Path string
}

// Watcher is implemented by object stores that can push change events,
// used by the worker's watch mode.
type Watcher interface {
	// Watch emits an event per created or modified object under prefix
	// until ctx is cancelled.
	Watch(ctx context.Context, prefix string) (<-chan WatchEvent, error)
}
