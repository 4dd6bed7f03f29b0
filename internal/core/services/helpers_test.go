package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/specrag/specrag-cli/internal/core/ports/driven"
)

// fakeObjectStore serves a fixed set of objects keyed by path. Entries
// listed as folders get IsFileHint=false; paths in ambiguous are
// reported with IsFileHint=true even when they have children.
type fakeObjectStore struct {
	files       map[string][]byte
	ambiguous   map[string]bool
	downloadErr map[string][]error // consumed per call
	listCalls   []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		files:       make(map[string][]byte),
		ambiguous:   make(map[string]bool),
		downloadErr: make(map[string][]error),
	}
}

func (f *fakeObjectStore) put(path string, content []byte) {
	f.files[path] = content
}

func (f *fakeObjectStore) failNext(path string, errs ...error) {
	f.downloadErr[path] = append(f.downloadErr[path], errs...)
}

func (f *fakeObjectStore) List(_ context.Context, prefix string) ([]driven.Entry, error) {
	f.listCalls = append(f.listCalls, prefix)

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	seen := make(map[string]driven.Entry)
	for path := range f.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := path[len(prefix):]
		if rest == "" {
			continue
		}
		if i := strings.Index(rest, "/"); i >= 0 {
			child := prefix + rest[:i]
			seen[child] = driven.Entry{Path: child, IsFileHint: f.ambiguous[child]}
		} else {
			seen[path] = driven.Entry{Path: path, IsFileHint: true, Size: int64(len(f.files[path]))}
		}
	}

	var entries []driven.Entry
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (f *fakeObjectStore) Download(_ context.Context, path string) ([]byte, error) {
	if errs := f.downloadErr[path]; len(errs) > 0 {
		err := errs[0]
		f.downloadErr[path] = errs[1:]
		return nil, err
	}
	content, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("object %s does not exist", path)
	}
	return content, nil
}

func (f *fakeObjectStore) PublicURL(path string) string {
	return "https://objects.example.com/" + path
}

func (f *fakeObjectStore) Close() error { return nil }

// fakeEmbedder produces deterministic vectors and records batch sizes.
type fakeEmbedder struct {
	dims       int
	batchSizes []int
	failures   []error // consumed per EmbedBatch call
}

func newFakeEmbedder(dims int) *fakeEmbedder {
	return &fakeEmbedder{dims: dims}
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	v := make([]float32, f.dims)
	for i := range v {
		v[i] = float32(len(text)%7) + float32(i)
	}
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int           { return f.dims }
func (f *fakeEmbedder) ModelName() string         { return "fake-embedder" }
func (f *fakeEmbedder) Ping(context.Context) error { return nil }
func (f *fakeEmbedder) Close() error               { return nil }
