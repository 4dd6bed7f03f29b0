package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrag/specrag-cli/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "specrag.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func vec(dims int, fill float32) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestUpsertInsertAndFind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &domain.Document{
		Kind:        domain.KindDesign,
		StoragePath: "designs/Team_1:2/P/F/Page_3:4/Screen_5:6/data.json",
		Fingerprint: "abc123",
		DisplayName: "Page",
		TeamName:    "Team",
		ProjectName: "P",
		FileName:    "F",
		ImageURL:    "https://example.com/screenshot.png",
		FigmaURL:    "https://figma.com/file/x",
	}
	chunks := []domain.Chunk{{Text: "first"}, {Text: "second"}}
	vectors := [][]float32{vec(4, 1), vec(4, 2)}

	id, err := store.Upsert(ctx, doc, chunks, vectors)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	found, err := store.FindByPath(ctx, domain.KindDesign, doc.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, "abc123", found.Fingerprint)
	assert.Equal(t, "Team", found.TeamName)
	assert.Equal(t, "https://figma.com/file/x", found.FigmaURL)
	assert.False(t, found.CreatedAt.IsZero())

	count, err := store.CountChunks(ctx, domain.DesignRef(id))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestFindByPathNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindByPath(context.Background(), domain.KindPRD, "prds/none.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpsertKeepsIdentityAndReplacesChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &domain.Document{
		Kind:        domain.KindPRD,
		StoragePath: "prds/Growth/roadmap.txt",
		Fingerprint: "v1",
		DisplayName: "roadmap",
		TeamName:    "Growth",
		PRDFileName: "roadmap.txt",
	}

	id1, err := store.Upsert(ctx, doc,
		[]domain.Chunk{{Text: "a"}, {Text: "b"}, {Text: "c"}},
		[][]float32{vec(4, 1), vec(4, 2), vec(4, 3)})
	require.NoError(t, err)

	doc.Fingerprint = "v2"
	id2, err := store.Upsert(ctx, doc,
		[]domain.Chunk{{Text: "x"}, {Text: "y"}},
		[][]float32{vec(4, 4), vec(4, 5)})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	chunks, err := store.GetChunks(ctx, domain.PRDRef(id1))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "x", chunks[0].Text)
	assert.Equal(t, "y", chunks[1].Text)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, 1, chunks[1].Position)

	found, err := store.FindByPath(ctx, domain.KindPRD, doc.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, "v2", found.Fingerprint)
}

func TestChunkEmbeddingPairingRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Upsert(ctx, &domain.Document{
		Kind:        domain.KindPRD,
		StoragePath: "prds/T/doc.txt",
		Fingerprint: "fp",
	},
		[]domain.Chunk{{Text: "one"}, {Text: "two"}},
		[][]float32{{1.5, -2.25, 3}, {0, 0.125, -1}})
	require.NoError(t, err)

	chunks, err := store.GetChunks(ctx, domain.PRDRef(id))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	first, err := store.GetEmbedding(ctx, chunks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2.25, 3}, first)

	second, err := store.GetEmbedding(ctx, chunks[1].ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.125, -1}, second)
}

func TestDimensionalityGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, &domain.Document{
		Kind:        domain.KindPRD,
		StoragePath: "prds/T/first.txt",
		Fingerprint: "fp1",
	}, []domain.Chunk{{Text: "a"}}, [][]float32{vec(8, 1)})
	require.NoError(t, err)

	dims, err := store.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, dims)

	_, err = store.Upsert(ctx, &domain.Document{
		Kind:        domain.KindPRD,
		StoragePath: "prds/T/second.txt",
		Fingerprint: "fp2",
	}, []domain.Chunk{{Text: "b"}}, [][]float32{vec(16, 1)})
	assert.ErrorIs(t, err, domain.ErrSchemaInconsistency)
}

func TestCountChunksIncludesLegacyPRDLinkage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Upsert(ctx, &domain.Document{
		Kind:        domain.KindPRD,
		StoragePath: "prds/T/legacy.txt",
		Fingerprint: "fp",
	}, []domain.Chunk{{Text: "current"}}, [][]float32{vec(4, 1)})
	require.NoError(t, err)

	// A row written by the older data model: linked only through the
	// legacy column.
	_, err = store.db.Exec(`
		INSERT INTO chunks (id, parent_kind, parent_id, legacy_prd_id, position, content)
		VALUES ('legacy-chunk', 'prd', 'orphaned-parent', ?, 0, 'old text')`, id)
	require.NoError(t, err)

	count, err := store.CountChunks(ctx, domain.PRDRef(id))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Re-ingestion clears legacy rows along with current ones.
	_, err = store.Upsert(ctx, &domain.Document{
		Kind:        domain.KindPRD,
		StoragePath: "prds/T/legacy.txt",
		Fingerprint: "fp2",
	}, []domain.Chunk{{Text: "fresh"}}, [][]float32{vec(4, 2)})
	require.NoError(t, err)

	count, err = store.CountChunks(ctx, domain.PRDRef(id))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEmbeddingsCascadeWithChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Upsert(ctx, &domain.Document{
		Kind:        domain.KindPRD,
		StoragePath: "prds/T/doc.txt",
		Fingerprint: "fp",
	}, []domain.Chunk{{Text: "a"}}, [][]float32{vec(4, 1)})
	require.NoError(t, err)

	chunks, err := store.GetChunks(ctx, domain.PRDRef(id))
	require.NoError(t, err)
	oldChunkID := chunks[0].ID

	_, err = store.Upsert(ctx, &domain.Document{
		Kind:        domain.KindPRD,
		StoragePath: "prds/T/doc.txt",
		Fingerprint: "fp2",
	}, []domain.Chunk{{Text: "b"}}, [][]float32{vec(4, 2)})
	require.NoError(t, err)

	_, err = store.GetEmbedding(ctx, oldChunkID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVectorCodecRoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, 3.14159, -2.71828}
	out, err := bytesToFloat32Slice(float32SliceToBytes(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = bytesToFloat32Slice([]byte{1, 2, 3})
	assert.Error(t, err)
}
