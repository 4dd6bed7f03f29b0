package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
)

const dimensionsKey = "embedding_dimensions"

var _ driven.DocumentStore = (*Store)(nil)

// FindByPath looks up a document of the given kind by storage path.
func (s *Store) FindByPath(ctx context.Context, kind domain.Kind, storagePath string) (*domain.Document, error) {
	switch kind {
	case domain.KindDesign:
		row := s.db.QueryRowContext(ctx, `
			SELECT id, storage_path, fingerprint, display_name, team_name,
			       project_name, file_name, image_url, figma_url, created_at, updated_at
			FROM designs WHERE storage_path = ?`, storagePath)
		return scanDesign(row)
	case domain.KindPRD:
		row := s.db.QueryRowContext(ctx, `
			SELECT id, storage_path, fingerprint, display_name, team_name,
			       file_name, created_at, updated_at
			FROM prds WHERE storage_path = ?`, storagePath)
		return scanPRD(row)
	default:
		return nil, fmt.Errorf("kind %q has no document table: %w", kind, domain.ErrInvalidInput)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDesign(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var team, project, file, image, figma sql.NullString
	var created, updated string

	err := row.Scan(&doc.ID, &doc.StoragePath, &doc.Fingerprint, &doc.DisplayName,
		&team, &project, &file, &image, &figma, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("design: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning design: %w", err)
	}

	doc.Kind = domain.KindDesign
	doc.TeamName = fromNullString(team)
	doc.ProjectName = fromNullString(project)
	doc.FileName = fromNullString(file)
	doc.ImageURL = fromNullString(image)
	doc.FigmaURL = fromNullString(figma)
	if doc.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &doc, nil
}

func scanPRD(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var team, file sql.NullString
	var created, updated string

	err := row.Scan(&doc.ID, &doc.StoragePath, &doc.Fingerprint, &doc.DisplayName,
		&team, &file, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prd: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning prd: %w", err)
	}

	doc.Kind = domain.KindPRD
	doc.TeamName = fromNullString(team)
	doc.PRDFileName = fromNullString(file)
	if doc.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Upsert writes the document, replaces its chunks and writes one
// embedding per chunk. The parent write, child delete and child insert
// are separate statements; a crash in between is healed on the next
// pass by the change detector's chunk-presence check.
func (s *Store) Upsert(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) (string, error) {
	if len(chunks) != len(vectors) {
		return "", fmt.Errorf("chunk/vector count mismatch (%d vs %d): %w",
			len(chunks), len(vectors), domain.ErrInvalidInput)
	}

	if err := s.checkDimensions(ctx, vectors); err != nil {
		return "", err
	}

	id, err := s.upsertParent(ctx, doc)
	if err != nil {
		return "", err
	}
	ref := domain.ParentRef{Kind: doc.Kind, ID: id}

	if err := s.deleteChunks(ctx, ref); err != nil {
		return "", err
	}
	if err := s.insertChunks(ctx, ref, chunks, vectors); err != nil {
		return "", err
	}

	return id, nil
}

// checkDimensions enforces one dimensionality across the corpus,
// recording it on first write.
func (s *Store) checkDimensions(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("vector %d has dimensionality %d, expected %d: %w",
				i, len(v), dims, domain.ErrSchemaInconsistency)
		}
	}

	stored, err := s.Dimensions(ctx)
	if err != nil {
		return err
	}
	if stored == 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO corpus_meta (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			dimensionsKey, strconv.Itoa(dims))
		if err != nil {
			return fmt.Errorf("recording corpus dimensionality: %w", err)
		}
		return nil
	}
	if stored != dims {
		return fmt.Errorf("corpus dimensionality is %d, new vectors have %d (full re-index required): %w",
			stored, dims, domain.ErrSchemaInconsistency)
	}
	return nil
}

func (s *Store) upsertParent(ctx context.Context, doc *domain.Document) (string, error) {
	now := formatTime(time.Now())

	existing, err := s.FindByPath(ctx, doc.Kind, doc.StoragePath)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	switch doc.Kind {
	case domain.KindDesign:
		if existing != nil {
			_, err := s.db.ExecContext(ctx, `
				UPDATE designs SET fingerprint = ?, display_name = ?, team_name = ?,
				       project_name = ?, file_name = ?, image_url = ?, figma_url = ?,
				       updated_at = ?
				WHERE id = ?`,
				doc.Fingerprint, doc.DisplayName, nullString(doc.TeamName),
				nullString(doc.ProjectName), nullString(doc.FileName),
				nullString(doc.ImageURL), nullString(doc.FigmaURL), now, existing.ID)
			if err != nil {
				return "", fmt.Errorf("updating design %s: %w", doc.StoragePath, err)
			}
			return existing.ID, nil
		}

		id := uuid.NewString()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO designs (id, storage_path, fingerprint, display_name, team_name,
			       project_name, file_name, image_url, figma_url, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, doc.StoragePath, doc.Fingerprint, doc.DisplayName, nullString(doc.TeamName),
			nullString(doc.ProjectName), nullString(doc.FileName),
			nullString(doc.ImageURL), nullString(doc.FigmaURL), now, now)
		if err != nil {
			return "", fmt.Errorf("inserting design %s: %w", doc.StoragePath, err)
		}
		return id, nil

	case domain.KindPRD:
		if existing != nil {
			_, err := s.db.ExecContext(ctx, `
				UPDATE prds SET fingerprint = ?, display_name = ?, team_name = ?,
				       file_name = ?, updated_at = ?
				WHERE id = ?`,
				doc.Fingerprint, doc.DisplayName, nullString(doc.TeamName),
				nullString(doc.PRDFileName), now, existing.ID)
			if err != nil {
				return "", fmt.Errorf("updating prd %s: %w", doc.StoragePath, err)
			}
			return existing.ID, nil
		}

		id := uuid.NewString()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO prds (id, storage_path, fingerprint, display_name, team_name,
			       file_name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, doc.StoragePath, doc.Fingerprint, doc.DisplayName,
			nullString(doc.TeamName), nullString(doc.PRDFileName), now, now)
		if err != nil {
			return "", fmt.Errorf("inserting prd %s: %w", doc.StoragePath, err)
		}
		return id, nil

	default:
		return "", fmt.Errorf("kind %q has no document table: %w", doc.Kind, domain.ErrInvalidInput)
	}
}

// deleteChunks removes the parent's chunks; embeddings cascade. PRD
// parents also clear rows linked through the legacy column.
func (s *Store) deleteChunks(ctx context.Context, ref domain.ParentRef) error {
	query := `DELETE FROM chunks WHERE parent_kind = ? AND parent_id = ?`
	args := []any{string(ref.Kind), ref.ID}
	if ref.Kind == domain.KindPRD {
		query = `DELETE FROM chunks WHERE (parent_kind = ? AND parent_id = ?) OR legacy_prd_id = ?`
		args = append(args, ref.ID)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting chunks for %s %s: %w", ref.Kind, ref.ID, err)
	}
	return nil
}

// insertChunks writes chunks and their embeddings in array order
// within one transaction, assigning positions 0..N-1.
func (s *Store) insertChunks(ctx context.Context, ref domain.ParentRef, chunks []domain.Chunk, vectors [][]float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning chunk insert: %w", err)
	}
	defer tx.Rollback()

	insertChunk, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, parent_kind, parent_id, position, content) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer insertChunk.Close()

	insertEmbedding, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (chunk_id, vector, dimensions) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing embedding insert: %w", err)
	}
	defer insertEmbedding.Close()

	for i, chunk := range chunks {
		id := chunk.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := insertChunk.ExecContext(ctx, id, string(ref.Kind), ref.ID, i, chunk.Text); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
		if _, err := insertEmbedding.ExecContext(ctx, id,
			float32SliceToBytes(vectors[i]), len(vectors[i])); err != nil {
			return fmt.Errorf("inserting embedding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunk insert: %w", err)
	}
	return nil
}

// CountChunks counts the parent's chunks. PRD parents also count rows
// linked through the legacy column, which is equivalent evidence that
// a prior ingestion completed.
func (s *Store) CountChunks(ctx context.Context, parent domain.ParentRef) (int, error) {
	query := `SELECT COUNT(*) FROM chunks WHERE parent_kind = ? AND parent_id = ?`
	args := []any{string(parent.Kind), parent.ID}
	if parent.Kind == domain.KindPRD {
		query = `SELECT COUNT(*) FROM chunks WHERE (parent_kind = ? AND parent_id = ?) OR legacy_prd_id = ?`
		args = append(args, parent.ID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks for %s %s: %w", parent.Kind, parent.ID, err)
	}
	return count, nil
}

// GetChunks returns the parent's chunks ordered by position.
func (s *Store) GetChunks(ctx context.Context, parent domain.ParentRef) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, position, content FROM chunks
		WHERE parent_kind = ? AND parent_id = ?
		ORDER BY position`, string(parent.Kind), parent.ID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks for %s %s: %w", parent.Kind, parent.ID, err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		c := domain.Chunk{Parent: parent}
		if err := rows.Scan(&c.ID, &c.Position, &c.Text); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetEmbedding returns a chunk's stored vector.
func (s *Store) GetEmbedding(ctx context.Context, chunkID string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT vector FROM embeddings WHERE chunk_id = ?`, chunkID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("embedding for chunk %s: %w", chunkID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading embedding for chunk %s: %w", chunkID, err)
	}
	return bytesToFloat32Slice(blob)
}

// Dimensions returns the recorded corpus dimensionality, zero when no
// embedding has been written yet.
func (s *Store) Dimensions(ctx context.Context) (int, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM corpus_meta WHERE key = ?`, dimensionsKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading corpus dimensionality: %w", err)
	}

	dims, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("corpus dimensionality %q is not a number: %w", value, domain.ErrSchemaInconsistency)
	}
	return dims, nil
}
