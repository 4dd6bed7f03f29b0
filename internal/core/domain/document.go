package domain

import "time"

// Kind identifies the variant of a document record.
type Kind string

const (
	// KindDesign is a design export (JSON payload plus screenshot sibling).
	KindDesign Kind = "design"

	// KindPRD is a product requirements document (text or markdown).
	KindPRD Kind = "prd"

	// KindAsset is any other text asset discovered in the store.
	KindAsset Kind = "asset"
)

// Valid reports whether the kind is one the pipeline knows how to persist.
func (k Kind) Valid() bool {
	return k == KindDesign || k == KindPRD || k == KindAsset
}

// ParentRef identifies the document that owns a chunk.
// It is a tagged reference: exactly one kind, exactly one ID.
// This replaces the nullable-column-pair convention where a chunk row
// carried both a design FK and a PRD FK with only one populated.
type ParentRef struct {
	// Kind is the parent's document kind (design or prd).
	Kind Kind

	// ID is the parent document's identity.
	ID string
}

// DesignRef builds a parent reference to a design record.
func DesignRef(id string) ParentRef {
	return ParentRef{Kind: KindDesign, ID: id}
}

// PRDRef builds a parent reference to a PRD record.
func PRDRef(id string) ParentRef {
	return ParentRef{Kind: KindPRD, ID: id}
}

// Valid reports whether the reference carries both a kind and an ID.
func (r ParentRef) Valid() bool {
	return (r.Kind == KindDesign || r.Kind == KindPRD) && r.ID != ""
}

// Document is the parent entity retrieval operates over.
// A document is either a design or a PRD; the kind-specific fields are
// populated only for the matching kind.
type Document struct {
	// ID is stable across re-ingestion of the same storage path.
	ID string

	// Kind is design or prd.
	Kind Kind

	// StoragePath is the slash-delimited object path, unique per kind.
	StoragePath string

	// Fingerprint is the lowercase hex SHA-256 of the normalised content.
	Fingerprint string

	// DisplayName is the human-readable name derived from the path.
	DisplayName string

	// TeamName is the owning team, when the path encodes one.
	TeamName string

	// ProjectName is set for designs with a full path hierarchy.
	ProjectName string

	// FileName is the design file segment of the path hierarchy.
	FileName string

	// ImageURL points at the sibling screenshot, for designs.
	ImageURL string

	// FigmaURL is extracted from the design's JSON payload when present.
	FigmaURL string

	// PRDFileName is the literal filename (with extension) for PRDs.
	// Kept distinct from the design FileName field.
	PRDFileName string

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-ingested.
	UpdatedAt time.Time
}

// Ref returns the parent reference for this document's chunks.
func (d *Document) Ref() ParentRef {
	return ParentRef{Kind: d.Kind, ID: d.ID}
}

// Chunk is a contiguous slice of a document's normalised content,
// owned by exactly one document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// Parent identifies the owning document.
	Parent ParentRef

	// Position is the zero-based ordinal within the document.
	// It defines retrieval ordering and is contiguous per parent.
	Position int

	// Text is the chunk content.
	Text string
}

// Embedding is the fixed-length vector for exactly one chunk.
type Embedding struct {
	// ChunkID links one-to-one to the chunk.
	ChunkID string

	// Vector is the embedding, constant dimensionality across the corpus.
	Vector []float32
}
