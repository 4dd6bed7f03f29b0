package domain

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed argument or entity.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyContent indicates normalisation produced no usable text.
	// Not retryable: the object will not grow text on a second attempt.
	ErrEmptyContent = errors.New("empty content")

	// ErrUnsupportedFormat indicates no normaliser handles the object.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrSchemaInconsistency indicates a write would violate a corpus
	// invariant, such as mismatched embedding dimensionality.
	ErrSchemaInconsistency = errors.New("schema inconsistency")

	// ErrJobNotClaimable indicates a claim raced with another worker.
	ErrJobNotClaimable = errors.New("job not claimable")
)
