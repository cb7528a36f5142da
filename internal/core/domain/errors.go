package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a MIME type no extractor handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrForbidden indicates the authorizer denied the action.
	ErrForbidden = errors.New("forbidden")

	// ErrInUse indicates a document is still referenced by analyses
	// or generated fragments and cannot be deleted.
	ErrInUse = errors.New("in use")

	// ErrNotYetVisible indicates a message refers to a row that is not
	// committed yet. Consumers treat it as a soft, retryable miss.
	ErrNotYetVisible = errors.New("not yet visible")

	// Embedding Errors.

	// ErrEmbeddingUnavailable indicates the requested embedding model is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrDimensionMismatch indicates a vector does not match the model dimensionality.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)
