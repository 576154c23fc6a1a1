package storage

import "errors"

var (
	// ErrIndexUnavailable wraps every transport or backend failure of an index.
	ErrIndexUnavailable = errors.New("index unavailable")

	ErrQdrantUnreachable = errors.New("qdrant server unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrLengthMismatch    = errors.New("ids and segments differ in length")
)
