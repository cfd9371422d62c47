package vector

import "errors"

var (
	// ErrNotFound is returned when a document is not found in the vector store.
	ErrNotFound = errors.New("document not found")

	// ErrWrite is returned when storing or deleting documents fails.
	ErrWrite = errors.New("vector store write failed")

	// ErrQuery is returned when a similarity or lookup query fails.
	ErrQuery = errors.New("vector store query failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
