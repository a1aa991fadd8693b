// Package docstore provides a document-oriented persistence layer backed by
// SQLite. Documents are JSON blobs addressed by (collection, id); nested
// collections use slash-separated paths such as "Posts/<postId>/Comments".
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// Sentinel errors returned by Store operations.
var (
	// ErrNotFound indicates no document exists at the requested key.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrExists indicates a Create targeted a key that is already occupied.
	ErrExists = errors.New("docstore: document already exists")
)

// Store is the document-store interface consumed by the service layers.
type Store interface {
	// Create inserts a new document and fails with ErrExists if the key is
	// already occupied.
	Create(ctx context.Context, collection, id string, doc any) error

	// Set writes a document unconditionally, overwriting any existing one.
	Set(ctx context.Context, collection, id string, doc any) error

	// Get unmarshals the document at (collection, id) into out, returning
	// ErrNotFound when absent.
	Get(ctx context.Context, collection, id string, out any) error

	// Delete removes the document at (collection, id). Deleting a missing
	// document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// List returns the raw JSON of every document in a collection, ordered
	// by id.
	List(ctx context.Context, collection string) ([]json.RawMessage, error)

	// Query returns the raw JSON of documents whose top-level field equals
	// the given value, ordered by id.
	Query(ctx context.Context, collection, field string, value any) ([]json.RawMessage, error)

	// Increment atomically adds delta to an integer field of the document,
	// creating the document with {field: delta} when it does not exist.
	Increment(ctx context.Context, collection, id, field string, delta int64) error
}

// DecodeAll unmarshals a slice of raw documents into typed values.
func DecodeAll[T any](raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
