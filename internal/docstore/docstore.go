// Package docstore provides a flat document store with per-collection
// documents addressed by id. It is the only persistence layer in the
// system: get by id, query by field equality, query by array membership,
// set, partial update and delete. There are no multi-document
// transactions; every mutation touches exactly one document.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a raw JSON document as stored.
type Document = json.RawMessage

// Store is a flat document store.
type Store interface {
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Query returns all documents whose field equals value.
	Query(ctx context.Context, collection, field string, value any) ([]Document, error)

	// QueryContains returns all documents whose array field contains value.
	QueryContains(ctx context.Context, collection, field, value string) ([]Document, error)

	// Set writes the full document, creating or replacing it.
	Set(ctx context.Context, collection, id string, doc any) error

	// Update merges fields into an existing document, or returns ErrNotFound.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes the document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Close releases the underlying storage.
	Close() error
}

// jsonEqual reports whether two values are equal after JSON normalization.
// Field values decoded from stored documents arrive as float64/string/bool,
// so direct comparison against caller-supplied values is unreliable.
func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// fieldMatches reports whether the document field equals value.
func fieldMatches(doc map[string]any, field string, value any) bool {
	v, ok := doc[field]
	if !ok {
		return jsonEqual(nil, value)
	}
	return jsonEqual(v, value)
}

// arrayContains reports whether the document field is an array containing value.
func arrayContains(doc map[string]any, field, value string) bool {
	arr, ok := doc[field].([]any)
	if !ok {
		return false
	}
	for _, item := range arr {
		if s, ok := item.(string); ok && s == value {
			return true
		}
	}
	return false
}

// mergeFields applies a partial update to a stored document and returns
// the re-encoded result.
func mergeFields(raw []byte, fields map[string]any) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for k, v := range fields {
		doc[k] = v
	}
	return json.Marshal(doc)
}
