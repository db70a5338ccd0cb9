package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process document store. It is used by tests and by
// DOCSTORE_BACKEND=memory deployments where persistence is not needed.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string][]byte)}
}

// Get returns the document with the given id, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// Query returns all documents whose field equals value.
func (s *MemoryStore) Query(ctx context.Context, collection, field string, value any) ([]Document, error) {
	return s.scan(collection, func(doc map[string]any) bool {
		return fieldMatches(doc, field, value)
	})
}

// QueryContains returns all documents whose array field contains value.
func (s *MemoryStore) QueryContains(ctx context.Context, collection, field, value string) ([]Document, error) {
	return s.scan(collection, func(doc map[string]any) bool {
		return arrayContains(doc, field, value)
	})
}

func (s *MemoryStore) scan(collection string, match func(map[string]any) bool) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Document
	for _, raw := range s.collections[collection] {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		if match(doc) {
			out := make([]byte, len(raw))
			copy(out, raw)
			results = append(results, Document(out))
		}
	}
	return results, nil
}

// Set writes the full document, creating or replacing it.
func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string][]byte)
	}
	s.collections[collection][id] = raw
	return nil
}

// Update merges fields into an existing document.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeFields(raw, fields)
	if err != nil {
		return fmt.Errorf("merge document: %w", err)
	}
	s.collections[collection][id] = merged
	return nil
}

// Delete removes the document.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
