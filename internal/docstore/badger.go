package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/Firebreather-heart/sensei/internal/metrics"
)

// BadgerStore is a document store backed by an embedded BadgerDB.
// Documents are stored as JSON under "<collection>/<id>" keys; queries
// scan the collection prefix. This keeps the flat-document model of the
// interface: there are no secondary indexes and no cross-key transactions
// beyond the single read-modify-write used by Update.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func docKey(collection, id string) []byte {
	return []byte(collection + "/" + id)
}

func collectionPrefix(collection string) []byte {
	return []byte(collection + "/")
}

// Get returns the document with the given id, or ErrNotFound.
func (s *BadgerStore) Get(ctx context.Context, collection, id string) (Document, error) {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("get", time.Since(start)) }()

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(collection, id))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return raw, nil
}

// Query returns all documents whose field equals value.
func (s *BadgerStore) Query(ctx context.Context, collection, field string, value any) ([]Document, error) {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("query", time.Since(start)) }()

	return s.scan(collection, func(doc map[string]any) bool {
		return fieldMatches(doc, field, value)
	})
}

// QueryContains returns all documents whose array field contains value.
func (s *BadgerStore) QueryContains(ctx context.Context, collection, field, value string) ([]Document, error) {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("query_contains", time.Since(start)) }()

	return s.scan(collection, func(doc map[string]any) bool {
		return arrayContains(doc, field, value)
	})
}

func (s *BadgerStore) scan(collection string, match func(map[string]any) bool) ([]Document, error) {
	var results []Document
	prefix := collectionPrefix(collection)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var doc map[string]any
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("decode document %s: %w", it.Item().Key(), err)
			}
			if match(doc) {
				results = append(results, Document(raw))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger scan: %w", err)
	}
	return results, nil
}

// Set writes the full document, creating or replacing it.
func (s *BadgerStore) Set(ctx context.Context, collection, id string, doc any) error {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("set", time.Since(start)) }()

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(collection, id), raw)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

// Update merges fields into an existing document.
func (s *BadgerStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("update", time.Since(start)) }()

	key := docKey(collection, id)
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		merged, err := mergeFields(raw, fields)
		if err != nil {
			return fmt.Errorf("merge document: %w", err)
		}
		return txn.Set(key, merged)
	})
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("badger update: %w", err)
	}
	return nil
}

// Delete removes the document.
func (s *BadgerStore) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("delete", time.Since(start)) }()

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(collection, id))
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
