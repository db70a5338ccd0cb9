package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Firebreather-heart/sensei/internal/metrics"
)

// PostgresStore is a document store backed by PostgreSQL. All collections
// share one table with a JSONB column, so the store keeps the same flat
// document semantics as the badger backend: no joins, no multi-document
// transactions.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL and ensures the documents table.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		doc        JSONB NOT NULL,
		PRIMARY KEY (collection, id)
	)`)
	if err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Get returns the document with the given id, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("get", time.Since(start)) }()

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return raw, nil
}

// Query returns all documents whose field equals value.
func (s *PostgresStore) Query(ctx context.Context, collection, field string, value any) ([]Document, error) {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("query", time.Since(start)) }()

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode query value: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND doc->$2 = $3::jsonb`,
		collection, field, string(encoded))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return collectRows(rows)
}

// QueryContains returns all documents whose array field contains value.
func (s *PostgresStore) QueryContains(ctx context.Context, collection, field, value string) ([]Document, error) {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("query_contains", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND doc->$2 ? $3`,
		collection, field, value)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return collectRows(rows)
}

func collectRows(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		results = append(results, Document(raw))
	}
	return results, rows.Err()
}

// Set writes the full document, creating or replacing it.
func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc any) error {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("set", time.Since(start)) }()

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc`,
		collection, id, raw)
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

// Update merges fields into an existing document.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("update", time.Since(start)) }()

	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET doc = doc || $3::jsonb WHERE collection = $1 AND id = $2`,
		collection, id, string(patch))
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	defer func() { metrics.RecordDocstoreOp("delete", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
