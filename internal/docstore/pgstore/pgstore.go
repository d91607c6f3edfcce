// Package pgstore implements docstore.Store on a PostgreSQL JSONB table.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tierline/tierline/internal/docstore"
	"github.com/tierline/tierline/internal/platform/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data jsonb_path_ops);
`

// Store reads documents from the documents table.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the documents table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, schema); err != nil {
			return fmt.Errorf("pgstore: ensure schema: %w", err)
		}
		return nil
	})
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	const query = `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	var data map[string]any
	err := s.pool.QueryRow(ctx, query, normalizeCollection(collection), id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("pgstore: get %s/%s: %w", collection, id, err)
	}
	return docstore.Document{ID: id, Data: data}, nil
}

// Find implements docstore.Store.
func (s *Store) Find(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	containment, err := containmentJSON(filters)
	if err != nil {
		return nil, err
	}
	const query = `SELECT id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb ORDER BY id`
	rows, err := s.pool.Query(ctx, query, normalizeCollection(collection), containment)
	if err != nil {
		return nil, fmt.Errorf("pgstore: find %s: %w", collection, err)
	}
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (docstore.Document, error) {
		var doc docstore.Document
		err := row.Scan(&doc.ID, &doc.Data)
		return doc, err
	})
	if err != nil {
		return nil, fmt.Errorf("pgstore: scan %s: %w", collection, err)
	}
	return docs, nil
}

// Import upserts every document of fixture in one transaction and returns
// the number written.
func (s *Store) Import(ctx context.Context, fixture docstore.Fixture) (int, error) {
	const upsert = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`
	batch := &pgx.Batch{}
	err := fixture.Each(func(collection, id string, data map[string]any) error {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("pgstore: encode %s/%s: %w", collection, id, err)
		}
		batch.Queue(upsert, normalizeCollection(collection), id, string(raw))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("pgstore: import: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return batch.Len(), nil
}

// Close implements docstore.Store. The pool is owned by the caller.
func (s *Store) Close(context.Context) error {
	return nil
}

func normalizeCollection(collection string) string {
	return strings.Trim(collection, "/")
}

func containmentJSON(filters []docstore.Filter) (string, error) {
	obj := make(map[string]any, len(filters))
	for _, f := range filters {
		obj[f.Field] = f.Value
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("pgstore: encode filters: %w", err)
	}
	return string(raw), nil
}
