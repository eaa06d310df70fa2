package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ pgPool = (*pgxpool.Pool)(nil)

// PostgresStore keeps records as JSONB documents in a single records table.
type PostgresStore struct {
	pool pgPool
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create inserts the document unless (collection, id) already exists.
func (s *PostgresStore) Create(ctx context.Context, c Collection, id string, item any) error {
	if err := c.validate(id); err != nil {
		return err
	}
	doc, err := documentJSON(c, id, item)
	if err != nil {
		return err
	}
	const q = `INSERT INTO records (collection, id, doc, created_at)
		VALUES ($1, $2, $3::jsonb, COALESCE(($3::jsonb)->>'createdAt', ''))
		ON CONFLICT (collection, id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, q, c.Table, id, doc)
	if err != nil {
		return fmt.Errorf("insert %s: %w", c.Table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert %s %s: %w", c.Table, id, ErrAlreadyExists)
	}
	return nil
}

// Scan returns all documents of the collection.
func (s *PostgresStore) Scan(ctx context.Context, c Collection) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM records WHERE collection = $1`, c.Table)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.Table, err)
	}
	defer rows.Close()
	docs := []Document{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var d Document
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Update merges fields into an existing document.
func (s *PostgresStore) Update(ctx context.Context, c Collection, id string, fields Document) error {
	if err := c.validate(id); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("no fields to update")
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	const q = `UPDATE records SET doc = doc || $3::jsonb WHERE collection = $1 AND id = $2`
	tag, err := s.pool.Exec(ctx, q, c.Table, id, patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", c.Table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s %s: %w", c.Table, id, ErrNotFound)
	}
	return nil
}

// Delete removes a document and reports whether it existed.
func (s *PostgresStore) Delete(ctx context.Context, c Collection, id string) (bool, error) {
	if err := c.validate(id); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, c.Table, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", c.Table, err)
	}
	return tag.RowsAffected() > 0, nil
}

// documentJSON encodes item as a JSON object carrying the key attribute.
func documentJSON(c Collection, id string, item any) ([]byte, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("item is not an object: %w", err)
	}
	if d == nil {
		return nil, fmt.Errorf("item is not an object")
	}
	d[c.KeyAttr] = id
	return json.Marshal(d)
}
