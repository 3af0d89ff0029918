package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx shared by pools, connections and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps every collection in one JSONB table (see db/migrations).
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore returns a Store backed by the documents table.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, data, version
		FROM documents
		WHERE collection = $1
		ORDER BY id ASC`, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc Document
			raw []byte
		)
		if err := rows.Scan(&doc.ID, &raw, &doc.Version); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", collection, err)
		}
		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return nil, fmt.Errorf("unmarshal %s/%s: %w", collection, doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) GetOne(ctx context.Context, collection, id string) (*Document, error) {
	var (
		doc = Document{ID: id}
		raw []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT data, version
		FROM documents
		WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw, &doc.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("unmarshal %s/%s: %w", collection, id, err)
	}
	return &doc, nil
}

func (s *PostgresStore) Create(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	raw, err := marshalBody(fields)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO documents (collection, id, data, version)
		VALUES ($1, $2, $3::jsonb, 1)
		ON CONFLICT (collection, id) DO NOTHING`, collection, id, raw)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Update merges fields into the stored body with the jsonb || operator,
// which replaces only the listed top-level keys.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	raw, err := marshalBody(fields)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE documents
		SET data = data || $3::jsonb, version = version + 1, updated_at = now()
		WHERE collection = $1 AND id = $2`, collection, id, raw)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CompareAndUpdate(ctx context.Context, collection, id string, expectedVersion int64, fields map[string]interface{}) error {
	raw, err := marshalBody(fields)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE documents
		SET data = data || $3::jsonb, version = version + 1, updated_at = now()
		WHERE collection = $1 AND id = $2 AND version = $4`, collection, id, raw, expectedVersion)
	if err != nil {
		return fmt.Errorf("compare-and-update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s/%s: %w", collection, id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func marshalBody(fields map[string]interface{}) ([]byte, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return json.Marshal(fields)
}
