// Package docstore is the document-store contract the tournament logic runs
// against: full-collection scans, keyed reads, and partial-field updates.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names.
const (
	CollectionTournaments = "tournaments"
	CollectionUsers       = "users"
	CollectionOutbox      = "outbox"
)

var (
	// ErrNotFound is returned when no document exists under the key.
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyExists is returned by Create when the key is taken.
	ErrAlreadyExists = errors.New("document already exists")

	// ErrVersionConflict is returned by CompareAndUpdate when the stored
	// version differs from the expected one.
	ErrVersionConflict = errors.New("document version conflict")
)

// Document is one stored record. Data holds top-level JSON fields.
type Document struct {
	ID      string
	Version int64
	Data    map[string]interface{}
}

// Store abstracts the backing document database.
type Store interface {
	// GetAll returns every document in the collection.
	GetAll(ctx context.Context, collection string) ([]Document, error)

	// GetOne returns a single document or ErrNotFound.
	GetOne(ctx context.Context, collection, id string) (*Document, error)

	// Create inserts a new document at version 1. Returns ErrAlreadyExists on a taken key.
	Create(ctx context.Context, collection, id string, fields map[string]interface{}) error

	// Update sets only the listed top-level fields and bumps the version.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error

	// CompareAndUpdate is Update guarded by the document version.
	CompareAndUpdate(ctx context.Context, collection, id string, expectedVersion int64, fields map[string]interface{}) error
}

// Fields converts a JSON-tagged value into a top-level field map.
func Fields(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return out, nil
}

// Decode converts a document body into a JSON-tagged value.
func Decode(doc *Document, dst interface{}) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return nil
}

// normalize round-trips a field map through JSON so every backend stores the
// same plain shapes (strings, float64, bool, nil, slices, maps).
func normalize(fields map[string]interface{}) (map[string]interface{}, error) {
	if fields == nil {
		return map[string]interface{}{}, nil
	}
	return Fields(fields)
}
