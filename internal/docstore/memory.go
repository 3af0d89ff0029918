package docstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store for development and tests.
// Reads return deep copies so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]*Document)}
}

func (s *MemoryStore) GetAll(_ context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		cp, err := copyDocument(docs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	return out, nil
}

func (s *MemoryStore) GetOne(_ context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc)
}

func (s *MemoryStore) Create(_ context.Context, collection, id string, fields map[string]interface{}) error {
	data, err := normalize(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]*Document)
	}
	if _, exists := s.collections[collection][id]; exists {
		return ErrAlreadyExists
	}
	s.collections[collection][id] = &Document{ID: id, Version: 1, Data: data}
	return nil
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]interface{}) error {
	return s.update(collection, id, -1, fields)
}

func (s *MemoryStore) CompareAndUpdate(_ context.Context, collection, id string, expectedVersion int64, fields map[string]interface{}) error {
	return s.update(collection, id, expectedVersion, fields)
}

// update applies fields; expectedVersion < 0 skips the version check.
func (s *MemoryStore) update(collection, id string, expectedVersion int64, fields map[string]interface{}) error {
	data, err := normalize(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	if expectedVersion >= 0 && doc.Version != expectedVersion {
		return ErrVersionConflict
	}
	for k, v := range data {
		doc.Data[k] = v
	}
	doc.Version++
	return nil
}

func copyDocument(doc *Document) (*Document, error) {
	data, err := Fields(doc.Data)
	if err != nil {
		return nil, err
	}
	return &Document{ID: doc.ID, Version: doc.Version, Data: data}, nil
}
