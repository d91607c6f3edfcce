// Package memstore is an in-process docstore.Store used for tests, demos and fixtures.
package memstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/tierline/tierline/internal/docstore"
)

// Store keeps collections in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	failures    map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]any),
		failures:    make(map[string]error),
	}
}

// Put stores a document, replacing any previous version.
func (s *Store) Put(collection, id string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	collection = strings.Trim(collection, "/")
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		s.collections[collection] = docs
	}
	docs[id] = cloneMap(data)
}

// FailCollection makes every read of the collection return err. A nil err
// clears the failure.
func (s *Store) FailCollection(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	collection = strings.Trim(collection, "/")
	if err == nil {
		delete(s.failures, collection)
		return
	}
	s.failures[collection] = err
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	collection = strings.Trim(collection, "/")
	if err := s.failures[collection]; err != nil {
		return docstore.Document{}, err
	}
	data, ok := s.collections[collection][id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docstore.Document{ID: id, Data: cloneMap(data)}, nil
}

// Find implements docstore.Store. Results are ordered by document id.
func (s *Store) Find(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	collection = strings.Trim(collection, "/")
	if err := s.failures[collection]; err != nil {
		return nil, err
	}
	docs := s.collections[collection]
	out := make([]docstore.Document, 0, len(docs))
	for id, data := range docs {
		if !docstore.Matches(data, filters) {
			continue
		}
		out = append(out, docstore.Document{ID: id, Data: cloneMap(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close implements docstore.Store.
func (s *Store) Close(context.Context) error {
	return nil
}

// LoadFixture reads a docstore.Fixture into the store.
func (s *Store) LoadFixture(r io.Reader) error {
	fixture, err := docstore.ReadFixture(r)
	if err != nil {
		return fmt.Errorf("memstore: %w", err)
	}
	return fixture.Each(func(collection, id string, data map[string]any) error {
		s.Put(collection, id, data)
		return nil
	})
}

// LoadFixtureFile opens path and loads it with LoadFixture.
func (s *Store) LoadFixtureFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("memstore: open fixture: %w", err)
	}
	defer f.Close()
	return s.LoadFixture(f)
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
