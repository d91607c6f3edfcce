package docstore

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Fixture holds documents keyed by collection path and id, in the shape
// {"<collection path>": {"<id>": {...fields}}}.
type Fixture map[string]map[string]map[string]any

// ReadFixture decodes a JSON fixture.
func ReadFixture(r io.Reader) (Fixture, error) {
	var f Fixture
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("docstore: decode fixture: %w", err)
	}
	return f, nil
}

// Each visits every document ordered by collection then id.
func (f Fixture) Each(fn func(collection, id string, data map[string]any) error) error {
	collections := make([]string, 0, len(f))
	for c := range f {
		collections = append(collections, c)
	}
	sort.Strings(collections)
	for _, c := range collections {
		ids := make([]string, 0, len(f[c]))
		for id := range f[c] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if err := fn(c, id, f[c][id]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len counts the documents in f.
func (f Fixture) Len() int {
	n := 0
	for _, docs := range f {
		n += len(docs)
	}
	return n
}
